package ml

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// ClassMetrics are the per-class precision/recall figures.
type ClassMetrics struct {
	Class     int
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report summarises predictions against ground truth.
type Report struct {
	Classes  []ClassMetrics
	Accuracy float64
	Total    int
}

// Evaluate compares predicted against actual labels.
func Evaluate(actual, predicted []int) (Report, error) {
	if len(actual) != len(predicted) {
		return Report{}, fmt.Errorf("%d actual labels but %d predictions", len(actual), len(predicted))
	}

	labels := make(map[int]struct{})
	for i := range actual {
		labels[actual[i]] = struct{}{}
		labels[predicted[i]] = struct{}{}
	}
	classes := make([]int, 0, len(labels))
	for label := range labels {
		classes = append(classes, label)
	}
	sort.Ints(classes)

	report := Report{Total: len(actual)}
	correct := 0
	for i := range actual {
		if actual[i] == predicted[i] {
			correct++
		}
	}
	if len(actual) > 0 {
		report.Accuracy = float64(correct) / float64(len(actual))
	}

	for _, class := range classes {
		var tp, fp, fn int
		for i := range actual {
			switch {
			case predicted[i] == class && actual[i] == class:
				tp++
			case predicted[i] == class:
				fp++
			case actual[i] == class:
				fn++
			}
		}
		m := ClassMetrics{Class: class, Support: tp + fn}
		m.Precision = ratio(tp, tp+fp)
		m.Recall = ratio(tp, tp+fn)
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report.Classes = append(report.Classes, m)
	}
	return report, nil
}

// String renders the report as an aligned table.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%8s %10s %10s %10s %10s\n", "class", "precision", "recall", "f1-score", "support")
	for _, m := range r.Classes {
		fmt.Fprintf(&b, "%8d %10.2f %10.2f %10.2f %10d\n", m.Class, m.Precision, m.Recall, m.F1, m.Support)
	}
	fmt.Fprintf(&b, "\n%8s %32.2f %10d\n", "accuracy", r.Accuracy, r.Total)
	return b.String()
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// TrainTestSplit shuffles indices 0..n-1 and returns the train and test partitions.
func TrainTestSplit(n int, testSize float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	cut := int(float64(n) * testSize)
	if testSize > 0 && cut == 0 && n > 1 {
		cut = 1
	}
	return perm[cut:], perm[:cut]
}
