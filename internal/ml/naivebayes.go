package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// MultinomialNB is a multinomial naive Bayes classifier over count vectors.
type MultinomialNB struct {
	Alpha          float64     `json:"alpha"`
	Classes        []int       `json:"classes"`
	ClassLogPrior  []float64   `json:"class_log_prior"`
	FeatureLogProb [][]float64 `json:"feature_log_prob"`
}

// FitMultinomialNB trains on rows with the given labels. nFeatures is the vocabulary size.
func FitMultinomialNB(rows []SparseVector, labels []int, nFeatures int, alpha float64) (*MultinomialNB, error) {
	if len(rows) == 0 {
		return nil, errors.New("no training rows")
	}
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("%d rows but %d labels", len(rows), len(labels))
	}
	if nFeatures <= 0 {
		return nil, errors.New("feature count must be positive")
	}
	if alpha <= 0 {
		alpha = 1
	}

	classIndex := make(map[int]int)
	for _, label := range labels {
		classIndex[label] = 0
	}
	classes := make([]int, 0, len(classIndex))
	for label := range classIndex {
		classes = append(classes, label)
	}
	sort.Ints(classes)
	for i, label := range classes {
		classIndex[label] = i
	}

	counts := make([][]float64, len(classes))
	for i := range counts {
		counts[i] = make([]float64, nFeatures)
	}
	docs := make([]float64, len(classes))
	for r, row := range rows {
		c := classIndex[labels[r]]
		docs[c]++
		for idx, n := range row {
			if idx < 0 || idx >= nFeatures {
				return nil, fmt.Errorf("row %d references feature %d of %d", r, idx, nFeatures)
			}
			counts[c][idx] += n
		}
	}

	model := &MultinomialNB{
		Alpha:          alpha,
		Classes:        classes,
		ClassLogPrior:  make([]float64, len(classes)),
		FeatureLogProb: make([][]float64, len(classes)),
	}
	for c := range classes {
		model.ClassLogPrior[c] = math.Log(docs[c] / float64(len(rows)))
		total := 0.0
		for _, n := range counts[c] {
			total += n
		}
		denom := math.Log(total + alpha*float64(nFeatures))
		probs := make([]float64, nFeatures)
		for j, n := range counts[c] {
			probs[j] = math.Log(n+alpha) - denom
		}
		model.FeatureLogProb[c] = probs
	}
	return model, nil
}

// Validate checks that the parameter matrices agree in shape.
func (m *MultinomialNB) Validate(nFeatures int) error {
	if len(m.Classes) == 0 {
		return errors.New("classifier has no classes")
	}
	if len(m.ClassLogPrior) != len(m.Classes) || len(m.FeatureLogProb) != len(m.Classes) {
		return fmt.Errorf("classifier has %d classes but %d priors and %d likelihood rows",
			len(m.Classes), len(m.ClassLogPrior), len(m.FeatureLogProb))
	}
	for c, row := range m.FeatureLogProb {
		if len(row) != nFeatures {
			return fmt.Errorf("class %d has %d feature weights, vectorizer has %d", m.Classes[c], len(row), nFeatures)
		}
	}
	return nil
}

// JointLogLikelihood returns the unnormalised log posterior of each class.
func (m *MultinomialNB) JointLogLikelihood(x SparseVector) []float64 {
	jll := append([]float64(nil), m.ClassLogPrior...)
	for c, row := range m.FeatureLogProb {
		for idx, n := range x {
			if idx >= 0 && idx < len(row) {
				jll[c] += n * row[idx]
			}
		}
	}
	return jll
}

// Predict returns the most likely class; ties go to the lowest class.
func (m *MultinomialNB) Predict(x SparseVector) int {
	jll := m.JointLogLikelihood(x)
	best := 0
	for c := 1; c < len(jll); c++ {
		if jll[c] > jll[best] {
			best = c
		}
	}
	return m.Classes[best]
}

// TextPipeline chains a vectorizer and a classifier.
type TextPipeline struct {
	Vectorizer *CharVectorizer
	Model      *MultinomialNB
}

// NewTextPipeline checks that the two halves agree before pairing them.
func NewTextPipeline(v *CharVectorizer, m *MultinomialNB) (*TextPipeline, error) {
	if v == nil || m == nil {
		return nil, errors.New("vectorizer and model are both required")
	}
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("vectorizer: %w", err)
	}
	if err := m.Validate(v.Size()); err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	return &TextPipeline{Vectorizer: v, Model: m}, nil
}

// Classify vectorises text and predicts its class.
func (p *TextPipeline) Classify(text string) int {
	return p.Model.Predict(p.Vectorizer.Transform(text))
}
