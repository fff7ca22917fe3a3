package engine

import (
	"regexp"
	"strings"

	"github.com/threatlens/threatlens/internal/models"
)

var (
	schemePrefix = regexp.MustCompile(`^https?://`)
	wwwPrefix    = regexp.MustCompile(`^www\.`)
)

// LabelLookup resolves a URL against the static labeled dataset.
type LabelLookup interface {
	Lookup(url string) (string, bool)
}

// TextClassifier predicts a class for a normalised URL. Class 1 is phishing.
type TextClassifier interface {
	Classify(text string) int
}

// URLClassifier labels URLs, preferring the dataset table over the model.
type URLClassifier struct {
	table LabelLookup
	model TextClassifier
}

// NewURLClassifier pairs the lookup table with the fallback model. table may be nil.
func NewURLClassifier(table LabelLookup, model TextClassifier) *URLClassifier {
	return &URLClassifier{table: table, model: model}
}

// Classify labels one URL.
func (c *URLClassifier) Classify(url string) models.URLClassification {
	if c.table != nil {
		if raw, ok := c.table.Lookup(url); ok {
			label := models.LabelGood
			if strings.EqualFold(raw, models.LabelBad) {
				label = models.LabelBad
			}
			return models.URLClassification{URL: url, Label: label, Source: models.SourceTable}
		}
	}

	label := models.LabelGood
	if c.model.Classify(NormalizeForModel(url)) == 1 {
		label = models.LabelBad
	}
	return models.URLClassification{URL: url, Label: label, Source: models.SourceModel}
}

// ClassifyAll labels urls in order.
func (c *URLClassifier) ClassifyAll(urls []string) []models.URLClassification {
	out := make([]models.URLClassification, 0, len(urls))
	for _, url := range urls {
		out = append(out, c.Classify(url))
	}
	return out
}

// NormalizeForModel lowercases url and drops a leading http(s) scheme and "www.".
func NormalizeForModel(url string) string {
	url = strings.ToLower(url)
	url = schemePrefix.ReplaceAllString(url, "")
	return wwwPrefix.ReplaceAllString(url, "")
}
