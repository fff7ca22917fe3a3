package models

// URL labels.
const (
	LabelGood = "good"
	LabelBad  = "bad"
)

// LabelSource records how a URL label was resolved.
type LabelSource string

const (
	SourceTable LabelSource = "table"
	SourceModel LabelSource = "model"
)

// URLClassification is the verdict for one submitted URL.
type URLClassification struct {
	URL    string      `json:"url"`
	Label  string      `json:"label"`
	Source LabelSource `json:"-"`
}

// PhishingRequest is the detect_phishing payload.
type PhishingRequest struct {
	URLs []string `json:"urls"`
}
