package models

// LogRecord is one matched log line with its derived features.
type LogRecord struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Process   string `json:"process"`
	PID       string `json:"pid"`
	Message   string `json:"message"`
	// Feature1 is the message length in characters.
	Feature1 float64 `json:"feature1"`
	// Feature2 counts severity keywords.
	Feature2 float64 `json:"feature2"`
	// Feature3 counts uppercase ASCII letters.
	Feature3 float64 `json:"feature3"`
	// Feature4 counts punctuation from the fixed special-character set.
	Feature4 float64 `json:"feature4"`
	// Feature5 is 1 when a security keyword is present.
	Feature5 float64 `json:"feature5"`
}

// FeatureNames lists the feature columns in model order.
var FeatureNames = []string{"feature1", "feature2", "feature3", "feature4", "feature5"}

// Features returns the record's feature vector in FeatureNames order.
func (r LogRecord) Features() []float64 {
	return []float64{r.Feature1, r.Feature2, r.Feature3, r.Feature4, r.Feature5}
}

// AnomalyResult is a record the anomaly model flagged. Larger scores are more anomalous.
type AnomalyResult struct {
	Timestamp    string  `json:"timestamp"`
	Source       string  `json:"source"`
	Process      string  `json:"process"`
	Message      string  `json:"message"`
	AnomalyScore float64 `json:"anomaly_score"`
}

// LogAnalysis summarises one analyze_logs request.
type LogAnalysis struct {
	TotalLogs      int             `json:"total_logs"`
	TotalAnomalies int             `json:"total_anomalies"`
	Anomalies      []AnomalyResult `json:"anomalies"`
}
