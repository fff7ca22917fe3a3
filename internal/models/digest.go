package models

// Tampering verdicts. They are placeholders: no real baseline backs them.
const (
	TamperingYes      = "Yes"
	TamperingNone     = "No tampering detected"
	TamperingAnalysis = "Error during analysis"
)

// DigestReport is the content fingerprint shared by the file and image checks.
type DigestReport struct {
	Digest            string
	Metadata          map[string]string
	TamperingDetected string
}

// FileIntegrityResponse is the check_file_integrity payload.
type FileIntegrityResponse struct {
	FileHash          string `json:"file_hash"`
	TamperingDetected string `json:"tampering_detected"`
}

// ImageAnalysisResponse is the analyze_image payload. ImageHash is nil on failure.
type ImageAnalysisResponse struct {
	Metadata          map[string]string `json:"metadata"`
	ImageHash         *string           `json:"image_hash"`
	TamperingDetected string            `json:"tampering_detected"`
	Error             string            `json:"error,omitempty"`
}
