// Package server provides the HTTP layer: multipart job submission, status
// and result retrieval, and the legacy synchronous single-shot render. DTOs
// are kept separate from domain types.
package server

// CreateVideoResponse is the HTTP response after submitting a render job.
type CreateVideoResponse struct {
	// JobID is the unique identifier for the created job.
	JobID string `json:"jobId"`
	// BackgroundCount echoes how many background images were detected.
	BackgroundCount int `json:"backgroundCount"`
	// CTADetected echoes whether a call-to-action image was detected.
	CTADetected bool `json:"ctaDetected"`
}

// StatusResponse is the HTTP response for a job status query.
type StatusResponse struct {
	// Status is processing, done or error.
	Status string `json:"status"`
	// Stage is the free-form progress label.
	Stage string `json:"stage,omitempty"`
	// Error is the recorded failure reason, when status is error.
	Error string `json:"error,omitempty"`
	// ArtifactURL is the published S3 URL, when publication is enabled.
	ArtifactURL string `json:"artifactUrl,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
