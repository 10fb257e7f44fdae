package client

import "fmt"

// ProviderError is a non-success response or timeout from a generative
// API. It carries the upstream status so the failure reason recorded on
// the job says which side broke.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// AssetMismatchError is a renderer-side validation failure: a missing
// asset or a timing array that does not line up with the questions.
type AssetMismatchError struct {
	Reason string
}

func (e *AssetMismatchError) Error() string {
	return "composition invalid: " + e.Reason
}

// RenderError is a failure during the encode itself. The pipeline
// treats it as "no usable file was produced".
type RenderError struct {
	Message string
}

func (e *RenderError) Error() string {
	return "render failed: " + e.Message
}
