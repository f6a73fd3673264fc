package schema

// FormatResult is the response of the remote format endpoint. Stdout holds the
// formatted code; Error holds raw diagnostic text and Message a short summary.
// All three empty means the service failed without explanation.
type FormatResult struct {
	Stdout  string `json:"stdout,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// HasDiagnostic reports whether the formatter rejected the code.
func (r FormatResult) HasDiagnostic() bool {
	return r.Error != ""
}

// ExecuteRequest is posted to the execute endpoint.
type ExecuteRequest struct {
	Code    string         `json:"code"`
	Version SandboxVersion `json:"version"`
}

// FormatRequest is posted to the format endpoint.
type FormatRequest struct {
	Code string `json:"code"`
}

// SnippetRequest is posted to the share endpoint.
type SnippetRequest struct {
	Code string `json:"code"`
}

// SnippetResponse is returned by the share endpoint.
type SnippetResponse struct {
	ID SnippetID `json:"id"`
}

// CodeResponse is returned by the snippet and template fetch endpoints.
type CodeResponse struct {
	Code string `json:"code"`
}

// ErrorResponse is the JSON error body returned by the service.
type ErrorResponse struct {
	Error string `json:"error"`
}
