package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by a ShaderStore when no shader has the requested id.
var ErrNotFound = errors.New("shader not found")

// Error codes carried in the API envelope next to the human readable message.
const (
	CodeValidation        = "validation_error"
	CodeUnsupportedModel  = "unsupported_model"
	CodeConfiguration     = "configuration_error"
	CodeUpstream          = "upstream_error"
	CodeMalformedResponse = "malformed_response"
	CodeInvalidConfigJSON = "invalid_config_json"
	CodeStorage           = "storage_error"
	CodeNotFound          = "not_found"
	CodeInternal          = "internal_error"
)

// ValidationError reports a missing or unusable request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UnsupportedModelError is returned when a model id is not in the backend table.
type UnsupportedModelError struct {
	Model string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported model %q", e.Model)
}

// MissingCredentialError is the configuration error raised when the provider
// behind a model has no API key configured.
type MissingCredentialError struct {
	Provider Provider
	EnvVar   string
}

func (e *MissingCredentialError) Error() string {
	return e.EnvVar + " not configured"
}

// UpstreamError wraps any failure of a completion call.
type UpstreamError struct {
	Provider Provider
	Timeout  bool
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s request timed out: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// MalformedResponseError means the completion did not contain both delimited
// blocks. Raw keeps the full completion text for diagnosis.
type MalformedResponseError struct {
	Missing []string
	Raw     string
}

func (e *MalformedResponseError) Error() string {
	return "response missing " + strings.Join(e.Missing, ", ")
}

// InvalidConfigJSONError means the config block was not valid JSON. Raw is the
// captured block text.
type InvalidConfigJSONError struct {
	Raw string
	Err error
}

func (e *InvalidConfigJSONError) Error() string {
	return fmt.Sprintf("invalid control config JSON: %v", e.Err)
}

func (e *InvalidConfigJSONError) Unwrap() error {
	return e.Err
}

// StorageError wraps persistence failures.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ClassifyError maps an error from the generation pipeline or the store to an
// HTTP status, an error code and the message shown to clients.
func ClassifyError(err error) (status int, code, message string) {
	var (
		validation  *ValidationError
		unsupported *UnsupportedModelError
		missing     *MissingCredentialError
		upstream    *UpstreamError
		malformed   *MalformedResponseError
		invalidJSON *InvalidConfigJSONError
		storage     *StorageError
	)

	switch {
	case errors.As(err, &validation):
		return 400, CodeValidation, validation.Message
	case errors.As(err, &unsupported):
		return 400, CodeUnsupportedModel, "Unsupported model"
	case errors.As(err, &missing):
		return 500, CodeConfiguration, missing.Error()
	case errors.As(err, &upstream):
		return 500, CodeUpstream, upstream.Err.Error()
	case errors.As(err, &malformed):
		return 500, CodeMalformedResponse, "Invalid response format from AI model"
	case errors.As(err, &invalidJSON):
		return 500, CodeInvalidConfigJSON, "Invalid TweakPane configuration format"
	case errors.Is(err, ErrNotFound):
		return 404, CodeNotFound, "Shader not found"
	case errors.As(err, &storage):
		return 500, CodeStorage, "Database error"
	case errors.Is(err, context.Canceled):
		return 500, CodeInternal, "Request cancelled"
	default:
		return 500, CodeInternal, "Internal server error"
	}
}
