package providers

import "fmt"

// ErrorDetail is one entry from an upstream's structured error envelope.
type ErrorDetail struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// RequestError is an upstream failure after any applicable retry. It keeps
// the HTTP status and whatever structured detail the provider sent.
type RequestError struct {
	Provider   string
	StatusCode int
	Message    string
	Details    []ErrorDetail
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// CapabilityError marks an operation a provider cannot structurally
// support, as opposed to a query that merely failed.
type CapabilityError struct {
	Provider  string
	Operation string
	Hint      string
}

func (e *CapabilityError) Error() string {
	msg := fmt.Sprintf("%s does not support %s", e.Provider, e.Operation)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

// ConfigError is a bad provider name or missing credential, raised at
// construction time before any network call.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }
