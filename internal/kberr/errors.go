// Package kberr defines the error taxonomy shared across the knowledge engine.
// Callers discriminate failures by type, never by message text: configuration
// mistakes are fatal, missing collections degrade to empty results, upstream
// transport failures are retried by the caller's own policy.
package kberr

import (
	"errors"
	"fmt"
)

// ConfigError reports invalid or missing backend configuration. It is fatal
// and never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// NewConfig creates a ConfigError with a formatted reason.
func NewConfig(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an absent collection or document. Recoverable:
// retrieval degrades to an empty result set.
type NotFoundError struct {
	Kind string // "collection", "document", ...
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// NewNotFound creates a NotFoundError for the given kind and name.
func NewNotFound(kind, name string) *NotFoundError {
	return &NotFoundError{Kind: kind, Name: name}
}

// UpstreamError reports a network or protocol failure from an embedding,
// reranker or vector-store backend.
type UpstreamError struct {
	System string // "qdrant", "embedding", "reranker", "storage"
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream failure: %v", e.System, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstream wraps err as an UpstreamError attributed to system.
func NewUpstream(system string, err error) *UpstreamError {
	return &UpstreamError{System: system, Err: err}
}

// ParseError reports an empty or unparseable document. Terminal for the
// ingestion run that hit it.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Reason
}

// NewParse creates a ParseError with a formatted reason.
func NewParse(format string, args ...interface{}) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfig reports whether err is a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsUpstream reports whether err is an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// IsParse reports whether err is a ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
