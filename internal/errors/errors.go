// Package errors defines the pipeline error taxonomy and the HTTP error
// rendering used by the audit API.
//
// Per-entity failures (fetch, mapping) are recoverable: the orchestrator
// records them and moves on. Configuration errors are fatal and must be
// raised before any entity is processed.
package errors

import (
	"errors"
	"fmt"
)

// FetchError reports that the retrieval collaborator could not produce a
// filing for one entity. Recoverable; recorded per entity.
type FetchError struct {
	CNPJ string
	Op   string // "search", "select", "download"
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s for %s: %v", e.Op, e.CNPJ, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError wraps an underlying failure of the named fetch operation.
func NewFetchError(cnpj, op string, err error) *FetchError {
	return &FetchError{CNPJ: cnpj, Op: op, Err: err}
}

// MappingError reports a filing that violates the schema: a required
// identification field is missing or the document cannot be read at all.
// Recoverable; recorded per entity.
type MappingError struct {
	CNPJ  string
	Field string // required field or group that is missing/malformed
	Err   error
}

func (e *MappingError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("map filing for %s: required field %s: %v", e.CNPJ, e.Field, e.Err)
	}
	return fmt.Sprintf("map filing for %s: %v", e.CNPJ, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// NewMappingError wraps a schema violation for the given entity.
func NewMappingError(cnpj, field string, err error) *MappingError {
	return &MappingError{CNPJ: cnpj, Field: field, Err: err}
}

// ConfigurationError reports an invalid run parameter (tolerance,
// concurrency, endpoint). Fatal: the run must not start.
type ConfigurationError struct {
	Param string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %v", e.Param, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError wraps an invalid value for the named parameter.
func NewConfigurationError(param string, err error) *ConfigurationError {
	return &ConfigurationError{Param: param, Err: err}
}

// IsRecoverable reports whether the error is a per-entity failure the
// orchestrator should record instead of aborting the run.
func IsRecoverable(err error) bool {
	var fe *FetchError
	var me *MappingError
	return errors.As(err, &fe) || errors.As(err, &me)
}

// ErrRequiredFieldMissing is the base cause of a MappingError raised for an
// absent identification field.
var ErrRequiredFieldMissing = errors.New("required field missing")
