package catalog

import (
	"errors"
	"fmt"
)

// Sentinel errors for the scraping failure taxonomy. Resilience policy is
// driven entirely by these: transient failures retry, hard blocks do not,
// schema errors skip the item, config errors abort before the run starts.
var (
	ErrTransient = errors.New("transient fetch failure")
	ErrHardBlock = errors.New("request blocked")
	ErrBadSchema = errors.New("record does not match expected shape")
	ErrConfig    = errors.New("invalid configuration")
)

// FetchError wraps a network-level failure with its retry class.
type FetchError struct {
	Store   string
	URL     string
	Status  int
	Wrapped error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s, status=%d): %v", e.URL, e.Store, e.Status, e.Wrapped)
}

func (e *FetchError) Unwrap() error { return e.Wrapped }

// Transient builds a retryable fetch error.
func Transient(store, url string, status int, cause error) error {
	if cause == nil {
		cause = ErrTransient
	}
	return &FetchError{Store: store, URL: url, Status: status, Wrapped: fmt.Errorf("%w: %w", ErrTransient, cause)}
}

// HardBlock builds a non-retryable fetch error (403, CAPTCHA wall).
func HardBlock(store, url string, status int) error {
	return &FetchError{Store: store, URL: url, Status: status, Wrapped: ErrHardBlock}
}

// SchemaError wraps an extraction mismatch on a single raw record.
type SchemaError struct {
	Store   string
	Field   string
	Wrapped error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("extract %s: %s: %v", e.Store, e.Field, e.Wrapped)
}

func (e *SchemaError) Unwrap() error { return e.Wrapped }

// BadSchema builds a schema error for a missing or malformed field.
func BadSchema(store, field string) error {
	return &SchemaError{Store: store, Field: field, Wrapped: ErrBadSchema}
}

// ConfigError reports an invalid option. It is the only error class
// allowed to abort a run, and it does so before the run starts.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Option, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// IsRetryable reports whether err should go through backoff and retry.
// Hard blocks and schema mismatches never retry: hammering a block only
// raises the detection risk, and a schema mismatch will not fix itself.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrHardBlock) || errors.Is(err, ErrBadSchema) || errors.Is(err, ErrConfig) {
		return false
	}
	return errors.Is(err, ErrTransient)
}

// ClassifyStatus maps an HTTP status to the taxonomy. 2xx maps to nil.
func ClassifyStatus(store, url string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 403 || status == 401:
		return HardBlock(store, url, status)
	case status == 429 || status >= 500:
		return Transient(store, url, status, fmt.Errorf("http %d", status))
	default:
		return BadSchema(store, fmt.Sprintf("unexpected http %d", status))
	}
}
