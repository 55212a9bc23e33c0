package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"requisiciones/internal/metrics"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("requisition not found")
	ErrForbidden         = errors.New("role not allowed to perform this transition")
	ErrInvalidTransition = errors.New("transition not allowed from current status")
)

// ValidationError reports failed preconditions per field. Nothing is written
// when it is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// fieldErrors collects validation failures before returning them together.
type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	metrics.Rejected("validation")
	return &ValidationError{Fields: f}
}

// StorageError wraps a failure of the numbering or document stores.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// RemoteError wraps a rejection from the object storage service.
type RemoteError struct {
	Service string
	Err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s rejected the request: %v", e.Service, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
