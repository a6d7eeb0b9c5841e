// Package errors carries the failure codes of an estimation run. A
// DomainError records where in the run it happened: the input path, the
// pipeline step, and the routine or region being analyzed.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorCode string

const (
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeValidationError   ErrorCode = "VALIDATION_ERROR"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
	CodeNotSupported      ErrorCode = "NOT_SUPPORTED"
	CodeContractViolation ErrorCode = "CONTRACT_VIOLATION"
	CodeCyclicCalls       ErrorCode = "CYCLIC_CALLS"
)

// Location keys, rendered innermost first.
const (
	CtxRoutine   = "routine"
	CtxRegion    = "region"
	CtxOperation = "operation"
	CtxPath      = "path"
)

var locationOrder = []string{CtxRoutine, CtxRegion, CtxOperation, CtxPath}

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

// WithContext sets key on e. A later value for the same key replaces the
// earlier one, so an error passed up from a region keeps the outermost
// operation that handled it.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Error renders "[CODE] message: cause (routine=.. region=..)". Location
// keys come first in a fixed order, any others follow sorted.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	var pairs []string
	for _, key := range locationOrder {
		if v, ok := e.Context[key]; ok {
			pairs = append(pairs, fmt.Sprintf("%s=%v", key, v))
		}
	}
	var extra []string
	for key := range e.Context {
		if !isLocation(key) {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		pairs = append(pairs, fmt.Sprintf("%s=%v", key, e.Context[key]))
	}
	return msg + " (" + strings.Join(pairs, " ") + ")"
}

func isLocation(key string) bool {
	for _, k := range locationOrder {
		if k == key {
			return true
		}
	}
	return false
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// FromPanic turns a builder or reducer panic recovered inside a region
// into a contract violation for that region alone.
func FromPanic(r interface{}) error {
	if err, ok := r.(error); ok {
		return Wrap(err, CodeContractViolation, "analysis aborted")
	}
	return &DomainError{Code: CodeContractViolation, Message: fmt.Sprint(r)}
}

// AddContext records where err happened. Errors from outside the
// estimator are wrapped as INTERNAL_ERROR.
func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return de
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
