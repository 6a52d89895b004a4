// Package audioerr defines the typed errors surfaced by the analysis engine.
//
// Every error carries a Code so callers can branch on the failure class without
// string matching, and each wraps its underlying cause for errors.Is/As.
package audioerr

import (
	"errors"
	"fmt"
)

// Code categorizes errors
type Code string

const (
	CodeDecode        Code = "DECODE_ERROR"
	CodeSilence       Code = "SILENCE_ERROR"
	CodeCaptureDenied Code = "CAPTURE_DENIED"
	CodeConfig        Code = "CONFIG_ERROR"
)

// BaseError is the base structured error
type BaseError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *BaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *BaseError) Unwrap() error {
	return e.Cause
}

// DecodeError reports malformed or unsupported audio bytes
type DecodeError struct {
	BaseError
	Source string
}

func NewDecodeError(source, message string, cause error) *DecodeError {
	return &DecodeError{
		BaseError: BaseError{Code: CodeDecode, Message: message, Cause: cause},
		Source:    source,
	}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s (source=%s)", e.BaseError.Error(), e.Source)
}

// SilenceError reports that no trim window rose above the threshold
type SilenceError struct {
	BaseError
	Threshold float64
}

func NewSilenceError(threshold float64) *SilenceError {
	return &SilenceError{
		BaseError: BaseError{Code: CodeSilence, Message: "no audio above threshold"},
		Threshold: threshold,
	}
}

func (e *SilenceError) Error() string {
	return fmt.Sprintf("%s (threshold=%g)", e.BaseError.Error(), e.Threshold)
}

// CaptureDeniedError reports that the capture device refused to open
type CaptureDeniedError struct {
	BaseError
	Device string
}

func NewCaptureDeniedError(device string, cause error) *CaptureDeniedError {
	return &CaptureDeniedError{
		BaseError: BaseError{Code: CodeCaptureDenied, Message: "audio capture denied", Cause: cause},
		Device:    device,
	}
}

func (e *CaptureDeniedError) Error() string {
	return fmt.Sprintf("%s (device=%s)", e.BaseError.Error(), e.Device)
}

// ConfigError reports an invalid parameter value
type ConfigError struct {
	BaseError
	Field string
	Value any
}

func NewConfigError(field string, value any, message string) *ConfigError {
	return &ConfigError{
		BaseError: BaseError{Code: CodeConfig, Message: message},
		Field:     field,
		Value:     value,
	}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("[%s] field=%s value=%v: %s", e.Code, e.Field, e.Value, e.Message)
}

// As enables errors.As checks without a target variable
func As[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}

// CodeOf returns the Code of the first coded error in err's chain, or "" when none.
func CodeOf(err error) Code {
	var coded interface{ code() Code }
	if errors.As(err, &coded) {
		return coded.code()
	}
	return ""
}

func (e *BaseError) code() Code { return e.Code }
