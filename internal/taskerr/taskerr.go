// Package taskerr defines the error taxonomy used across the task pipeline.
//
// Only Fatal, InvalidPolicyError, and PrivacyViolation are meant to reach
// the JSON-RPC transport as errors; every other kind is recovered or
// downgraded to a soft failure documented in the final answer text.
package taskerr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories from spec §7.
type Kind string

const (
	KindPrivacyViolation         Kind = "privacy_violation"
	KindInvalidPolicy            Kind = "invalid_policy"
	KindToolCall                 Kind = "tool_call_error"
	KindSchemaDriftUnrecoverable Kind = "schema_drift_unrecoverable"
	KindSandboxFailure           Kind = "sandbox_failure"
	KindLLM                      Kind = "llm_error"
	KindTaskTimeout              Kind = "task_timeout"
	KindFatal                    Kind = "fatal"
)

// TaskError carries a Kind alongside the usual error chain so callers can
// branch on category with errors.As without parsing message text.
type TaskError struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *TaskError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *TaskError) Unwrap() error { return e.Wrapped }

func newErr(kind Kind, msg string, wrapped error) *TaskError {
	return &TaskError{Kind: kind, Message: msg, Wrapped: wrapped}
}

func PrivacyViolation(msg string) error { return newErr(KindPrivacyViolation, msg, nil) }

func InvalidPolicy(msg string, wrapped error) error {
	return newErr(KindInvalidPolicy, msg, wrapped)
}

func ToolCall(msg string, wrapped error) error { return newErr(KindToolCall, msg, wrapped) }

func SchemaDriftUnrecoverable(msg string) error {
	return newErr(KindSchemaDriftUnrecoverable, msg, nil)
}

func SandboxFailure(msg string, wrapped error) error {
	return newErr(KindSandboxFailure, msg, wrapped)
}

func LLM(msg string, wrapped error) error { return newErr(KindLLM, msg, wrapped) }

func TaskTimeout(msg string) error { return newErr(KindTaskTimeout, msg, nil) }

func Fatal(msg string, wrapped error) error { return newErr(KindFatal, msg, wrapped) }

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// JSONRPCCode maps a Kind to a JSON-RPC 2.0 error code. Only the three
// kinds that are allowed to reach the transport have a meaningful code;
// everything else maps to 0 because it should never surface as a
// transport-level error (it is recovered upstream).
func JSONRPCCode(kind Kind) int {
	switch kind {
	case KindInvalidPolicy:
		return -32602
	case KindFatal:
		return -32603
	case KindPrivacyViolation:
		return -32602
	default:
		return 0
	}
}
