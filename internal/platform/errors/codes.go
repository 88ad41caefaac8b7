// Package errors provides structured, coded errors shared by the bridge layers.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Network shim errors
	CodeTransport         Code = "TRANSPORT_ERROR"
	CodeUnsupportedOption Code = "UNSUPPORTED_OPTION"
	CodeUnsetInfo         Code = "UNSET_INFO"

	// Script errors
	CodeScriptFailure Code = "SCRIPT_FAILURE"

	// Fit errors
	CodeInvalidItemDescriptor Code = "INVALID_ITEM_DESCRIPTOR"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// Retryable reports whether an operation failing with this code may succeed
// when repeated unchanged.
func (c Code) Retryable() bool {
	switch c {
	case CodeTransport:
		return true
	default:
		return false
	}
}
