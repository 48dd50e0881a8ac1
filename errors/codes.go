package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Load-path errors
const (
	// ErrCodeUnknownComponent indicates an operation referenced a name that
	// was never registered.
	ErrCodeUnknownComponent ErrorCode = "UNKNOWN_COMPONENT"
	// ErrCodeUnknownDependency indicates a component declared a dependency
	// that was never registered.
	ErrCodeUnknownDependency ErrorCode = "UNKNOWN_DEPENDENCY"
	// ErrCodeLoadTimeout indicates a component factory did not settle within
	// the configured timeout.
	ErrCodeLoadTimeout ErrorCode = "LOAD_TIMEOUT"
	// ErrCodeLoaderFailure indicates the component factory itself failed.
	ErrCodeLoaderFailure ErrorCode = "LOADER_FAILURE"
	// ErrCodeDependencyCycle indicates the dependency chain loops back on
	// itself and can never resolve.
	ErrCodeDependencyCycle ErrorCode = "DEPENDENCY_CYCLE"
)

// Configuration/input errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeLoadTimeout:   true,
	ErrCodeLoaderFailure: true,
}

// IsRetryableCode returns true if the error code indicates an error that a
// later load attempt may recover from.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
