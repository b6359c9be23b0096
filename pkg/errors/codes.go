package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

const (
	ErrCodeOK      ErrorCode = "OK"
	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeStorageError       ErrorCode = "COMMON_015"
	ErrCodeMessagingError     ErrorCode = "COMMON_016"
	ErrCodeObjectNotFound     ErrorCode = "COMMON_017"
)

// Structure Module Error Codes
const (
	ErrCodeStructureNotFound      ErrorCode = "STRUCT_001"
	ErrCodeUnsupportedFileType    ErrorCode = "STRUCT_002"
	ErrCodeFileTooLarge           ErrorCode = "STRUCT_003"
	ErrCodeInvalidContent         ErrorCode = "STRUCT_004"
	ErrCodeMaliciousContent       ErrorCode = "STRUCT_005"
	ErrCodeAtomCountExceeded      ErrorCode = "STRUCT_006"
	ErrCodeInvalidCoordinates     ErrorCode = "STRUCT_007"
	ErrCodeStructureNotParsed     ErrorCode = "STRUCT_008"
	ErrCodeParseFailed            ErrorCode = "STRUCT_009"
	ErrCodeStructureAlreadyExists ErrorCode = "STRUCT_010"
)

// Analysis Module Error Codes
const (
	ErrCodeAnalysisFailed     ErrorCode = "ANALYSIS_001"
	ErrCodeNoAtoms            ErrorCode = "ANALYSIS_002"
	ErrCodeInvalidThresholds  ErrorCode = "ANALYSIS_003"
	ErrCodeUnknownInteraction ErrorCode = "ANALYSIS_004"
	ErrCodeJobInvalid         ErrorCode = "ANALYSIS_005"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeOK:                 http.StatusOK,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessagingError:     http.StatusInternalServerError,
	ErrCodeObjectNotFound:     http.StatusNotFound,

	ErrCodeStructureNotFound:      http.StatusNotFound,
	ErrCodeUnsupportedFileType:    http.StatusUnsupportedMediaType,
	ErrCodeFileTooLarge:           http.StatusRequestEntityTooLarge,
	ErrCodeInvalidContent:         http.StatusBadRequest,
	ErrCodeMaliciousContent:       http.StatusBadRequest,
	ErrCodeAtomCountExceeded:      http.StatusUnprocessableEntity,
	ErrCodeInvalidCoordinates:     http.StatusUnprocessableEntity,
	ErrCodeStructureNotParsed:     http.StatusConflict,
	ErrCodeParseFailed:            http.StatusUnprocessableEntity,
	ErrCodeStructureAlreadyExists: http.StatusConflict,

	ErrCodeAnalysisFailed:     http.StatusInternalServerError,
	ErrCodeNoAtoms:            http.StatusBadRequest,
	ErrCodeInvalidThresholds:  http.StatusBadRequest,
	ErrCodeUnknownInteraction: http.StatusBadRequest,
	ErrCodeJobInvalid:         http.StatusBadRequest,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeStorageError:       "object storage error",
	ErrCodeMessagingError:     "message queue error",
	ErrCodeObjectNotFound:     "object not found",

	ErrCodeStructureNotFound:      "structure not found",
	ErrCodeUnsupportedFileType:    "unsupported file type",
	ErrCodeFileTooLarge:           "file too large",
	ErrCodeInvalidContent:         "invalid structure file content",
	ErrCodeMaliciousContent:       "file contains potentially malicious code",
	ErrCodeAtomCountExceeded:      "atom count exceeds maximum",
	ErrCodeInvalidCoordinates:     "invalid atom coordinates",
	ErrCodeStructureNotParsed:     "structure not yet parsed",
	ErrCodeParseFailed:            "failed to parse structure",
	ErrCodeStructureAlreadyExists: "structure already exists",

	ErrCodeAnalysisFailed:     "interaction analysis failed",
	ErrCodeNoAtoms:            "no atoms found in structure",
	ErrCodeInvalidThresholds:  "invalid analysis thresholds",
	ErrCodeUnknownInteraction: "unknown interaction type",
	ErrCodeJobInvalid:         "invalid analysis job",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode ("STRUCT" for
// "STRUCT_001").
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
