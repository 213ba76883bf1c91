package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnknownType        = "unknown_type"
	ErrCodeEmptyMessage       = "empty_message"
	ErrCodeStoreFailure       = "store_failure"
	ErrCodeHistoryUnavailable = "history_unavailable"
)

var (
	ErrEmptyMessage       = errors.New("message has neither text nor image")
	ErrStoreFailure       = errors.New("failed to store message")
	ErrHistoryUnavailable = errors.New("failed to load history")
	ErrReservedRoomName   = errors.New("room name uses reserved prefix")
	ErrInvalidRoom        = errors.New("invalid room id")
	ErrBadRequest         = errors.New("bad request")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// toCoreError maps a domain error onto the code clients see.
func toCoreError(err error) *CoreError {
	var ce *CoreError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrEmptyMessage):
		return coreError(ErrCodeEmptyMessage, ErrEmptyMessage.Error())
	case errors.Is(err, ErrStoreFailure):
		return coreError(ErrCodeStoreFailure, ErrStoreFailure.Error())
	case errors.Is(err, ErrHistoryUnavailable):
		return coreError(ErrCodeHistoryUnavailable, ErrHistoryUnavailable.Error())
	default:
		return coreError(ErrCodeBadRequest, err.Error())
	}
}
