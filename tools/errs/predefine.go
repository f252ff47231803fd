package errs

import "net/http"

const (
	ArgsError           = 1001
	UnauthenticatedCode = 1002
	AnonymousConnCode   = 1003
	RecordNotFoundError = 1004
	RecipientNotFound   = 1005
	ForbiddenOrigin     = 1006
	HandleClosedCode    = 1101
	SlowConsumerCode    = 1102
	PersistenceError    = 1501
	ServerInternalError = 1500
)

var (
	ErrArgs                = NewCodeError(ArgsError, "invalid argument", http.StatusBadRequest)
	ErrUnauthenticated     = NewCodeError(UnauthenticatedCode, "invalid or missing token", http.StatusUnauthorized)
	ErrAnonymousConnection = NewCodeError(AnonymousConnCode, "anonymous connection rejected", http.StatusUnauthorized)
	ErrUserNotFound        = NewCodeError(RecordNotFoundError, "user not found", http.StatusNotFound)
	ErrRecipientNotFound   = NewCodeError(RecipientNotFound, "receiver not found", http.StatusNotFound)
	ErrForbiddenOrigin     = NewCodeError(ForbiddenOrigin, "origin not allowed", http.StatusForbidden)
	ErrHandleClosed        = NewCodeError(HandleClosedCode, "connection closed", http.StatusGone)
	ErrSlowConsumer        = NewCodeError(SlowConsumerCode, "connection send queue full", http.StatusServiceUnavailable)
	ErrPersistence         = NewCodeError(PersistenceError, "error occurred while sending message", http.StatusInternalServerError)
	ErrInternal            = NewCodeError(ServerInternalError, "internal server error", http.StatusInternalServerError)
)
