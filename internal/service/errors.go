package service

import "errors"

var (
	ErrVisaNotFound        = errors.New("visa not found")
	ErrBudgetNotFound      = errors.New("budget not found")
	ErrParentNotCover      = errors.New("parent budget must belong to a Cover visa")
	ErrParentClosed        = errors.New("parent visa is declined or cancelled")
	ErrIdempotencyConflict = errors.New("request in progress")
	ErrIdempotencyMismatch = errors.New("key reuse with mismatched payload")
	ErrBadAttachment       = errors.New("attachment data is not valid base64")
	ErrAttachmentNotFound  = errors.New("attachment not found")

	ErrInvalidIDFormat    = errors.New("Invalid ID format")
	ErrReferenceNotFound  = errors.New("reference not found")
	ErrUnknownLookup      = errors.New("unknown lookup")
	ErrParentRequired     = errors.New("parent reference required")
	ErrParentNotAllowed   = errors.New("reference type takes no parent")
	ErrParentTypeMismatch = errors.New("parent reference has the wrong type")
	ErrHasChildren        = errors.New("reference still has children")

	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrSessionRevoked     = errors.New("session has been revoked")
)
