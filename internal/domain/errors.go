package domain

import "errors"

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrChatExists   = errors.New("chat already exists")
	ErrForbidden    = errors.New("resource belongs to another user")
	ErrEmptyNote    = errors.New("note content is empty")
	ErrUnauthorized = errors.New("no active session")
)
