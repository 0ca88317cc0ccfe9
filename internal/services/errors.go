package services

import "errors"

var (
	ErrDiagramNotFound    = errors.New("diagram not found")
	ErrInvalidID          = errors.New("invalid id")
	ErrNameRequired       = errors.New("name is required")
	ErrNameTooLong        = errors.New("name must be at most 255 characters")
	ErrDescriptionTooLong = errors.New("description must be at most 1000 characters")
	ErrDBMLTooLarge       = errors.New("dbml exceeds 1 MiB")
	ErrCanvasTooLarge     = errors.New("canvas state exceeds 1 MiB")
	ErrInvalidCanvas      = errors.New("invalid canvas state")
	ErrSaveInProgress     = errors.New("another save of this diagram is in progress")

	ErrInvalidSchema  = errors.New("invalid schema")
	ErrInvalidRequest = errors.New("invalid request")

	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)
