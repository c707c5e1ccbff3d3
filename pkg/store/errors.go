package store

import (
	"errors"

	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/nodepath"
)

var (
	// Validation failures. None of them leave partial state behind.
	ErrInvalidName  = nodepath.ErrInvalidName
	ErrPathTooLong  = nodepath.ErrPathTooLong
	ErrValueTooLong = models.ErrValueTooLong
	ErrInvalidKey   = models.ErrInvalidKey

	ErrUniqueConflict = errors.New("unique constraint conflict")
	ErrNotFound       = errors.New("not found")
	ErrReadOnly       = errors.New("operation denied: store is in read-only mode")
	ErrTypeNotAllowed = errors.New("node type not allowed here")
	ErrCycle          = errors.New("node cannot be moved under itself")
)
