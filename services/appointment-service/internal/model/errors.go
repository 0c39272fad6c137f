package model

import (
	"errors"
	"fmt"
)

var (
	ErrMissingParameter = errors.New("missing required parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidInterval  = errors.New("start time must be before end time")
	ErrInvalidStatus    = errors.New("invalid appointment status")
	ErrSlotUnavailable  = errors.New("staff member is not available in the requested time slot")
	ErrNotFound         = errors.New("not found")
)

// NotFoundError names the entity that could not be found within the tenant.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}
