package repository

import (
	"errors"
	"fmt"

	"tripcore/internal/domain"
)

var (
	// ErrNotFound is returned when a requested entity does not exist for the tenant.
	ErrNotFound = fmt.Errorf("entity %w", domain.ErrNotFound)

	// ErrDuplicate is returned when inserting an entity whose id already exists.
	ErrDuplicate = errors.New("entity already exists")
)
