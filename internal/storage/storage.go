package storage

import (
	corestorage "github.com/tjfontaine/deploywatch/internal/core/ports"
)

// Re-export storage interfaces and types from core/ports.
type (
	DeliveryStore       = corestorage.DeliveryStore
	DeliveryListOptions = corestorage.DeliveryListOptions
)

// Storage types accepted in configuration.
const (
	TypeNone   = "none"
	TypeMemory = "memory"
	TypeSQLite = "sqlite"
)
