package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrConfig               = errors.New("invalid configuration")
	ErrSchema               = errors.New("schema mismatch")
	ErrInvalidSymbol        = errors.New("invalid symbol")
	ErrInvalidExchange      = errors.New("invalid exchange")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientSellable = errors.New("insufficient sellable volume")
	ErrInvalidVolume        = errors.New("order volume must be positive")
	ErrNotTrading           = errors.New("strategy is not trading")
	ErrLockHeld             = errors.New("lock already held")
	ErrRateLimited          = errors.New("rate limited")
)

// SchemaError reports required input columns that were absent.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// ConfigError reports a single invalid configuration value.
type ConfigError struct {
	Field string
	Value string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }
