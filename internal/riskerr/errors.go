// Package riskerr holds the error categories shared by the risk packages.
//
// Specific errors wrap exactly one category, so callers can branch with
// errors.Is(err, riskerr.ErrNumerical) without knowing which package failed.
package riskerr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration invalid alpha, non-positive n_sims, weight/dimension mismatch
	ErrConfiguration = errors.New("configuration error")
	// ErrNumerical covariance not positive definite
	ErrNumerical = errors.New("numerical error")
	// ErrData insufficient history, empty input, misaligned dates
	ErrData = errors.New("data error")
)

// New creates a sentinel error that belongs to the given category.
func New(category error, msg string) error {
	return fmt.Errorf("%w: %s", category, msg)
}

// Category returns the category an error belongs to, or nil if none.
func Category(err error) error {
	switch {
	case errors.Is(err, ErrConfiguration):
		return ErrConfiguration
	case errors.Is(err, ErrNumerical):
		return ErrNumerical
	case errors.Is(err, ErrData):
		return ErrData
	default:
		return nil
	}
}
