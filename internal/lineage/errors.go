package lineage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput is returned when the root edge is malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLookupFailure is returned when a producer lookup fails or returns
	// malformed edges.
	ErrLookupFailure = errors.New("lookup failure")
)

// LookupError describes a failed producer lookup.
type LookupError struct {
	Table string
	IDs   []string
	Err   error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup producers of %s [%s]: %v", e.Table, strings.Join(e.IDs, ","), e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Is makes every LookupError match ErrLookupFailure.
func (e *LookupError) Is(target error) bool {
	return target == ErrLookupFailure
}

// FailurePolicy decides what a lookup failure does to a resolution.
type FailurePolicy string

const (
	// FailAbort stops the whole resolution on the first lookup failure.
	FailAbort FailurePolicy = "abort"
	// FailSkip drops the failing branch and keeps resolving the rest.
	FailSkip FailurePolicy = "skip"
)

// ParseFailurePolicy converts a configuration value to a FailurePolicy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailAbort:
		return FailAbort, nil
	case FailSkip:
		return FailSkip, nil
	}
	return "", fmt.Errorf("unknown lookup failure policy %q (want abort or skip)", s)
}

// KeyMode selects the granularity of the visited set.
type KeyMode string

const (
	// KeyBySet treats the whole source id set as one key.
	KeyBySet KeyMode = "set"
	// KeyByID tracks each source id separately and only looks up ids that
	// have not been seen under the same table.
	KeyByID KeyMode = "id"
)

// ParseKeyMode converts a configuration value to a KeyMode.
func ParseKeyMode(s string) (KeyMode, error) {
	switch KeyMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", KeyBySet:
		return KeyBySet, nil
	case KeyByID:
		return KeyByID, nil
	}
	return "", fmt.Errorf("unknown lineage key mode %q (want set or id)", s)
}
