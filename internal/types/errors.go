package types

import "errors"

var (
	// ErrSourceRootMissing is returned when the configured source root does not exist.
	ErrSourceRootMissing = errors.New("source root not found")

	// ErrNoTypeDeclaration marks a file without a public class or interface.
	// It is recorded as a skip, never surfaced as a run failure.
	ErrNoTypeDeclaration = errors.New("no public type declaration")

	// ErrUnknownEngine is returned for an unregistered extraction engine name.
	ErrUnknownEngine = errors.New("unknown extraction engine")
)
