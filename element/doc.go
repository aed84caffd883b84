// Package element defines the identity shared by everything the runtime
// tracks. An element is any value exposing a stable, globally unique
// identifier; collections such as progression.Progression and pile.Pile key
// on that identifier rather than on the value itself.
//
// References:
//
// Most collection operations accept a reference instead of a concrete value.
// A reference resolves to an identifier and can be:
//   - a uuid.UUID
//   - the canonical string form of a UUID
//   - any Element
//   - a slice of any of the above (for operations that take many)
//
// Anything else fails with ErrInvalidID.
//
// Errors:
//
// The package also owns the sentinel errors for the structural failures all
// collections share (ErrNotFound, ErrExists, ErrInvalidID, ErrTypeMismatch) so
// callers can test with errors.Is no matter which collection produced them.
package element
