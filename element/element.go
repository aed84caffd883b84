package element

import (
	"errors"
	"fmt"

	"github.com/casualjim/roost/pkg/uuidx"
	"github.com/google/uuid"
)

var (
	// ErrNotFound reports a reference that doesn't resolve to a stored item.
	ErrNotFound = errors.New("item not found")
	// ErrExists reports an attempt to add an identifier that is already present.
	ErrExists = errors.New("item already exists")
	// ErrInvalidID reports a value that can't be resolved to an identifier.
	ErrInvalidID = errors.New("invalid identifier")
	// ErrTypeMismatch reports an item whose type violates a declared item type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// Element is anything with a stable identity.
type Element interface {
	ID() uuid.UUID
}

// NewID returns a fresh identifier.
func NewID() uuid.UUID {
	return uuidx.New()
}

// ValidateID resolves a single reference to its identifier.
func ValidateID(ref any) (uuid.UUID, error) {
	switch v := ref.(type) {
	case uuid.UUID:
		if v == uuid.Nil {
			return uuid.Nil, fmt.Errorf("%w: nil uuid", ErrInvalidID)
		}
		return v, nil
	case string:
		id, err := uuidx.Parse(v)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: %q: %w", ErrInvalidID, v, err)
		}
		return id, nil
	case Element:
		if v == nil {
			return uuid.Nil, fmt.Errorf("%w: nil element", ErrInvalidID)
		}
		return ValidateID(v.ID())
	case nil:
		return uuid.Nil, fmt.Errorf("%w: nil", ErrInvalidID)
	default:
		return uuid.Nil, fmt.Errorf("%w: unsupported reference type %T", ErrInvalidID, ref)
	}
}

// ValidateOrder flattens refs into an ordered list of identifiers. Slices of
// identifiers, strings or elements are expanded in place. A single invalid
// entry fails the whole call.
func ValidateOrder(refs ...any) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		switch v := ref.(type) {
		case []uuid.UUID:
			for _, id := range v {
				vid, err := ValidateID(id)
				if err != nil {
					return nil, err
				}
				out = append(out, vid)
			}
		case []string:
			for _, s := range v {
				id, err := ValidateID(s)
				if err != nil {
					return nil, err
				}
				out = append(out, id)
			}
		case []Element:
			for _, e := range v {
				id, err := ValidateID(e)
				if err != nil {
					return nil, err
				}
				out = append(out, id)
			}
		case []any:
			ids, err := ValidateOrder(v...)
			if err != nil {
				return nil, err
			}
			out = append(out, ids...)
		case Identifiers:
			out = append(out, v.IDs()...)
		default:
			id, err := ValidateID(ref)
			if err != nil {
				return nil, err
			}
			out = append(out, id)
		}
	}
	return out, nil
}

// Identifiers is implemented by ordered identifier collections so they can
// be passed anywhere a reference list is accepted.
type Identifiers interface {
	IDs() []uuid.UUID
}
