package store

import (
	"fmt"

	"github.com/google/uuid"
)

// IDCodec converts between the generic key type K and the driver
// values database/sql hands back, so a store can support non-integer
// primary keys: callers supply the codec that matches their key type
// instead of the store assuming an integer.
type IDCodec[K comparable] interface {
	Decode(raw any) (K, error)
	Encode(id K) any
}

// Int64Codec supports int64 primary keys.
type Int64Codec struct{}

func (Int64Codec) Decode(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("nstree: cannot decode %T as int64 id", raw)
	}
}

func (Int64Codec) Encode(id int64) any { return id }

// UUIDCodec supports github.com/google/uuid.UUID primary keys.
type UUIDCodec struct{}

func (UUIDCodec) Decode(raw any) (uuid.UUID, error) {
	switch v := raw.(type) {
	case uuid.UUID:
		return v, nil
	case []byte:
		return uuid.ParseBytes(v)
	case string:
		return uuid.Parse(v)
	default:
		return uuid.UUID{}, fmt.Errorf("nstree: cannot decode %T as uuid id", raw)
	}
}

func (UUIDCodec) Encode(id uuid.UUID) any { return id.String() }
