package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"
)

const PublicKeyLength = 32

type SourceID string

const (
	// SourcePhantom is the primary injected wallet.
	SourcePhantom SourceID = "phantom"
	// SourceBackpack is the first secondary injected wallet.
	SourceBackpack SourceID = "backpack"
	// SourceTrust is the second secondary injected wallet. It emits spurious
	// disconnect/reconnect pairs while switching accounts.
	SourceTrust SourceID = "trust"
	SourceGlow  SourceID = "glow"
	// SourceAdapter is the caller supplied adapter wallet.
	SourceAdapter SourceID = "adapter"
	// SourceExternalKey marks changes adopted from the caller supplied key.
	SourceExternalKey SourceID = "external_key"
	// SourceStorage marks the identity restored at initialization.
	SourceStorage SourceID = "storage"
)

func (s SourceID) String() string { return string(s) }

func NormalizeSourceID(raw string) SourceID {
	return SourceID(strings.TrimSpace(strings.ToLower(raw)))
}

type SourceKind string

const (
	SourceKindInjected SourceKind = "injected"
	SourceKindAdapter  SourceKind = "adapter"
)

type EventKind string

const (
	EventConnect        EventKind = "connect"
	EventDisconnect     EventKind = "disconnect"
	EventAccountChanged EventKind = "accountChanged"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventConnect, EventDisconnect, EventAccountChanged:
		return true
	default:
		return false
	}
}

// AdapterEvents is the event set attached to the external adapter handle.
var AdapterEvents = []EventKind{EventConnect, EventDisconnect}

type ChangeReason string

const (
	ChangeReasonInitialize     ChangeReason = "initialize"
	ChangeReasonAccountChanged ChangeReason = "account_changed"
	ChangeReasonReconnect      ChangeReason = "reconnect"
	ChangeReasonConnect        ChangeReason = "connect"
	ChangeReasonDisconnect     ChangeReason = "disconnect"
	ChangeReasonFallback       ChangeReason = "fallback"
	ChangeReasonAdapterAttach  ChangeReason = "adapter_attach"
)

// PublicKey is a 32 byte account key. Its canonical form is base58.
type PublicKey [PublicKeyLength]byte

func ParsePublicKey(raw string) (PublicKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return PublicKey{}, fmt.Errorf("%w: empty value", ErrMalformedKey)
	}
	decoded, err := base58.Decode(trimmed)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return PublicKeyFromBytes(decoded)
}

func MustParsePublicKey(raw string) PublicKey {
	key, err := ParsePublicKey(raw)
	if err != nil {
		panic(err)
	}
	return key
}

func PublicKeyFromBytes(raw []byte) (PublicKey, error) {
	if len(raw) != PublicKeyLength {
		return PublicKey{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedKey, PublicKeyLength, len(raw))
	}
	var key PublicKey
	copy(key[:], raw)
	return key, nil
}

func (k PublicKey) String() string {
	return base58.Encode(k[:])
}

func (k PublicKey) Bytes() []byte {
	out := make([]byte, PublicKeyLength)
	copy(out, k[:])
	return out
}

func (k PublicKey) Ptr() *PublicKey {
	return &k
}

func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// KeysEqual compares nullable keys by value.
func KeysEqual(a, b *PublicKey) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func CloneKey(key *PublicKey) *PublicKey {
	if key == nil {
		return nil
	}
	copied := *key
	return &copied
}

func KeyString(key *PublicKey) string {
	if key == nil {
		return ""
	}
	return key.String()
}

type Change struct {
	Previous *PublicKey
	Current  *PublicKey
	Source   SourceID
	Reason   ChangeReason
	At       time.Time
}

func (c Change) Cleared() bool {
	return c.Previous != nil && c.Current == nil
}

type AdapterDescriptor struct {
	Name   string
	Handle Handle
}

func (d *AdapterDescriptor) normalizedName() string {
	if d == nil {
		return ""
	}
	return strings.TrimSpace(d.Name)
}

type Snapshot struct {
	Active       *PublicKey
	Initialized  bool
	ExternalKey  *PublicKey
	Adapter      string
	Sources      []SourceID
	Generations  map[SourceID]uint64
	PendingClear []SourceID
}
