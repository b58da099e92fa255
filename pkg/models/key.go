package models

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58/base58"
)

const (
	KeyLength  = 32
	HashLength = 32
)

var (
	ErrInvalidKey  = errors.New("invalid key")
	ErrInvalidHash = errors.New("invalid hash")
)

// Key is a fixed-size public identifier. It names wallets, agent signers and
// every derived record address. The zero Key means "none".
type Key [KeyLength]byte

// Hash is a fixed-size content commitment computed outside the ledger.
type Hash [HashLength]byte

func (k Key) IsZero() bool { return k == Key{} }

func (k Key) Bytes() []byte { return k[:] }

func (k Key) String() string { return base58.Encode(k[:]) }

// Short returns a truncated form for log lines.
func (k Key) Short() string {
	s := k.String()
	if len(s) <= 10 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(input []byte) error {
	parsed, err := ParseKey(string(input))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKey decodes the base58 text form of a key.
func ParseKey(raw string) (Key, error) {
	var k Key
	if raw == "" {
		return k, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	decoded, err := base58.Decode(raw)
	if err != nil {
		return k, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(decoded) != KeyLength {
		return k, fmt.Errorf("%w: length %d", ErrInvalidKey, len(decoded))
	}
	copy(k[:], decoded)
	return k, nil
}

func MustParseKey(raw string) Key {
	k, err := ParseKey(raw)
	if err != nil {
		panic(err)
	}
	return k
}

func BytesToKey(b []byte) Key {
	var k Key
	if len(b) > KeyLength {
		b = b[len(b)-KeyLength:]
	}
	copy(k[KeyLength-len(b):], b)
	return k
}

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) String() string { return base58.Encode(h[:]) }

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(input []byte) error {
	parsed, err := ParseHash(string(input))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash decodes the base58 text form of a commitment. An empty string
// decodes to the zero hash.
func ParseHash(raw string) (Hash, error) {
	var h Hash
	if raw == "" {
		return h, nil
	}
	decoded, err := base58.Decode(raw)
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if len(decoded) != HashLength {
		return h, fmt.Errorf("%w: length %d", ErrInvalidHash, len(decoded))
	}
	copy(h[:], decoded)
	return h, nil
}
