package ids

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ID represents a unique identifier for markets, proposals and escrows.
type ID [32]byte

// Empty is the zero ID.
var Empty = ID{}

// Generate creates a random ID.
func Generate() ID {
	var id ID
	rand.Read(id[:])
	return id
}

// GenerateTestID creates a random ID for testing.
func GenerateTestID() ID {
	return Generate()
}

// FromData derives a deterministic ID from arbitrary bytes.
func FromData(data []byte) ID {
	return ID(sha256.Sum256(data))
}

// String returns the hex representation of the ID.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 8 hex characters, for log lines.
func (id ID) Short() string {
	return hex.EncodeToString(id[:4])
}

// Bytes returns the byte representation of the ID.
func (id ID) Bytes() []byte {
	return id[:]
}

// IsEmpty reports whether the ID is the zero value.
func (id ID) IsEmpty() bool {
	return id == Empty
}

// FromString creates an ID from a hex string.
func FromString(s string) (ID, error) {
	var id ID
	bytes, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(bytes) != 32 {
		return id, fmt.Errorf("invalid ID length: expected 32, got %d", len(bytes))
	}
	copy(id[:], bytes)
	return id, nil
}
