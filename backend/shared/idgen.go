package shared

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// IDGenerator produces unique string identifiers.
type IDGenerator func() string

const (
	// ShaderIDAlphabet is the character set of shader and creator ids.
	ShaderIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// ShaderIDLength gives ~89 bits of entropy with the 62-character alphabet.
	ShaderIDLength = 15
)

// NanoID returns a generator of length-character ids drawn uniformly from
// alphabet (at most 256 characters) using crypto/rand.
func NanoID(alphabet string, length int) IDGenerator {
	// smallest 2^k-1 mask covering the alphabet, so rejection keeps the draw uniform
	mask := 1
	for mask < len(alphabet)-1 {
		mask = mask<<1 | 1
	}
	step := length * 2

	return func() string {
		id := make([]byte, 0, length)
		buf := make([]byte, step)
		for {
			if _, err := rand.Read(buf); err != nil {
				panic("idgen: crypto/rand failed: " + err.Error())
			}
			for _, b := range buf {
				idx := int(b) & mask
				if idx >= len(alphabet) {
					continue
				}
				id = append(id, alphabet[idx])
				if len(id) == length {
					return string(id)
				}
			}
		}
	}
}

// UUIDv7 returns a generator of time-sortable RFC 9562 UUID strings.
func UUIDv7() IDGenerator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// DefaultIDGenerator produces shader ids.
var DefaultIDGenerator = NanoID(ShaderIDAlphabet, ShaderIDLength)

// NewRequestID returns a correlation id for logs.
func NewRequestID() string {
	return uuid.New().String()
}
