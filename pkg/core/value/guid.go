package value

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// GUIDLength - длина закодированного 128-битного id
const GUIDLength = 22

// NewGUID - случайный 128-битный id в base58, дополненный слева до GUIDLength
func NewGUID() string {
	id := uuid.New()
	return EncodeGUID(id[:])
}

// EncodeGUID кодирует 16 байт в base58 фиксированной ширины
func EncodeGUID(b []byte) string {
	s := base58.Encode(b)
	if len(s) < GUIDLength {
		s = strings.Repeat("1", GUIDLength-len(s)) + s
	}
	return s
}

func DecodeGUID(s string) ([]byte, error) {
	if len(s) != GUIDLength {
		return nil, fmt.Errorf("guid %q: expected %d characters, got %d", s, GUIDLength, len(s))
	}
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("guid %q: %w", s, err)
	}
	switch {
	case len(b) > 16:
		for _, z := range b[:len(b)-16] {
			if z != 0 {
				return nil, fmt.Errorf("guid %q: more than 128 bits", s)
			}
		}
		b = b[len(b)-16:]
	case len(b) < 16:
		b = append(make([]byte, 16-len(b)), b...)
	}
	return b, nil
}
