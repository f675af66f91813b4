// Package encoding provides the byte-level primitives used to build
// byte-comparable composite keys, and a Key type for displaying them.
package encoding

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// Key is a raw row or column key. It marshals to and from lowercase hex,
// so JSON and YAML output shows keys byte for byte.
type Key []byte

func (k Key) String() string {
	return hex.EncodeToString(k)
}

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(k)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	*k = b
	return nil
}

// Printable renders k for humans: printable ASCII is kept, each segment
// terminator becomes '|' and any other byte is written as \xNN. The
// rendering is not reversible; a literal '|' or '\' is escaped too.
func (k Key) Printable() string {
	var sb strings.Builder
	sb.Grow(len(k))
	for _, c := range k {
		switch {
		case c == Terminator:
			sb.WriteByte('|')
		case c == '|' || c == '\\' || c < 0x20 || c > 0x7e:
			sb.WriteString(`\x`)
			if c < 0x10 {
				sb.WriteByte('0')
			}
			sb.WriteString(strconv.FormatUint(uint64(c), 16))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
