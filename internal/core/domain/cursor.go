package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// Cursor is an opaque position in the remote change log.
// Gmail history ids are unsigned integers of unbounded width, so cursors are
// kept as decimal strings and compared numerically.
type Cursor string

// ParseCursor validates a decimal cursor string.
// The empty string is the zero cursor.
func ParseCursor(s string) (Cursor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("%w: cursor %q is not a non-negative integer", ErrInvalidInput, s)
	}
	return Cursor(n.String()), nil
}

// CursorFromUint64 converts a numeric history id into a cursor.
func CursorFromUint64(v uint64) Cursor {
	if v == 0 {
		return ""
	}
	return Cursor(new(big.Int).SetUint64(v).String())
}

// IsZero returns true when no cursor is set.
func (c Cursor) IsZero() bool {
	return c == "" || c == "0"
}

// String returns the decimal form of the cursor.
func (c Cursor) String() string {
	return string(c)
}

// Uint64 returns the cursor as a uint64. ok is false when it does not fit.
func (c Cursor) Uint64() (v uint64, ok bool) {
	n := c.bigInt()
	if !n.IsUint64() {
		return 0, false
	}
	return n.Uint64(), true
}

// Compare returns -1, 0 or +1 depending on numeric ordering.
// Unparseable cursors compare as zero.
func (c Cursor) Compare(other Cursor) int {
	return c.bigInt().Cmp(other.bigInt())
}

// Less reports whether c is strictly before other.
func (c Cursor) Less(other Cursor) bool {
	return c.Compare(other) < 0
}

// MaxCursor returns the later of a and b.
func MaxCursor(a, b Cursor) Cursor {
	if a.Less(b) {
		return b
	}
	return a
}

func (c Cursor) bigInt() *big.Int {
	n, ok := new(big.Int).SetString(string(c), 10)
	if !ok {
		return new(big.Int)
	}
	return n
}
