package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCursor(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Cursor
		wantErr bool
	}{
		{name: "empty is zero", input: "", want: ""},
		{name: "simple", input: "12345", want: "12345"},
		{name: "leading zeros normalised", input: "00042", want: "42"},
		{name: "surrounding whitespace", input: " 7 ", want: "7"},
		{name: "beyond uint64", input: "123456789012345678901234567890", want: "123456789012345678901234567890"},
		{name: "negative rejected", input: "-1", wantErr: true},
		{name: "not a number", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCursor(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCursor_Compare(t *testing.T) {
	assert.Equal(t, 0, Cursor("10").Compare("10"))
	assert.Equal(t, -1, Cursor("9").Compare("10"))
	assert.Equal(t, 1, Cursor("100000000000000000000").Compare("99999999999999999999"))
	assert.Equal(t, -1, Cursor("").Compare("1"))
}

func TestMaxCursor(t *testing.T) {
	assert.Equal(t, Cursor("20"), MaxCursor("20", "3"))
	assert.Equal(t, Cursor("20"), MaxCursor("3", "20"))
	assert.Equal(t, Cursor("5"), MaxCursor("", "5"))
}

func TestCursor_IsZero(t *testing.T) {
	assert.True(t, Cursor("").IsZero())
	assert.True(t, Cursor("0").IsZero())
	assert.False(t, Cursor("1").IsZero())
}

func TestCursorFromUint64(t *testing.T) {
	assert.Equal(t, Cursor(""), CursorFromUint64(0))
	assert.Equal(t, Cursor("18446744073709551615"), CursorFromUint64(^uint64(0)))

	v, ok := Cursor("18446744073709551615").Uint64()
	assert.True(t, ok)
	assert.Equal(t, ^uint64(0), v)

	_, ok = Cursor("18446744073709551616").Uint64()
	assert.False(t, ok)
}
