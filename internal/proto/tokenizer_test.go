package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizerSplitsOnSpaces(t *testing.T) {
	tk := NewTokenizer([]byte("set k 7 0 2"))

	for _, want := range []string{"set", "k", "7", "0", "2"} {
		tok, err := tk.Next()
		require.NoError(t, err)
		assert.Equal(t, want, string(tok))
	}
	assert.True(t, tk.Complete())
	require.NoError(t, tk.Finish())
}

func TestTokenizerEndOfLine(t *testing.T) {
	tk := NewTokenizer([]byte("get"))
	_, err := tk.Next()
	require.NoError(t, err)

	_, err = tk.Next()
	require.ErrorIs(t, err, ErrEndOfLine)
}

func TestTokenizerFinishRejectsTrailingGarbage(t *testing.T) {
	tk := NewTokenizer([]byte("get k extra"))
	_, err := tk.NextString()
	require.NoError(t, err)
	_, err = tk.NextString()
	require.NoError(t, err)

	assert.False(t, tk.Complete())
	require.ErrorIs(t, tk.Finish(), ErrLineTooLong)
}

func TestTokenizerNumericConversions(t *testing.T) {
	tk := NewTokenizer([]byte("42 18446744073709551615"))

	v32, err := tk.NextUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v32)

	v64, err := tk.NextUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), v64)
}

func TestTokenizerNumericErrors(t *testing.T) {
	tk := NewTokenizer([]byte("abc"))
	_, err := tk.NextUint32()
	require.ErrorIs(t, err, ErrInvalidUint32)

	// 2^32 overflows u32
	tk = NewTokenizer([]byte("4294967296"))
	_, err = tk.NextUint32()
	require.ErrorIs(t, err, ErrInvalidUint32)

	tk = NewTokenizer([]byte("-1"))
	_, err = tk.NextUint64()
	require.ErrorIs(t, err, ErrInvalidUint64)
}

func TestTokenizerInvalidUTF8(t *testing.T) {
	tk := NewTokenizer([]byte{0xff, 0xfe})
	_, err := tk.NextString()
	require.ErrorIs(t, err, ErrInvalidString)
}

func TestTokenizerNextBytesCopies(t *testing.T) {
	line := []byte("abc def")
	tk := NewTokenizer(line)

	tok, err := tk.NextBytes()
	require.NoError(t, err)
	line[0] = 'z'
	assert.Equal(t, []byte("abc"), tok)
}

func TestIsValidKey(t *testing.T) {
	assert.True(t, IsValidKey("user:123"))
	assert.False(t, IsValidKey(""))
	assert.False(t, IsValidKey("has space"))
	assert.False(t, IsValidKey("ctrl\x01"))
	assert.False(t, IsValidKey(string(make([]byte, MaxKeyLength+1))))
}
