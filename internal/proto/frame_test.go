package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckIncompleteLine(t *testing.T) {
	c := NewCursor([]byte("GET k"))
	require.ErrorIs(t, Check(c), ErrIncomplete)
}

func TestCheckEmptyBuffer(t *testing.T) {
	c := NewCursor(nil)
	require.ErrorIs(t, Check(c), ErrIncomplete)
}

func TestCheckSimpleFrameAdvancesCursor(t *testing.T) {
	c := NewCursor([]byte("GET k\r\n"))
	require.NoError(t, Check(c))
	assert.Equal(t, 7, c.Pos())
}

func TestCheckStorageFrameNeedsDataLine(t *testing.T) {
	c := NewCursor([]byte("set k 0 0 2\r\n"))
	require.ErrorIs(t, Check(c), ErrIncomplete)

	c = NewCursor([]byte("set k 0 0 2\r\nhi"))
	require.ErrorIs(t, Check(c), ErrIncomplete)

	c = NewCursor([]byte("set k 0 0 2\r\nhi\r\n"))
	require.NoError(t, Check(c))
	assert.Equal(t, 17, c.Pos())
}

func TestParseSimpleFrame(t *testing.T) {
	c := NewCursor([]byte("get a b\r\n"))
	require.NoError(t, Check(c))
	c.Reset()

	fr, err := Parse(c)
	require.NoError(t, err)
	assert.False(t, fr.Storage)
	assert.Equal(t, []byte("get a b"), fr.Line)
	assert.Nil(t, fr.Data)
}

func TestParseStorageFrame(t *testing.T) {
	c := NewCursor([]byte("set k 0 0 2\r\nhi\r\n"))
	require.NoError(t, Check(c))
	c.Reset()

	fr, err := Parse(c)
	require.NoError(t, err)
	assert.True(t, fr.Storage)
	assert.Equal(t, []byte("set k 0 0 2"), fr.Line)
	assert.Equal(t, []byte("hi"), fr.Data)
}

func TestFirstByteDispatchIgnoresCommandName(t *testing.T) {
	// Any leading byte in the storage set selects two-line framing, even for
	// words that are not real storage commands.
	c := NewCursor([]byte("sandwich k\r\n"))
	require.ErrorIs(t, Check(c), ErrIncomplete)

	c = NewCursor([]byte("sandwich k\r\nextra\r\n"))
	require.NoError(t, Check(c))
}

func TestParseLeavesRemainderForNextFrame(t *testing.T) {
	buf := []byte("get a\r\nget b\r\n")
	c := NewCursor(buf)
	require.NoError(t, Check(c))
	require.Equal(t, 7, c.Pos())

	c.Reset()
	fr, err := Parse(c)
	require.NoError(t, err)
	assert.Equal(t, []byte("get a"), fr.Line)

	next := NewCursor(buf[c.Pos():])
	require.NoError(t, Check(next))
	next.Reset()
	fr, err = Parse(next)
	require.NoError(t, err)
	assert.Equal(t, []byte("get b"), fr.Line)
}

func TestParseCopiesOutOfBuffer(t *testing.T) {
	buf := []byte("get a\r\n")
	c := NewCursor(buf)
	require.NoError(t, Check(c))
	c.Reset()

	fr, err := Parse(c)
	require.NoError(t, err)
	buf[4] = 'z'
	assert.Equal(t, []byte("get a"), fr.Line)
}
