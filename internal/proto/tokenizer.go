package proto

import (
	"errors"
	"strconv"
	"unicode/utf8"
)

var (
	// ErrEndOfLine reports that a token was required but the line is fully
	// consumed.
	ErrEndOfLine = errors.New("protocol error: unexpected end of line")
	// ErrLineTooLong reports unconsumed data left after a command read all
	// the tokens it expects.
	ErrLineTooLong = errors.New("protocol error: expected end of line, but there was more")

	ErrInvalidString = errors.New("protocol error: invalid string")
	ErrInvalidUint32 = errors.New("protocol error: invalid u32")
	ErrInvalidUint64 = errors.New("protocol error: invalid u64")
)

// Tokenizer splits one already-extracted command line into space-delimited
// tokens. Commands consume their fields through the Next* methods and call
// Finish to reject malformed trailing data.
type Tokenizer struct {
	line []byte
	pos  int
}

func NewTokenizer(line []byte) *Tokenizer {
	return &Tokenizer{line: line}
}

// Next returns the next space-delimited token, advancing the cursor past the
// trailing space. The final token runs to the end of the line.
func (t *Tokenizer) Next() ([]byte, error) {
	if t.pos >= len(t.line) {
		return nil, ErrEndOfLine
	}

	for i := t.pos; i < len(t.line); i++ {
		if t.line[i] == ' ' {
			tok := t.line[t.pos:i]
			t.pos = i + 1
			return tok, nil
		}
	}

	tok := t.line[t.pos:]
	t.pos = len(t.line)
	return tok, nil
}

// NextString returns the next token decoded as UTF-8.
func (t *Tokenizer) NextString() (string, error) {
	tok, err := t.Next()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(tok) {
		return "", ErrInvalidString
	}
	return string(tok), nil
}

// NextBytes returns a copy of the next token.
func (t *Tokenizer) NextBytes() ([]byte, error) {
	tok, err := t.Next()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(tok))
	copy(out, tok)
	return out, nil
}

// NextUint32 returns the next token decoded as ASCII decimal.
func (t *Tokenizer) NextUint32() (uint32, error) {
	tok, err := t.Next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(string(tok), 10, 32)
	if err != nil {
		return 0, ErrInvalidUint32
	}
	return uint32(v), nil
}

// NextUint64 returns the next token decoded as ASCII decimal.
func (t *Tokenizer) NextUint64() (uint64, error) {
	tok, err := t.Next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(string(tok), 10, 64)
	if err != nil {
		return 0, ErrInvalidUint64
	}
	return v, nil
}

// Complete reports whether the cursor has consumed the whole line.
func (t *Tokenizer) Complete() bool {
	return t.pos >= len(t.line)
}

// Finish fails with ErrLineTooLong if unconsumed data remains.
func (t *Tokenizer) Finish() error {
	if t.Complete() {
		return nil
	}
	return ErrLineTooLong
}
