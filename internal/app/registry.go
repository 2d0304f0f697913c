package app

import (
	"fmt"
	"io"
	"strings"
)

const (
	// CodeAlphabet omits characters that are easy to misread (I, O, 0, 1).
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 4

	maxCodeAttempts = 32
)

// NewRoomCode draws a room code from src. The alphabet has 32 symbols, so a
// byte modulo its length is unbiased.
func NewRoomCode(src io.Reader) (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", fmt.Errorf("read code entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = CodeAlphabet[int(b)%len(CodeAlphabet)]
	}
	return string(buf), nil
}

// NormalizeCode upper-cases and trims a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
