package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

const (
	// CodeAlphabet omits 0, O, 1 and I so codes survive being read aloud.
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 6

	maxCodeAttempts = 10
)

// CodeChecker reports whether a code is already taken.
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

type CodeGenerator struct {
	checker  CodeChecker
	random   io.Reader
	attempts int
}

func NewCodeGenerator(checker CodeChecker) *CodeGenerator {
	return &CodeGenerator{checker: checker, random: rand.Reader, attempts: maxCodeAttempts}
}

// Generate returns a code not present in the store.
func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < g.attempts; i++ {
		code, err := randomCode(g.random)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		taken, err := g.checker.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeGenerationExhausted
}

func randomCode(r io.Reader) (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	// 256 is a multiple of len(CodeAlphabet), so masking keeps the draw uniform.
	for i, b := range buf {
		buf[i] = CodeAlphabet[int(b)%len(CodeAlphabet)]
	}
	return string(buf), nil
}

// NormalizeCode upper-cases and trims s and reports whether it is a well-formed code.
func NormalizeCode(s string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(s))
	return code, ValidCode(code)
}

func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(CodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
