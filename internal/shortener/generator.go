package shortener

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MrSnakeDoc/hop/internal/domain"
)

const (
	DefaultCodeLength   = 6
	DefaultCodeAttempts = 5
)

// ClaimFunc tries to take code. It returns domain.ErrCodeConflict when the
// code is already taken; any other error aborts generation.
type ClaimFunc func(ctx context.Context, code string) error

// Generator produces unique short codes.
//
// Random codes are drawn from the base-62 alphabet with crypto/rand.
// A batch of Attempts draws is made at Length; if all collide, one more batch
// is made at Length+1 before giving up with domain.ErrGenerationExhausted.
type Generator struct {
	lookup   domain.LinkStore
	reserved *domain.ReservedCodes
	rand     io.Reader
	length   int
	attempts int
}

// GeneratorOption customises a Generator.
type GeneratorOption func(*Generator)

// WithCodeLength sets the base length of random codes.
func WithCodeLength(n int) GeneratorOption {
	return func(g *Generator) {
		if n >= domain.MinCodeLength && n < domain.MaxCodeLength {
			g.length = n
		}
	}
}

// WithAttempts sets the number of draws per length.
func WithAttempts(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.attempts = n
		}
	}
}

// WithRandom replaces crypto/rand.Reader. Tests only.
func WithRandom(r io.Reader) GeneratorOption {
	return func(g *Generator) { g.rand = r }
}

// NewGenerator builds a generator. store is only used by Generate as the
// existence check; Claim relies on the caller's claim function instead.
func NewGenerator(store domain.LinkStore, reserved *domain.ReservedCodes, opts ...GeneratorOption) *Generator {
	g := &Generator{
		lookup:   store,
		reserved: reserved,
		rand:     rand.Reader,
		length:   DefaultCodeLength,
		attempts: DefaultCodeAttempts,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a code that did not exist at the time of the check.
// A custom code is validated and checked once, never retried.
func (g *Generator) Generate(ctx context.Context, custom string) (string, error) {
	return g.Claim(ctx, custom, g.checkFree)
}

// Claim runs the generation policy with claim as the existence check.
// When claim is the insert itself, the store's uniqueness constraint is what
// settles concurrent requests for the same code.
func (g *Generator) Claim(ctx context.Context, custom string, claim ClaimFunc) (string, error) {
	if custom != "" {
		return g.claimCustom(ctx, custom, claim)
	}

	for _, length := range []int{g.length, g.length + 1} {
		for i := 0; i < g.attempts; i++ {
			code, err := g.randomCode(length)
			if err != nil {
				return "", err
			}
			if g.reserved.Contains(code) {
				continue
			}

			err = claim(ctx, code)
			switch {
			case err == nil:
				return code, nil
			case errors.Is(err, domain.ErrCodeConflict):
				continue
			default:
				return "", err
			}
		}
	}

	return "", domain.ErrGenerationExhausted
}

func (g *Generator) claimCustom(ctx context.Context, custom string, claim ClaimFunc) (string, error) {
	if err := domain.ValidateCode(custom); err != nil {
		return "", err
	}
	if g.reserved.Contains(custom) {
		return "", fmt.Errorf("%w: %q is reserved", domain.ErrCodeConflict, custom)
	}
	if err := claim(ctx, custom); err != nil {
		return "", err
	}
	return custom, nil
}

func (g *Generator) checkFree(ctx context.Context, code string) error {
	_, err := g.lookup.FindLinkByCode(ctx, code)
	switch {
	case err == nil:
		return domain.ErrCodeConflict
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

// randomCode draws each character uniformly from the 62-char alphabet.
// Bytes are masked to 6 bits and values >= 62 are redrawn, so there is no
// modulo bias.
func (g *Generator) randomCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)

	buf := make([]byte, length)
	for b.Len() < length {
		if _, err := io.ReadFull(g.rand, buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, c := range buf {
			idx := c & 0x3f
			if int(idx) >= len(domain.Base62Alphabet) {
				continue
			}
			b.WriteByte(domain.Base62Alphabet[idx])
			if b.Len() == length {
				break
			}
		}
	}
	return b.String(), nil
}
