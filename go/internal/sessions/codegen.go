package sessions

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

const (
	// CodeLength is the number of characters in a session code
	CodeLength = 6
	// CodeAlphabet is the set of characters a session code is drawn from
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// RandSource supplies uniformly distributed integers in [0, n).
type RandSource interface {
	IntN(n int) int
}

// CodeChecker reports whether a code has already been issued.
type CodeChecker interface {
	SessionCodeExists(ctx context.Context, code string) (bool, error)
}

// lockedRand makes a *rand.Rand safe for concurrent use.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandSource returns a concurrency-safe RandSource seeded from the runtime.
func NewRandSource() RandSource {
	return &lockedRand{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// CodeGenerator produces session codes that have never been issued.
type CodeGenerator struct {
	rnd   RandSource
	store CodeChecker
}

// NewCodeGenerator creates a CodeGenerator
func NewCodeGenerator(rnd RandSource, store CodeChecker) *CodeGenerator {
	if rnd == nil {
		rnd = NewRandSource()
	}
	return &CodeGenerator{rnd: rnd, store: store}
}

// Generate draws codes until one is unused. There is no attempt bound;
// the loop ends when a free code is found, the store fails, or ctx is done.
func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code := g.draw()
		exists, err := g.store.SessionCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check session code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
}

func (g *CodeGenerator) draw() string {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(CodeAlphabet[g.rnd.IntN(len(CodeAlphabet))])
	}
	return b.String()
}

// NormalizeCode upper-cases code and checks it has the session code shape.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != CodeLength {
		return "", fmt.Errorf("%w: session code must be %d characters", ErrValidation, CodeLength)
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(CodeAlphabet, code[i]) < 0 {
			return "", fmt.Errorf("%w: session code contains invalid character %q", ErrValidation, code[i])
		}
	}
	return code, nil
}
