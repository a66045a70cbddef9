package tips

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tips.yaml
var defaultCatalog []byte

// Tip is one focus suggestion. Tags are matched against request context.
type Tip struct {
	Text string   `yaml:"text" json:"tip"`
	Tags []string `yaml:"tags" json:"-"`
}

type catalogFile struct {
	Tips []Tip `yaml:"tips"`
}

// Catalog serves tips from a fixed list
type Catalog struct {
	tips []Tip

	mu  sync.Mutex
	rnd *rand.Rand
}

// Default returns the built-in catalog
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in tips catalog is invalid: %v", err))
	}
	return c
}

// Load reads a YAML catalog from path
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tips file: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML with a top-level tips list
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tips: %w", err)
	}
	return New(file.Tips)
}

// New builds a catalog from tips. Blank tips are dropped.
func New(tips []Tip) (*Catalog, error) {
	kept := make([]Tip, 0, len(tips))
	for _, t := range tips {
		t.Text = strings.TrimSpace(t.Text)
		if t.Text == "" {
			continue
		}
		for i, tag := range t.Tags {
			t.Tags[i] = strings.ToLower(strings.TrimSpace(tag))
		}
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		return nil, errors.New("tips catalog is empty")
	}
	return &Catalog{
		tips: kept,
		rnd:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}, nil
}

// Len returns the number of tips
func (c *Catalog) Len() int {
	return len(c.tips)
}

// Random returns any tip
func (c *Catalog) Random() Tip {
	return c.pick(c.tips)
}

// Contextual returns a tip whose tags appear in context, or a random tip
// when none match.
func (c *Catalog) Contextual(context string) Tip {
	words := strings.FieldsFunc(strings.ToLower(context), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if len(words) == 0 {
		return c.Random()
	}

	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[w] = struct{}{}
	}

	var matches []Tip
	for _, t := range c.tips {
		for _, tag := range t.Tags {
			if _, ok := seen[tag]; ok {
				matches = append(matches, t)
				break
			}
		}
	}
	if len(matches) == 0 {
		return c.Random()
	}
	return c.pick(matches)
}

func (c *Catalog) pick(from []Tip) Tip {
	c.mu.Lock()
	defer c.mu.Unlock()
	return from[c.rnd.IntN(len(from))]
}
