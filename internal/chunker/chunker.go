// Package chunker splits extracted document text into bounded, overlapping
// segments suitable for embedding.
//
// Splitting is recursive: the text is first cut at paragraph boundaries,
// pieces that are still too long are cut at line, then sentence, then word
// boundaries, and anything left over is hard-cut character by character.
// The resulting pieces are merged greedily into chunks of at most MaxSize
// characters, and each new chunk starts with trailing pieces of the previous
// one totalling at most Overlap characters.
//
// Lengths are measured in runes, not bytes.
package chunker

import (
	"fmt"
	"strings"
)

const (
	// DefaultMaxSize is the default maximum chunk length in characters.
	DefaultMaxSize = 800

	// DefaultOverlap is the default number of characters shared by
	// consecutive chunks.
	DefaultOverlap = 150
)

// separatorLevels lists boundaries from coarsest to finest.
var separatorLevels = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "? ", "! "},
	{" "},
}

// Chunker splits text into overlapping chunks. It holds no mutable state and
// is safe for concurrent use.
type Chunker struct {
	maxSize        int
	overlap        int
	keepLongTokens bool
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithMaxSize sets the maximum chunk length in characters.
func WithMaxSize(n int) Option {
	return func(c *Chunker) { c.maxSize = n }
}

// WithOverlap sets the number of characters carried from one chunk into the
// next.
func WithOverlap(n int) Option {
	return func(c *Chunker) { c.overlap = n }
}

// WithKeepLongTokens disables the hard-cut fallback. A single token longer
// than MaxSize is then emitted intact as its own chunk.
func WithKeepLongTokens(keep bool) Option {
	return func(c *Chunker) { c.keepLongTokens = keep }
}

// New creates a Chunker. It returns an error when MaxSize is not positive,
// Overlap is negative, or Overlap is not smaller than MaxSize.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		maxSize: DefaultMaxSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.maxSize <= 0 {
		return nil, fmt.Errorf("chunker: max size must be positive, got %d", c.maxSize)
	}
	if c.overlap < 0 {
		return nil, fmt.Errorf("chunker: overlap must not be negative, got %d", c.overlap)
	}
	if c.overlap >= c.maxSize {
		return nil, fmt.Errorf("chunker: overlap (%d) must be smaller than max size (%d)", c.overlap, c.maxSize)
	}
	return c, nil
}

// Split is a convenience wrapper that chunks text with the given limits.
func Split(text string, maxSize, overlap int) ([]string, error) {
	c, err := New(WithMaxSize(maxSize), WithOverlap(overlap))
	if err != nil {
		return nil, err
	}
	return c.Chunk(text), nil
}

// MaxSize returns the configured maximum chunk length.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into an ordered sequence of chunks. Identical input
// always yields an identical sequence. Whitespace-only input yields no
// chunks.
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	pieces := c.segment(runes, span{0, len(runes)}, 0, nil)
	return c.merge(runes, pieces)
}

// span is a half-open rune range [start, end) into the source text.
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// segment appends to out the pieces of s, each no longer than maxSize unless
// it is an unsplittable token and keepLongTokens is set.
func (c *Chunker) segment(runes []rune, s span, level int, out []span) []span {
	if s.len() <= c.maxSize {
		return append(out, s)
	}

	for ; level < len(separatorLevels); level++ {
		parts := splitAfter(runes, s, separatorLevels[level])
		if len(parts) < 2 {
			continue
		}
		for _, p := range parts {
			out = c.segment(runes, p, level+1, out)
		}
		return out
	}

	if c.keepLongTokens {
		return append(out, s)
	}

	// Hard cut: every character becomes its own piece so the merge step can
	// fill chunks exactly to maxSize and carry exactly overlap characters.
	for i := s.start; i < s.end; i++ {
		out = append(out, span{i, i + 1})
	}
	return out
}

// splitAfter cuts s immediately after every occurrence of any separator.
// Separators stay attached to the preceding part so the parts are
// contiguous and cover s exactly.
func splitAfter(runes []rune, s span, seps []string) []span {
	var parts []span
	start := s.start
	for i := s.start; i < s.end; {
		n := matchAt(runes, i, s.end, seps)
		if n == 0 {
			i++
			continue
		}
		i += n
		parts = append(parts, span{start, i})
		start = i
	}
	if start < s.end {
		parts = append(parts, span{start, s.end})
	}
	return parts
}

// matchAt returns the rune length of the separator found at position i, or
// 0 if none matches.
func matchAt(runes []rune, i, end int, seps []string) int {
	for _, sep := range seps {
		n := len(sep) // separators are ASCII
		if i+n > end {
			continue
		}
		ok := true
		for j := 0; j < n; j++ {
			if runes[i+j] != rune(sep[j]) {
				ok = false
				break
			}
		}
		if ok {
			return n
		}
	}
	return 0
}

// merge packs contiguous pieces into chunks of at most maxSize characters,
// seeding each chunk with trailing pieces of the previous one. A window whose
// own pieces are all whitespace adds nothing beyond the carried overlap and
// is not emitted.
func (c *Chunker) merge(runes []rune, pieces []span) []string {
	var (
		chunks  []string
		window  []span
		carried int // leading pieces of window taken from the previous chunk
		total   int
	)

	emit := func() {
		fresh := false
		for _, p := range window[carried:] {
			if strings.TrimSpace(string(runes[p.start:p.end])) != "" {
				fresh = true
				break
			}
		}
		if !fresh {
			return
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[window[0].start:window[len(window)-1].end])))
	}

	for _, p := range pieces {
		n := p.len()
		if len(window) > 0 && total+n > c.maxSize {
			emit()
			for len(window) > 0 && (total > c.overlap || total+n > c.maxSize) {
				total -= window[0].len()
				window = window[1:]
			}
			carried = len(window)
		}
		window = append(window, p)
		total += n
	}
	emit()

	return chunks
}
