package util

import "fmt"

// Chunker walks a document in fixed-size, non-overlapping batches measured in runes.
// Batch numbers start at 1. The final batch may be shorter than size.
type Chunker struct {
	runes []rune
	size  int
	pos   int
	num   int
}

func NewChunker(text string, size int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, size)
	}
	return &Chunker{runes: []rune(text), size: size}, nil
}

// Next returns the next batch number and its text. ok is false once the text is exhausted.
func (c *Chunker) Next() (number int, text string, ok bool) {
	if c.pos >= len(c.runes) {
		return 0, "", false
	}
	end := c.pos + c.size
	if end > len(c.runes) {
		end = len(c.runes)
	}
	text = string(c.runes[c.pos:end])
	c.pos = end
	c.num++
	return c.num, text, true
}

// Reset rewinds the chunker to the first batch.
func (c *Chunker) Reset() {
	c.pos = 0
	c.num = 0
}

// Count is the total number of batches, ceil(len(runes)/size).
func (c *Chunker) Count() int {
	return (len(c.runes) + c.size - 1) / c.size
}

func ChunkText(text string, chunkSize int) ([]string, error) {
	c, err := NewChunker(text, chunkSize)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, c.Count())
	for {
		_, part, ok := c.Next()
		if !ok {
			break
		}
		out = append(out, part)
	}
	return out, nil
}
