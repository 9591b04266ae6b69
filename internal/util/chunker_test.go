package util

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkText(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks, err := ChunkText(text, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"abcdefghij", "klmnopqrst", "uvwxyz"}, chunks)
}

func TestChunkTextReconstructs(t *testing.T) {
	docs := []string{
		"",
		"a",
		"exactly-ten",
		"  leading and trailing whitespace is kept  \n\n",
		strings.Repeat("héllo wörld ", 37),
		"日本語のテキストも文字単位で分割される。",
	}
	for _, doc := range docs {
		for size := 1; size <= 13; size++ {
			chunks, err := ChunkText(doc, size)
			require.NoError(t, err)
			require.Equal(t, doc, strings.Join(chunks, ""), "size=%d", size)
			n := len([]rune(doc))
			require.Len(t, chunks, (n+size-1)/size, "size=%d", size)
			for i, c := range chunks {
				if i < len(chunks)-1 {
					require.Len(t, []rune(c), size)
				}
			}
		}
	}
}

func TestChunkerNumbersAndReset(t *testing.T) {
	c, err := NewChunker("abcde", 2)
	require.NoError(t, err)
	require.Equal(t, 3, c.Count())

	var nums []int
	var parts []string
	for {
		n, part, ok := c.Next()
		if !ok {
			break
		}
		nums = append(nums, n)
		parts = append(parts, part)
	}
	require.Equal(t, []int{1, 2, 3}, nums)
	require.Equal(t, []string{"ab", "cd", "e"}, parts)

	c.Reset()
	n, part, ok := c.Next()
	require.True(t, ok)
	require.Equal(t, 1, n)
	require.Equal(t, "ab", part)
}

func TestChunkerRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := NewChunker("abc", size)
		if !errors.Is(err, ErrInvalidChunkSize) {
			t.Fatalf("size %d: expected ErrInvalidChunkSize, got %v", size, err)
		}
	}
}
