package services

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenChunker splits text into token-bounded fragments with a
// sliding-window overlap. Size and overlap are fixed at construction.
type TokenChunker struct {
	encoding  *tiktoken.Tiktoken
	chunkSize int
	overlap   int
}

// NewTokenChunker creates a chunker over the cl100k_base encoding
func NewTokenChunker(chunkSize, overlap int) (*TokenChunker, error) {
	if overlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, chunkSize)
	}

	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding: %w", err)
	}

	return &TokenChunker{
		encoding:  encoding,
		chunkSize: chunkSize,
		overlap:   overlap,
	}, nil
}

// Split produces an ordered sequence of text fragments. When the
// working window fills, it is emitted and re-seeded with its last
// overlap tokens so no boundary-adjacent text is chunk-local only.
// A trailing partial window is always emitted.
func (tc *TokenChunker) Split(text string) []string {
	tokens := tc.encoding.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil
	}

	var chunks []string
	var window []int
	fresh := 0 // tokens added since the last emit

	for _, token := range tokens {
		window = append(window, token)
		fresh++
		if len(window) >= tc.chunkSize {
			chunks = append(chunks, tc.encoding.Decode(window))
			tail := make([]int, tc.overlap)
			copy(tail, window[len(window)-tc.overlap:])
			window = tail
			fresh = 0
		}
	}

	// A bare reseeded tail carries no new tokens and is not re-emitted
	if len(window) > 0 && (fresh > 0 || len(chunks) == 0) {
		chunks = append(chunks, tc.encoding.Decode(window))
	}

	return chunks
}

// CountTokens returns the token length of text under the chunker's encoding
func (tc *TokenChunker) CountTokens(text string) int {
	return len(tc.encoding.Encode(text, nil, nil))
}

// ChunkSize returns the configured window size in tokens
func (tc *TokenChunker) ChunkSize() int {
	return tc.chunkSize
}

// Overlap returns the configured overlap in tokens
func (tc *TokenChunker) Overlap() int {
	return tc.overlap
}
