package ingest

import (
	"fmt"
	"strings"

	"github.com/benekli/minerva/pkg/config"
)

// Chunk is one piece of a split document.
type Chunk struct {
	Text  string
	Index int
	Total int
}

// Chunker splits document text into chunks.
type Chunker interface {
	Chunk(text string) []Chunk
}

// NewChunker builds the configured chunking strategy.
func NewChunker(cfg *config.ChunkingConfig) (Chunker, error) {
	switch cfg.Strategy {
	case "", "simple":
		return &SimpleChunker{size: cfg.Size}, nil
	case "overlapping":
		overlap := cfg.Overlap
		if overlap <= 0 {
			overlap = cfg.Size / 5
		}
		return &OverlappingChunker{size: cfg.Size, overlap: overlap}, nil
	case "semantic":
		return &SemanticChunker{size: cfg.Size}, nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q", cfg.Strategy)
	}
}

// SimpleChunker groups whole lines into chunks up to the target size.
// Chunks never split mid-line.
type SimpleChunker struct {
	size int
}

func (c *SimpleChunker) Chunk(text string) []Chunk {
	if len(text) <= c.size {
		return singleChunk(text)
	}

	var chunks []Chunk
	var current strings.Builder

	for _, line := range strings.Split(text, "\n") {
		lineWithNewline := line + "\n"
		if current.Len() > 0 && current.Len()+len(lineWithNewline) > c.size {
			chunks = append(chunks, Chunk{Text: current.String(), Index: len(chunks)})
			current.Reset()
		}
		current.WriteString(lineWithNewline)
	}
	if current.Len() > 0 {
		chunks = append(chunks, Chunk{Text: current.String(), Index: len(chunks)})
	}

	return finalize(chunks)
}

// OverlappingChunker repeats trailing lines at the start of the next chunk
// so information spanning a boundary stays retrievable.
type OverlappingChunker struct {
	size    int
	overlap int
}

func (c *OverlappingChunker) Chunk(text string) []Chunk {
	if len(text) <= c.size {
		return singleChunk(text)
	}

	lines := strings.Split(text, "\n")
	var chunks []Chunk
	var current []string
	currentLen := 0

	for _, line := range lines {
		current = append(current, line)
		currentLen += len(line) + 1

		if currentLen >= c.size {
			chunks = append(chunks, Chunk{Text: strings.Join(current, "\n") + "\n", Index: len(chunks)})

			// Carry trailing lines into the next chunk as overlap.
			var carry []string
			carryLen := 0
			for i := len(current) - 1; i >= 0 && carryLen < c.overlap; i-- {
				carry = append([]string{current[i]}, carry...)
				carryLen += len(current[i]) + 1
			}
			current = carry
			currentLen = carryLen
		}
	}
	if currentLen > 0 {
		chunks = append(chunks, Chunk{Text: strings.Join(current, "\n") + "\n", Index: len(chunks)})
	}

	return finalize(chunks)
}

// SemanticChunker prefers breaking at blank lines and block ends, forcing a
// split only when a chunk reaches twice the target size.
type SemanticChunker struct {
	size int
}

func (c *SemanticChunker) Chunk(text string) []Chunk {
	if len(text) <= c.size {
		return singleChunk(text)
	}

	var chunks []Chunk
	var current strings.Builder

	for _, line := range strings.Split(text, "\n") {
		lineWithNewline := line + "\n"

		if current.Len() > 0 && current.Len()+len(lineWithNewline) > c.size && isBreakPoint(line) {
			chunks = append(chunks, Chunk{Text: current.String(), Index: len(chunks)})
			current.Reset()
		} else if current.Len() > c.size*2 {
			chunks = append(chunks, Chunk{Text: current.String(), Index: len(chunks)})
			current.Reset()
		}

		current.WriteString(lineWithNewline)
	}
	if current.Len() > 0 {
		chunks = append(chunks, Chunk{Text: current.String(), Index: len(chunks)})
	}

	return finalize(chunks)
}

func isBreakPoint(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" ||
		trimmed == "}" ||
		trimmed == "}," ||
		strings.HasPrefix(trimmed, "func ") ||
		strings.HasPrefix(trimmed, "type ") ||
		strings.HasPrefix(trimmed, "#")
}

func singleChunk(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []Chunk{{Text: text, Index: 0, Total: 1}}
}

func finalize(chunks []Chunk) []Chunk {
	for i := range chunks {
		chunks[i].Total = len(chunks)
	}
	return chunks
}
