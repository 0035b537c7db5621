package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/databases"
	"github.com/benekli/minerva/pkg/embedders"
)

// embedBatchSize bounds how many chunks go to the embedder per call.
const embedBatchSize = 32

// Stats summarizes an ingestion run.
type Stats struct {
	FilesSeen    int
	FilesSkipped int
	FilesFailed  int
	Chunks       int
}

// Pipeline walks a directory, extracts and chunks documents, embeds the
// chunks, and writes them to the vector store.
type Pipeline struct {
	source     *config.DocumentSourceConfig
	chunker    Chunker
	embedder   embedders.Embedder
	store      databases.Store
	collection string
	logger     *slog.Logger
}

// NewPipeline builds an ingestion pipeline from a document store config.
func NewPipeline(cfg *config.DocumentStoreConfig, embedder embedders.Embedder, store databases.Store, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil || cfg.Source == nil {
		return nil, fmt.Errorf("document source configuration is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	chunker, err := NewChunker(cfg.Chunking)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		source:     cfg.Source,
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		collection: cfg.Collection,
		logger:     logger,
	}, nil
}

// Run ingests every matching file under the source path. Individual file
// failures are logged and counted, not fatal.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := filepath.Walk(p.source.Path, func(path string, info os.FileInfo, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			stats.FilesFailed++
			return nil
		}

		if info.IsDir() {
			if path != p.source.Path && p.excluded(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		stats.FilesSeen++

		if info.Size() == 0 ||
			(p.source.MaxFileSize > 0 && info.Size() > p.source.MaxFileSize) ||
			p.excluded(info.Name()) || !p.included(info.Name()) {
			stats.FilesSkipped++
			return nil
		}

		chunks, err := p.ingestFile(ctx, path)
		if err != nil {
			p.logger.Warn("failed to ingest file", "path", path, "error", err)
			stats.FilesFailed++
			return nil
		}
		stats.Chunks += chunks

		return nil
	})
	if err != nil {
		return stats, err
	}

	p.logger.Info("ingestion complete",
		"path", p.source.Path,
		"collection", p.collection,
		"files", stats.FilesSeen,
		"skipped", stats.FilesSkipped,
		"failed", stats.FilesFailed,
		"chunks", stats.Chunks)

	return stats, nil
}

// AddDocument ingests a single file regardless of the include patterns.
// Re-adding a path overwrites its chunks (record ids are path-derived).
func (p *Pipeline) AddDocument(ctx context.Context, path string) (int, error) {
	return p.ingestFile(ctx, path)
}

// RemoveDocument deletes every chunk that came from the given source path.
func (p *Pipeline) RemoveDocument(ctx context.Context, path string) error {
	return p.store.DeleteByFilter(ctx, p.collection, map[string]interface{}{"source": path})
}

func (p *Pipeline) ingestFile(ctx context.Context, path string) (int, error) {
	doc, err := ExtractFile(ctx, path)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(doc.Text) == "" {
		return 0, nil
	}

	chunks := p.chunker.Chunk(doc.Text)
	if len(chunks) == 0 {
		return 0, nil
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embedding failed: %w", err)
		}
		if len(vectors) != len(batch) {
			return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		records := make([]databases.Record, len(batch))
		for i, chunk := range batch {
			metadata := map[string]interface{}{
				"source":      doc.Path,
				"title":       doc.Title,
				"chunk_index": chunk.Index,
				"chunk_total": chunk.Total,
			}
			for k, v := range doc.Metadata {
				metadata[k] = v
			}
			records[i] = databases.Record{
				ID:       fmt.Sprintf("%s#%d", doc.Path, chunk.Index),
				Vector:   vectors[i],
				Text:     chunk.Text,
				Metadata: metadata,
			}
		}

		if err := p.store.AddChunks(ctx, p.collection, records); err != nil {
			return 0, fmt.Errorf("store write failed: %w", err)
		}
	}

	return len(chunks), nil
}

func (p *Pipeline) included(name string) bool {
	if len(p.source.Include) == 0 {
		return true
	}
	for _, pattern := range p.source.Include {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (p *Pipeline) excluded(name string) bool {
	for _, pattern := range p.source.Exclude {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
