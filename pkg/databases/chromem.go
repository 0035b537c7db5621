package databases

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/benekli/minerva/pkg/config"
)

// ChromemStore is the embedded vector store, backed by chromem-go. It keeps
// all vectors in memory with optional gzip-compressed file persistence, so
// a single binary can serve retrieval without any external service.
type ChromemStore struct {
	db          *chromem.DB
	persistPath string
	compress    bool
	mu          sync.RWMutex

	collections map[string]*chromem.Collection

	// Embedding happens upstream; chromem still requires a func, so this
	// one only errors if it is ever called.
	embeddingFunc chromem.EmbeddingFunc
}

// NewChromemStore creates the embedded store, loading a persisted database
// from disk when one exists at the configured path.
func NewChromemStore(cfg *config.DatabaseProviderConfig) (*ChromemStore, error) {
	var db *chromem.DB

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}

		dbPath := cfg.PersistPath + "/vectors.gob"
		if cfg.Compress {
			dbPath += ".gz"
		}

		if _, statErr := os.Stat(dbPath); statErr == nil {
			loaded, err := chromem.NewPersistentDB(dbPath, cfg.Compress)
			if err != nil {
				slog.Warn("Failed to load existing vector database, creating new",
					"path", dbPath,
					"error", err)
				db = chromem.NewDB()
			} else {
				db = loaded
			}
		} else {
			db = chromem.NewDB()
		}
	} else {
		db = chromem.NewDB()
	}

	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding function called but vectors should be pre-computed")
	}

	return &ChromemStore{
		db:            db,
		persistPath:   cfg.PersistPath,
		compress:      cfg.Compress,
		collections:   make(map[string]*chromem.Collection),
		embeddingFunc: identityEmbed,
	}, nil
}

func (s *ChromemStore) getCollection(name string) (*chromem.Collection, error) {
	s.mu.RLock()
	if col, ok := s.collections[name]; ok {
		s.mu.RUnlock()
		return col, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[name]; ok {
		return col, nil
	}

	col, err := s.db.GetOrCreateCollection(name, nil, s.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", name, err)
	}

	s.collections[name] = col
	return col, nil
}

// AddChunks stores pre-embedded records in a collection.
func (s *ChromemStore) AddChunks(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	col, err := s.getCollection(collection)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(records))
	for _, rec := range records {
		strMetadata := make(map[string]string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			strMetadata[k] = fmt.Sprint(v)
		}

		docs = append(docs, chromem.Document{
			ID:        rec.ID,
			Content:   rec.Text,
			Metadata:  strMetadata,
			Embedding: rec.Vector,
		})
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	if err := s.persist(); err != nil {
		slog.Warn("Failed to persist after add", "error", err)
	}

	return nil
}

// Query runs cosine similarity search over a collection. topK is clamped to
// the collection size since chromem rejects oversized requests.
func (s *ChromemStore) Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]interface{}) ([]SearchResult, error) {
	col, err := s.getCollection(collection)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	var whereFilter map[string]string
	if len(filter) > 0 {
		whereFilter = make(map[string]string, len(filter))
		for k, v := range filter {
			whereFilter[k] = fmt.Sprint(v)
		}
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, whereFilter, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		metadata := make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = v
		}

		out = append(out, SearchResult{
			ID:       r.ID,
			Score:    r.Similarity,
			Text:     r.Content,
			Metadata: metadata,
		})
	}

	return out, nil
}

// DeleteByFilter removes all documents matching the metadata filter.
func (s *ChromemStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) error {
	col, err := s.getCollection(collection)
	if err != nil {
		return err
	}

	whereFilter := make(map[string]string, len(filter))
	for k, v := range filter {
		whereFilter[k] = fmt.Sprint(v)
	}

	if err := col.Delete(ctx, whereFilter, nil); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}

	if err := s.persist(); err != nil {
		slog.Warn("Failed to persist after delete", "error", err)
	}

	return nil
}

// DeleteCollection removes a collection and all its documents.
func (s *ChromemStore) DeleteCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	delete(s.collections, collection)

	if err := s.persist(); err != nil {
		slog.Warn("Failed to persist after collection delete", "error", err)
	}

	return nil
}

// Close persists the database if persistence is enabled.
func (s *ChromemStore) Close() error {
	return s.persist()
}

func (s *ChromemStore) persist() error {
	if s.persistPath == "" {
		return nil
	}

	dbPath := s.persistPath + "/vectors.gob"
	if s.compress {
		dbPath += ".gz"
	}

	//nolint:staticcheck // Using deprecated function for compatibility
	if err := s.db.Export(dbPath, s.compress, ""); err != nil {
		return fmt.Errorf("failed to persist database: %w", err)
	}

	return nil
}

var _ Store = (*ChromemStore)(nil)
