package databases

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/benekli/minerva/pkg/config"
)

// PineconeStore talks to a managed Pinecone index. Collections map to
// Pinecone namespaces inside the configured index, so one index serves all
// of the engine's collections.
type PineconeStore struct {
	client    *pinecone.Client
	indexName string
}

// NewPineconeStore connects to the Pinecone API.
func NewPineconeStore(cfg *config.DatabaseProviderConfig) (*PineconeStore, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for pinecone")
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: cfg.APIKey,
		Host:   cfg.Host,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}

	return &PineconeStore{
		client:    client,
		indexName: cfg.IndexName,
	}, nil
}

func (s *PineconeStore) indexConnection(ctx context.Context, namespace string) (*pinecone.IndexConnection, error) {
	index, err := s.client.DescribeIndex(ctx, s.indexName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index %s: %w", s.indexName, err)
	}

	indexConn, err := s.client.Index(pinecone.NewIndexConnParams{
		Host:      index.Host,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index connection: %w", err)
	}

	return indexConn, nil
}

// AddChunks upserts pre-embedded records into the collection's namespace.
func (s *PineconeStore) AddChunks(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	indexConn, err := s.indexConnection(ctx, collection)
	if err != nil {
		return err
	}
	defer func() { _ = indexConn.Close() }()

	vectors := make([]*pinecone.Vector, 0, len(records))
	for _, rec := range records {
		fields := make(map[string]interface{}, len(rec.Metadata)+1)
		for k, v := range rec.Metadata {
			fields[k] = v
		}
		fields["text"] = rec.Text

		metadata, err := structpb.NewStruct(fields)
		if err != nil {
			return fmt.Errorf("failed to convert metadata: %w", err)
		}

		vectors = append(vectors, &pinecone.Vector{
			Id:       rec.ID,
			Values:   rec.Vector,
			Metadata: metadata,
		})
	}

	if _, err := indexConn.UpsertVectors(ctx, vectors); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}

	return nil
}

// Query runs similarity search in the collection's namespace.
func (s *PineconeStore) Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]interface{}) ([]SearchResult, error) {
	indexConn, err := s.indexConnection(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer func() { _ = indexConn.Close() }()

	var metadataFilter *pinecone.MetadataFilter
	if len(filter) > 0 {
		metadataFilter, err = structpb.NewStruct(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to convert filter: %w", err)
		}
	}

	queryResponse, err := indexConn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		MetadataFilter:  metadataFilter,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query pinecone: %w", err)
	}

	return convertPineconeResults(queryResponse.Matches), nil
}

func convertPineconeResults(matches []*pinecone.ScoredVector) []SearchResult {
	results := make([]SearchResult, 0, len(matches))
	for _, scored := range matches {
		if scored.Vector == nil {
			continue
		}

		metadata := make(map[string]interface{})
		if scored.Vector.Metadata != nil {
			metadata = scored.Vector.Metadata.AsMap()
		}

		text := ""
		if textValue, ok := metadata["text"].(string); ok {
			text = textValue
			delete(metadata, "text")
		}

		results = append(results, SearchResult{
			ID:       scored.Vector.Id,
			Score:    scored.Score,
			Text:     text,
			Metadata: metadata,
		})
	}

	return results
}

// DeleteByFilter removes vectors matching the metadata filter.
func (s *PineconeStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]interface{}) error {
	indexConn, err := s.indexConnection(ctx, collection)
	if err != nil {
		return err
	}
	defer func() { _ = indexConn.Close() }()

	metadataFilter, err := structpb.NewStruct(filter)
	if err != nil {
		return fmt.Errorf("failed to convert filter: %w", err)
	}

	if err := indexConn.DeleteVectorsByFilter(ctx, metadataFilter); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}

	return nil
}

// DeleteCollection clears the collection's namespace. The index itself is
// managed outside the engine.
func (s *PineconeStore) DeleteCollection(ctx context.Context, collection string) error {
	indexConn, err := s.indexConnection(ctx, collection)
	if err != nil {
		return err
	}
	defer func() { _ = indexConn.Close() }()

	if err := indexConn.DeleteAllVectorsInNamespace(ctx); err != nil {
		return fmt.Errorf("failed to clear namespace %s: %w", collection, err)
	}

	return nil
}

// Close is a no-op; connections are per-call.
func (s *PineconeStore) Close() error {
	return nil
}

var _ Store = (*PineconeStore)(nil)
