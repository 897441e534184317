package retrieval

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/filter"
)

// chunkIDNamespace is the UUIDv5 namespace for deterministic chunk point IDs.
// Re-indexing the same document produces the same IDs, so scans upsert in
// place instead of accumulating duplicates.
var chunkIDNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection. Must match the configured embedding model.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// Client exposes the underlying gRPC client for readiness probes.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// ensureCollection creates the Qdrant collection if it does not already
// exist, with a keyword index on the source field since every scoped search
// filters on it.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.cfg.Collection,
		FieldName:      KeySource,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to index %s field: %w", KeySource, err)
	}

	return nil
}

// Search performs a cosine similarity search restricted by f and returns up
// to limit results ranked by score descending.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, f *filter.Filter, limit int) ([]SearchResult, error) {
	l := uint64(limit)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Filter:         filter.ToQdrant(f),
		Limit:          &l,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		content, md := payloadToMetadata(p.Payload)
		results = append(results, SearchResult{
			Content:  content,
			Metadata: md,
			Score:    float64(p.Score),
		})
	}
	return results, nil
}

// Query returns up to limit chunks matching f with no vector comparison.
// Results carry the MetadataOnlyScore sentinel.
func (s *QdrantStore) Query(ctx context.Context, f *filter.Filter, limit int) ([]SearchResult, error) {
	l := uint32(limit)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.cfg.Collection,
		Filter:         filter.ToQdrant(f),
		Limit:          &l,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: metadata query failed: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		content, md := payloadToMetadata(p.Payload)
		results = append(results, SearchResult{
			Content:  content,
			Metadata: md,
			Score:    MetadataOnlyScore,
		})
	}
	return results, nil
}

// Upsert stores or updates a batch of chunks with their pre-computed
// embeddings. Point IDs are derived from filePath and chunkIndex so repeated
// scans update in place.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("qdrant: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		payload := map[string]any{"content": c.Content}
		for k, v := range c.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(chunkID(c)),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Delete removes every chunk matching f.
func (s *QdrantStore) Delete(ctx context.Context, f *filter.Filter) error {
	qf := filter.ToQdrant(f)
	if qf == nil {
		return fmt.Errorf("qdrant: refusing to delete with an empty filter")
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelectorFilter(qf),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// chunkID derives the deterministic UUIDv5 point ID for a chunk.
func chunkID(c Chunk) string {
	key := fmt.Sprintf("%s#%d", c.Metadata.String(KeyFilePath), c.Metadata.Int(KeyChunkIndex))
	return uuid.NewSHA1(chunkIDNamespace, []byte(key)).String()
}

// payloadToMetadata converts a Qdrant payload into chunk content and
// metadata. The "content" key holds the text body; everything else is
// metadata.
func payloadToMetadata(payload map[string]*qdrant.Value) (string, Metadata) {
	md := make(Metadata, len(payload))
	content := ""
	for k, v := range payload {
		if k == "content" {
			content = v.GetStringValue()
			continue
		}
		md[k] = valueToAny(v)
	}
	return content, md
}

// valueToAny converts a Qdrant payload value to its Go representation.
func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, valueToAny(item))
		}
		return out
	}
	return nil
}
