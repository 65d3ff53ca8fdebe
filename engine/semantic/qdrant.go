package semantic

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/askdoc/askdoc/engine/domain"
)

// QdrantClient owns the gRPC connection to Qdrant. Indexes created from it
// map one session to one collection.
type QdrantClient struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
}

// NewQdrantClient connects to Qdrant at the given gRPC address.
func NewQdrantClient(addr string) (*QdrantClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &QdrantClient{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}, nil
}

// Close closes the underlying gRPC connection.
func (c *QdrantClient) Close() error {
	return c.conn.Close()
}

// Index returns an Index stored in the collection for the given session id.
// The collection is created on first Add and deleted by Destroy.
func (c *QdrantClient) Index(sessionID string, embedder Embedder) *QdrantIndex {
	return &QdrantIndex{
		client:     c,
		collection: "askdoc_" + sessionID,
		embedder:   embedder,
	}
}

// QdrantIndex is an Index backed by one Qdrant collection (cosine metric).
type QdrantIndex struct {
	client     *QdrantClient
	collection string
	embedder   Embedder

	mu      sync.RWMutex
	size    int
	dim     int
	created bool
}

// Add embeds all chunks and upserts them in a single waited call, creating
// the collection on first use. A failed embedding leaves the collection
// untouched.
func (q *QdrantIndex) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := q.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return domain.E(domain.ErrEmbeddingProvider, "semantic: embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return domain.E(domain.ErrEmbeddingProvider, "semantic: embed chunks",
			fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.created {
		if err := q.createCollection(ctx, len(vectors[0])); err != nil {
			return err
		}
		q.created = true
		q.dim = len(vectors[0])
	}

	points := make([]*pb.PointStruct, len(chunks))
	for i, chunk := range chunks {
		// Deterministic point id from collection and chunk position.
		pointID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s-%d", q.collection, chunk.Position))).String()
		payload := map[string]*pb.Value{
			"text":      {Kind: &pb.Value_StringValue{StringValue: chunk.Text}},
			"source_id": {Kind: &pb.Value_StringValue{StringValue: chunk.SourceID}},
			"position":  {Kind: &pb.Value_IntegerValue{IntegerValue: int64(chunk.Position)}},
		}
		if chunk.Page != nil {
			payload["page"] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(*chunk.Page)}}
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: pointID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vectors[i]}}},
			Payload: payload,
		}
	}

	wait := true
	_, err = q.client.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(points), err)
	}
	q.size += len(points)
	return nil
}

// createCollection creates the session collection. Must hold mu.
func (q *QdrantIndex) createCollection(ctx context.Context, dims int) error {
	d := uint64(dims)
	_, err := q.client.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     d,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", q.collection, err)
	}
	return nil
}

// Search embeds the query and returns the k best matches, highest cosine
// similarity first.
func (q *QdrantIndex) Search(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	if err := domain.ValidateK(k); err != nil {
		return nil, err
	}

	vector, err := q.embedder.Embed(ctx, query)
	if err != nil {
		return nil, domain.E(domain.ErrEmbeddingProvider, "semantic: embed query", err)
	}

	resp, err := q.client.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]ScoredChunk, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		chunk := domain.Chunk{}
		for key, val := range r.GetPayload() {
			switch key {
			case "text":
				chunk.Text = val.GetStringValue()
			case "source_id":
				chunk.SourceID = val.GetStringValue()
			case "position":
				chunk.Position = int(val.GetIntegerValue())
			case "page":
				p := int(val.GetIntegerValue())
				chunk.Page = &p
			}
		}
		results[i] = ScoredChunk{Chunk: chunk, RawScore: float64(r.GetScore())}
	}
	return results, nil
}

// Size returns the number of points upserted through this index.
func (q *QdrantIndex) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

// Dimension returns the embedding dimension, 0 before the first Add.
func (q *QdrantIndex) Dimension() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.dim
}

// Metric reports cosine similarity semantics.
func (q *QdrantIndex) Metric() Metric { return MetricCosine }

// Destroy deletes the backing collection. Deleting a collection that was
// never created (or already deleted) is not an error.
func (q *QdrantIndex) Destroy(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.created {
		return nil
	}
	_, err := q.client.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: q.collection,
	})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", q.collection, err)
	}
	q.created = false
	q.size = 0
	return nil
}
