package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/the-hive/segmenter/internal/embeddings"
	"github.com/the-hive/segmenter/internal/processor"
)

// chunkNamespace seeds the deterministic point IDs of a file's chunks.
var chunkNamespace = uuid.MustParse("6f1c9a3e-2b7d-4c58-9e41-0d8a7b3f5c21")

// PointWriter is the subset of qdrant.PointsClient the sink needs.
type PointWriter interface {
	Upsert(ctx context.Context, in *qdrant.UpsertPoints, opts ...grpc.CallOption) (*qdrant.PointsOperationResponse, error)
	Delete(ctx context.Context, in *qdrant.DeletePoints, opts ...grpc.CallOption) (*qdrant.PointsOperationResponse, error)
}

// CollectionManager is the subset of qdrant.CollectionsClient the sink needs.
type CollectionManager interface {
	List(ctx context.Context, in *qdrant.ListCollectionsRequest, opts ...grpc.CallOption) (*qdrant.ListCollectionsResponse, error)
	Create(ctx context.Context, in *qdrant.CreateCollection, opts ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error)
}

// QdrantSink embeds chunks and upserts them as points with their metadata
// as payload.
type QdrantSink struct {
	points     PointWriter
	embedder   embeddings.Embedder
	collection string
}

// DialQdrant opens a plaintext gRPC connection to a Qdrant instance.
func DialQdrant(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s: %w", addr, err)
	}
	return conn, nil
}

// NewQdrantSink creates a sink writing to collection.
func NewQdrantSink(points PointWriter, embedder embeddings.Embedder, collection string) (*QdrantSink, error) {
	if points == nil || embedder == nil {
		return nil, errors.New("qdrant sink requires a points client and an embedder")
	}
	if collection == "" {
		collection = "chunks"
	}
	return &QdrantSink{points: points, embedder: embedder, collection: collection}, nil
}

// EnsureCollection creates collection with cosine distance if it is missing.
func EnsureCollection(ctx context.Context, cm CollectionManager, collection string, dim int) error {
	resp, err := cm.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, c := range resp.GetCollections() {
		if c.GetName() == collection {
			return nil
		}
	}

	log.Printf("EnsureCollection: creating collection=%s dim=%d", collection, dim)
	_, err = cm.Create(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: &qdrant.VectorsConfig{Config: &qdrant.VectorsConfig_Params{
			Params: &qdrant.VectorParams{Size: uint64(dim), Distance: qdrant.Distance_Cosine},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}
	return nil
}

// PointID returns the deterministic point ID of the seq-th chunk of fileID.
func PointID(fileID string, seq int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s#%d", fileID, seq))).String()
}

// Store implements pipeline.Sink. The file's previous points are removed
// before the new ones are written, so a shorter re-segmentation leaves no
// stale chunks behind.
func (s *QdrantSink) Store(ctx context.Context, fileID string, chunks []processor.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	wait := true
	if _, err := s.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         fileSelector(fileID),
	}); err != nil {
		return fmt.Errorf("failed to delete old points for %s: %w", fileID, err)
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &qdrant.PointStruct{
			Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: PointID(fileID, i)}},
			Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{
				Vector: &qdrant.Vector{Data: vectors[i]},
			}},
			Payload: chunkPayload(fileID, c),
		}
	}

	if _, err := s.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}

	log.Printf("QdrantSink: collection=%s file=%s points=%d", s.collection, fileID, len(points))
	return nil
}

// fileSelector matches every point whose file_id payload equals fileID.
func fileSelector(fileID string) *qdrant.PointsSelector {
	return &qdrant.PointsSelector{PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
		Filter: &qdrant.Filter{Must: []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_Field{Field: &qdrant.FieldCondition{
				Key:   "file_id",
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: fileID}},
			}},
		}}},
	}}
}

func chunkPayload(fileID string, c processor.Chunk) map[string]*qdrant.Value {
	str := func(v string) *qdrant.Value { return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}} }
	num := func(v int) *qdrant.Value { return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(v)}} }

	payload := map[string]*qdrant.Value{
		"file_id":        str(fileID),
		"text":           str(c.Text),
		"chunk_type":     str(c.Type),
		"section_index":  num(c.SectionIndex),
		"total_sections": num(c.TotalSections),
		"clause_index":   num(c.Position),
		"chunk_tokens":   num(c.Tokens),
	}
	if c.SectionHeader != "" {
		payload["section_header"] = str(c.SectionHeader)
	}
	return payload
}
