// Package vectorstore is the only caller of the Qdrant client in ragmux:
// collection-ensure, a deterministic UUID derived from a caller-supplied
// string id, and an "_original_id" payload escape hatch to recover it,
// generalized from one fixed collection to a named multi-collection
// Facade.
package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"ragmux/internal/model"
)

// payloadIDField stores the caller's original string id when it is not
// itself a valid UUID, since Qdrant point ids must be a UUID or uint64.
const payloadIDField = "_original_id"

// Document is one vector plus its metadata, addressed by a caller-chosen id.
type Document struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// Result is one hit from Query, with a similarity score in [0,1] (metric
// dependent) and the metadata it was upserted with.
type Result struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Facade is the single chokepoint for all Qdrant access.
type Facade struct {
	client *qdrant.Client

	mu          sync.RWMutex
	collections map[string]model.KBCollection
}

// New connects to Qdrant at dsn (its gRPC port, 6334 by default). An
// "api_key" query parameter on the DSN is forwarded as the client's API key.
func New(dsn string) (*Facade, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	portStr := parsed.Port()
	if portStr == "" {
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant port: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: port}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &Facade{client: client, collections: make(map[string]model.KBCollection)}, nil
}

// Close releases the underlying gRPC connection.
func (f *Facade) Close() error { return f.client.Close() }

// ListCollections returns the collections this Facade has created or
// discovered so far.
func (f *Facade) ListCollections(ctx context.Context) ([]model.KBCollection, error) {
	names, err := f.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]model.KBCollection, 0, len(names))
	for _, n := range names {
		if kb, ok := f.collections[n]; ok {
			out = append(out, kb)
			continue
		}
		out = append(out, model.KBCollection{Name: n})
	}
	return out, nil
}

// CreateCollection creates kb.Name if it does not already exist.
func (f *Facade) CreateCollection(ctx context.Context, kb model.KBCollection) error {
	if kb.Name == "" {
		return fmt.Errorf("collection name is required")
	}
	if kb.Dimensions <= 0 {
		return fmt.Errorf("collection dimensions must be > 0")
	}
	exists, err := f.client.CollectionExists(ctx, kb.Name)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if !exists {
		if err := f.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: kb.Name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(kb.Dimensions),
				Distance: distanceFor(kb.Metric),
			}),
		}); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}
	f.mu.Lock()
	f.collections[kb.Name] = kb
	f.mu.Unlock()
	return nil
}

// DeleteCollection drops a collection entirely.
func (f *Facade) DeleteCollection(ctx context.Context, name string) error {
	if err := f.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	f.mu.Lock()
	delete(f.collections, name)
	f.mu.Unlock()
	return nil
}

func distanceFor(metric string) qdrant.Distance {
	switch strings.ToLower(strings.TrimSpace(metric)) {
	case "l2", "euclidean":
		return qdrant.Distance_Euclid
	case "ip", "dot":
		return qdrant.Distance_Dot
	case "manhattan":
		return qdrant.Distance_Manhattan
	default:
		return qdrant.Distance_Cosine
	}
}

func pointIDFor(id string) (string, bool) {
	if _, err := uuid.Parse(id); err == nil {
		return id, false
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(), true
}

// Insert upserts one document's vector and metadata into a collection.
func (f *Facade) Insert(ctx context.Context, collection string, doc Document) error {
	pointID, escaped := pointIDFor(doc.ID)
	metadataAny := make(map[string]any, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		metadataAny[k] = v
	}
	if escaped {
		metadataAny[payloadIDField] = doc.ID
	}
	vec := make([]float32, len(doc.Vector))
	copy(vec, doc.Vector)
	_, err := f.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointID),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(metadataAny),
		}},
	})
	if err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	return nil
}

// Delete removes a document by its caller-chosen id.
func (f *Facade) Delete(ctx context.Context, collection, id string) error {
	pointID, _ := pointIDFor(id)
	_, err := f.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(pointID)),
	})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", collection, err)
	}
	return nil
}

// Query runs a k-NN similarity search, optionally filtered by exact-match
// metadata fields.
func (f *Facade) Query(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)

	var qf *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, qdrant.NewMatch(k, v))
		}
		qf = &qdrant.Filter{Must: must}
	}
	limit := uint64(k)
	hits, err := f.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         qf,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		uuidStr := hit.Id.GetUuid()
		metadata := make(map[string]string)
		var originalID string
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				if k == payloadIDField {
					originalID = v.GetStringValue()
					continue
				}
				metadata[k] = v.GetStringValue()
			}
		}
		id := originalID
		if id == "" {
			id = uuidStr
		}
		out = append(out, Result{ID: id, Score: float64(hit.Score), Metadata: metadata})
	}
	return out, nil
}
