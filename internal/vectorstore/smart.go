package vectorstore

import (
	"context"

	"ragmux/internal/classifier"
	"ragmux/internal/model"
)

// SmartSuggest routes a free-text query to the collection whose Skills
// metadata best matches the query's classified category. When several
// collections match, which one is returned is not defined.
func (f *Facade) SmartSuggest(ctx context.Context, cl *classifier.Classifier, query string) (string, error) {
	classification, err := cl.Classify(ctx, query, nil)
	if err != nil {
		return "", err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	for name, kb := range f.collections {
		for _, skill := range kb.Skills {
			if skill == classification.Category {
				return name, nil
			}
		}
	}
	// No collection declares this skill; fall back to any collection.
	for name := range f.collections {
		return name, nil
	}
	return "", nil
}

// SmartInsert classifies doc via its Metadata["text"] hint (if present) and
// inserts it into the best-matching collection, creating a default
// "general" collection if none exist yet.
func (f *Facade) SmartInsert(ctx context.Context, cl *classifier.Classifier, doc Document, defaultDimensions int) (string, error) {
	hint := doc.Metadata["text"]
	collection, err := f.SmartSuggest(ctx, cl, hint)
	if err != nil {
		return "", err
	}
	if collection == "" {
		collection = "general"
		dims := len(doc.Vector)
		if dims <= 0 {
			dims = defaultDimensions
		}
		if err := f.CreateCollection(ctx, model.KBCollection{Name: collection, Dimensions: dims, Metric: "cosine"}); err != nil {
			return "", err
		}
	}
	if err := f.Insert(ctx, collection, doc); err != nil {
		return "", err
	}
	return collection, nil
}
