package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"tars/internal/embedding"
	"tars/internal/logging"
)

const collectionName = "tars_knowledge"

// Retriever indexes Q&A documents into chromem-go and answers similarity
// queries with formatted context blocks.
type Retriever struct {
	db     *chromem.DB
	col    *chromem.Collection
	engine embedding.Engine

	mu      sync.RWMutex
	indexed map[string]bool
	topics  map[string]int

	log *logging.Logger
}

// NewRetriever creates a retriever. An empty persistDir keeps the index
// in memory only.
func NewRetriever(persistDir string, engine embedding.Engine) (*Retriever, error) {
	var db *chromem.DB
	var err error
	if persistDir != "" {
		db, err = chromem.NewPersistentDB(persistDir, false)
		if err != nil {
			return nil, fmt.Errorf("open vector store: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}

	return &Retriever{
		db:      db,
		col:     col,
		engine:  engine,
		indexed: make(map[string]bool),
		topics:  make(map[string]int),
		log:     logging.Get(logging.CategoryKnowledge),
	}, nil
}

// IndexDirectory indexes every dataset under dir. Returns the number of
// newly indexed documents. Per-document failures are logged and skipped so
// one bad record never aborts the batch. Document ids are content-derived,
// so re-indexing the same data leaves the collection unchanged.
func (r *Retriever) IndexDirectory(ctx context.Context, dir string) (int, error) {
	docs := LoadDirectory(dir)
	if len(docs) == 0 {
		return 0, nil
	}
	return r.IndexDocuments(ctx, docs)
}

// IndexDocuments embeds and stores a batch of documents.
func (r *Retriever) IndexDocuments(ctx context.Context, docs []Document) (int, error) {
	timer := logging.StartTimer(logging.CategoryKnowledge, "IndexDocuments")
	defer timer.Stop()

	added := 0
	for _, doc := range docs {
		r.mu.RLock()
		seen := r.indexed[doc.ID]
		r.mu.RUnlock()
		if seen {
			continue
		}

		// Ids are content-derived, so a persisted copy means the document
		// is already indexed from an earlier run.
		if _, err := r.col.GetByID(ctx, doc.ID); err == nil {
			r.mu.Lock()
			r.indexed[doc.ID] = true
			r.topics[doc.Topic]++
			r.mu.Unlock()
			continue
		}

		vec, err := r.engine.Embed(ctx, doc.Text)
		if err != nil {
			r.log.Error("embed %s failed, skipping: %v", doc.ID, err)
			continue
		}

		err = r.col.AddDocument(ctx, chromem.Document{
			ID:        doc.ID,
			Content:   doc.Text,
			Embedding: vec,
			Metadata: map[string]string{
				"topic":  doc.Topic,
				"source": doc.Source,
			},
		})
		if err != nil {
			r.log.Error("store %s failed, skipping: %v", doc.ID, err)
			continue
		}

		r.mu.Lock()
		r.indexed[doc.ID] = true
		r.topics[doc.Topic]++
		r.mu.Unlock()
		added++
	}

	r.log.Info("indexed %d new documents (%d total in collection)", added, r.col.Count())
	return added, nil
}

// RetrieveOptions tunes a retrieval call.
type RetrieveOptions struct {
	NResults     int     // default 3
	Topic        string  // optional exact topic filter
	MinRelevance float64 // optional similarity floor on top of the ceiling
}

// maxDissimilarity is the relevance ceiling: candidates at or beyond this
// converted distance are discarded. Similarity s maps to 2*(1-s), so 2.0
// keeps exactly the positively-similar half of the range.
const maxDissimilarity = 2.0

// Retrieve returns formatted context blocks for a query, or "" when
// nothing relevant is indexed.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts RetrieveOptions) (string, error) {
	timer := logging.StartTimer(logging.CategoryKnowledge, "Retrieve")
	defer timer.StopWithThreshold(2 * time.Second)

	if opts.NResults <= 0 {
		opts.NResults = 3
	}

	queryVec, err := r.engine.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	var where map[string]string
	if opts.Topic != "" {
		where = map[string]string{"topic": opts.Topic}
	}

	// chromem requires nResults <= collection size; shrink until it fits
	var results []chromem.Result
	for n := opts.NResults; n >= 1; n-- {
		results, err = r.col.QueryEmbedding(ctx, queryVec, n, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if n == 1 {
				return "", nil
			}
			continue
		}
		return "", fmt.Errorf("vector query: %w", err)
	}

	var blocks []string
	for _, res := range results {
		sim := float64(res.Similarity)
		if 2*(1-sim) >= maxDissimilarity {
			continue
		}
		if opts.MinRelevance > 0 && sim < opts.MinRelevance {
			continue
		}
		topic := res.Metadata["topic"]
		if topic == "" {
			topic = "general"
		}
		blocks = append(blocks, fmt.Sprintf("[Reference %d - %s]\n%s", len(blocks)+1, topic, res.Content))
	}

	if len(blocks) == 0 {
		return "", nil
	}
	r.log.Debug("retrieved %d context blocks for query_len=%d", len(blocks), len(query))
	return strings.Join(blocks, "\n\n---\n\n"), nil
}

// Stats describes the current index.
type Stats struct {
	Documents  int      `json:"documents"`
	Topics     []string `json:"topics"`
	Engine     string   `json:"engine"`
	Dimensions int      `json:"dimensions"`
}

// GetStats reports index size and topics.
func (r *Retriever) GetStats() Stats {
	r.mu.RLock()
	topics := make([]string, 0, len(r.topics))
	for t := range r.topics {
		topics = append(topics, t)
	}
	r.mu.RUnlock()
	sort.Strings(topics)

	return Stats{
		Documents:  r.col.Count(),
		Topics:     topics,
		Engine:     r.engine.Name(),
		Dimensions: r.engine.Dimensions(),
	}
}

// Clear drops every indexed document.
func (r *Retriever) Clear() error {
	if err := r.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	col, err := r.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	r.col = col

	r.mu.Lock()
	r.indexed = make(map[string]bool)
	r.topics = make(map[string]int)
	r.mu.Unlock()

	r.log.Info("cleared knowledge index")
	return nil
}

func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
