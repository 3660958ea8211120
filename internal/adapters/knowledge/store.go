// internal/adapters/knowledge/store.go
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/olivere/elastic/v7"

	"guardia/internal/adapters/observability"
	"guardia/internal/domain"
)

// Store keeps safety-knowledge passages in an Elasticsearch index and
// serves relevance-ranked retrieval for the router.
type Store struct {
	client *elastic.Client
	index  string
}

// passageDoc is the indexed document shape.
type passageDoc struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Chunk   int    `json:"chunk"`
}

const indexMapping = `{
  "settings": {"number_of_shards": 1, "number_of_replicas": 0},
  "mappings": {
    "properties": {
      "content": {"type": "text"},
      "source":  {"type": "keyword"},
      "chunk":   {"type": "integer"}
    }
  }
}`

func New(url, index string) (*Store, error) {
	client, err := elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	if err != nil {
		return nil, fmt.Errorf("elastic client: %w", err)
	}
	return &Store{client: client, index: index}, nil
}

// EnsureIndex creates the passage index if it does not exist yet.
func (s *Store) EnsureIndex(ctx context.Context) error {
	exists, err := s.client.IndexExists(s.index).Do(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	created, err := s.client.CreateIndex(s.index).BodyString(indexMapping).Do(ctx)
	if err != nil {
		return err
	}
	if !created.Acknowledged {
		return fmt.Errorf("create index %s not acknowledged", s.index)
	}
	return nil
}

// SimilaritySearch returns up to k passages ranked by full-text relevance
// to query, best first.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	if k <= 0 {
		k = 3
	}
	start := time.Now()
	res, err := s.client.Search().
		Index(s.index).
		Query(elastic.NewMatchQuery("content", query)).
		Size(k).
		Do(ctx)
	if err != nil {
		observability.ObserveExternal("elastic", "search", 0, time.Since(start))
		return nil, err
	}
	observability.ObserveExternal("elastic", "search", 200, time.Since(start))

	passages := make([]domain.Passage, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var doc passageDoc
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			continue
		}
		passages = append(passages, domain.Passage{Content: doc.Content, Source: doc.Source})
	}
	return passages, nil
}

// IndexPassages bulk-indexes the chunks of one source document.
func (s *Store) IndexPassages(ctx context.Context, source string, chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}
	bulk := s.client.Bulk().Index(s.index)
	for i, chunk := range chunks {
		bulk.Add(elastic.NewBulkIndexRequest().
			Id(fmt.Sprintf("%s#%d", source, i)).
			Doc(passageDoc{Content: chunk, Source: source, Chunk: i}))
	}
	start := time.Now()
	res, err := bulk.Do(ctx)
	if err != nil {
		observability.ObserveExternal("elastic", "bulk", 0, time.Since(start))
		return err
	}
	observability.ObserveExternal("elastic", "bulk", 200, time.Since(start))
	if res.Errors {
		for _, item := range res.Failed() {
			return fmt.Errorf("bulk index %s: %s", item.Id, item.Error.Reason)
		}
	}
	return nil
}
