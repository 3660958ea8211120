package knowledge_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"guardia/internal/adapters/knowledge"
)

const searchResponse = `{
  "took": 2,
  "timed_out": false,
  "_shards": {"total": 1, "successful": 1, "skipped": 0, "failed": 0},
  "hits": {
    "total": {"value": 2, "relation": "eq"},
    "max_score": 1.3,
    "hits": [
      {
        "_index": "guardia-knowledge",
        "_id": "tips.md#0",
        "_score": 1.3,
        "_source": {"content": "Share your live location with a trusted contact.", "source": "tips.md", "chunk": 0}
      },
      {
        "_index": "guardia-knowledge",
        "_id": "tips.md#4",
        "_score": 0.9,
        "_source": {"content": "Prefer well-lit, busy streets at night.", "source": "tips.md", "chunk": 4}
      }
    ]
  }
}`

func TestStore_SimilaritySearch(t *testing.T) {
	var gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/_search") {
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			_, _ = w.Write([]byte(searchResponse))
			return
		}
		// anything else (ping etc.)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	st, err := knowledge.New(ts.URL, "guardia-knowledge")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	got, err := st.SimilaritySearch(context.Background(), "walking home at night", 3)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(got))
	}
	if got[0].Content != "Share your live location with a trusted contact." || got[0].Source != "tips.md" {
		t.Fatalf("unexpected first passage: %+v", got[0])
	}
	if !strings.Contains(gotBody, "walking home at night") {
		t.Fatalf("query text missing from search body: %s", gotBody)
	}
}
