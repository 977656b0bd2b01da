package elasticsearch

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
)

// fakeCluster is a minimal in-process stand-in for the handful of
// Elasticsearch endpoints the store calls.
type fakeCluster struct {
	mu       sync.Mutex
	index    string
	exists   bool
	creates  int
	docs     map[string]source
	order    []string
	queries  []map[string]any
	bulkFail bool
	// strict disables index auto-creation: bulk requests against a missing
	// index fail with index_not_found_exception.
	strict bool
}

func newFakeCluster(t *testing.T, index string) (*fakeCluster, *Store) {
	t.Helper()
	return newFakeClusterWith(t, Config{Index: index})
}

func newFakeClusterWith(t *testing.T, cfg Config) (*fakeCluster, *Store) {
	t.Helper()
	fc := &fakeCluster{index: cfg.Index, docs: make(map[string]source)}
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return fc, NewStore(es, cfg)
}

func (fc *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	prefix := "/" + fc.index

	switch {
	case r.Method == http.MethodHead && r.URL.Path == prefix:
		if !fc.exists {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && r.URL.Path == prefix:
		fc.creates++
		if fc.exists {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"resource_already_exists_exception"}}`))
			return
		}
		fc.exists = true
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	case r.URL.Path == prefix+"/_bulk":
		fc.bulk(w, r)
	case r.URL.Path == prefix+"/_search":
		fc.search(w, r)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, prefix+"/_doc/"):
		id := strings.TrimPrefix(r.URL.Path, prefix+"/_doc/")
		if _, ok := fc.docs[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"result":"not_found"}`))
			return
		}
		delete(fc.docs, id)
		_, _ = w.Write([]byte(`{"result":"deleted"}`))
	case r.URL.Path == "/_cat/indices":
		_, _ = w.Write([]byte(`[{"index":"` + fc.index + `"},{"index":".kibana"}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (fc *fakeCluster) bulk(w http.ResponseWriter, r *http.Request) {
	if fc.strict && !fc.exists {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`))
		return
	}
	type item struct {
		Index map[string]any `json:"index"`
	}
	var items []item
	sc := bufio.NewScanner(r.Body)
	for sc.Scan() {
		var meta map[string]map[string]string
		if err := json.Unmarshal(sc.Bytes(), &meta); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !sc.Scan() {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var src source
		if err := json.Unmarshal(sc.Bytes(), &src); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		id := meta["index"]["_id"]
		if fc.bulkFail {
			items = append(items, item{Index: map[string]any{
				"_id": id, "status": 400,
				"error": map[string]string{"type": "mapper_parsing_exception", "reason": "bad doc"},
			}})
			continue
		}
		fc.docs[id] = src
		fc.order = append(fc.order, id)
		items = append(items, item{Index: map[string]any{"_id": id, "status": 201}})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"errors": fc.bulkFail, "items": items})
}

// search honors the conversation term filter and, for more_like_this,
// keeps documents sharing at least one word with the like text. Each hit's
// sort value is its insertion position, which search_after resumes from.
func (fc *fakeCluster) search(w http.ResponseWriter, r *http.Request) {
	var q map[string]any
	_ = json.NewDecoder(r.Body).Decode(&q)
	fc.queries = append(fc.queries, q)

	raw, _ := json.Marshal(q)
	var parsed struct {
		Size        int   `json:"size"`
		SearchAfter []int `json:"search_after"`
		Query struct {
			Term struct {
				Conv string `json:"conversation_id"`
			} `json:"term"`
			Bool struct {
				Must struct {
					MLT struct {
						Like string `json:"like"`
					} `json:"more_like_this"`
				} `json:"must"`
				Filter struct {
					Term struct {
						Conv string `json:"conversation_id"`
					} `json:"term"`
				} `json:"filter"`
			} `json:"bool"`
		} `json:"query"`
	}
	_ = json.Unmarshal(raw, &parsed)

	conv := parsed.Query.Term.Conv + parsed.Query.Bool.Filter.Term.Conv
	like := strings.Fields(strings.ToLower(parsed.Query.Bool.Must.MLT.Like))

	type hit struct {
		ID     string `json:"_id"`
		Source source `json:"_source"`
		Sort   []int  `json:"sort"`
	}
	start := 0
	if len(parsed.SearchAfter) > 0 {
		start = parsed.SearchAfter[0] + 1
	}
	hits := []hit{}
	for pos := start; pos < len(fc.order); pos++ {
		id := fc.order[pos]
		src, ok := fc.docs[id]
		if !ok || (conv != "" && src.ConversationID != conv) {
			continue
		}
		if len(like) > 0 && !sharesWord(src.Content, like) {
			continue
		}
		if parsed.Size > 0 && len(hits) == parsed.Size {
			break
		}
		hits = append(hits, hit{ID: id, Source: src, Sort: []int{pos}})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"hits": map[string]any{"hits": hits}})
}

func sharesWord(content string, words []string) bool {
	lower := strings.ToLower(content)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func (fc *fakeCluster) createCount() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.creates
}

func (fc *fakeCluster) recorded() []map[string]any {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return append([]map[string]any(nil), fc.queries...)
}

func (fc *fakeCluster) disableAutoCreate() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.strict = true
}

// dropIndex forgets the index and its documents, as if an operator deleted
// it behind the store's back.
func (fc *fakeCluster) dropIndex() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.exists = false
	fc.docs = make(map[string]source)
	fc.order = nil
}

func (fc *fakeCluster) failBulk() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.bulkFail = true
}
