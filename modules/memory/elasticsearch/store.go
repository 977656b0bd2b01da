package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/flemzord/almond/internal/memory"
	"github.com/google/uuid"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "fragment_id":     {"type": "keyword"},
      "conversation_id": {"type": "keyword"},
      "role":            {"type": "keyword"},
      "content":         {"type": "text"},
      "created_at":      {"type": "date"}
    }
  }
}`

// source is the stored shape of a fragment.
type source struct {
	FragmentID     string    `json:"fragment_id,omitempty"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string `json:"_id"`
			Source source `json:"_source"`
			Sort   []any  `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

const indexNotFound = "index_not_found_exception"

// Store is the long-form tier on one Elasticsearch index.
type Store struct {
	es       *elasticsearch.Client
	index    string
	refresh  string
	pageSize int
}

// NewStore creates a Store over an existing client.
func NewStore(es *elasticsearch.Client, cfg Config) *Store {
	cfg.defaults()
	return &Store{es: es, index: cfg.Index, refresh: cfg.Refresh, pageSize: cfg.PageSize}
}

// check turns transport and HTTP errors into Go errors and closes the body
// on failure. A missing index is reported as memory.ErrIndexMissing.
func check(res *esapi.Response, err error, op string) (*esapi.Response, error) {
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: %s: %w", op, err)
	}
	if res.IsError() {
		defer func() { _ = res.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		if bytes.Contains(body, []byte(indexNotFound)) {
			return nil, fmt.Errorf("elasticsearch: %s: %w", op, memory.ErrIndexMissing)
		}
		return nil, fmt.Errorf("elasticsearch: %s: %s: %s", op, res.Status(), bytes.TrimSpace(body))
	}
	return res, nil
}

// EnsureIndex implements memory.LongStore.
func (s *Store) EnsureIndex(ctx context.Context) error {
	res, err := s.es.Indices.Exists([]string{s.index}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch: index exists: %w", err)
	}
	_ = res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("elasticsearch: index exists: %s", res.Status())
	}

	res, err = s.es.Indices.Create(s.index,
		s.es.Indices.Create.WithContext(ctx),
		s.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch: create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		// Another writer created it between the two calls.
		if bytes.Contains(body, []byte("resource_already_exists_exception")) {
			return nil
		}
		return fmt.Errorf("elasticsearch: create index: %s: %s", res.Status(), bytes.TrimSpace(body))
	}
	return nil
}

// BulkInsert implements memory.LongStore. Every fragment is indexed under
// its own generated ID.
func (s *Store) BulkInsert(ctx context.Context, fs []memory.Fragment) ([]memory.Fragment, error) {
	if len(fs) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	out := make([]memory.Fragment, len(fs))
	for i, f := range fs {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		if f.CreatedAt.IsZero() {
			f.CreatedAt = time.Now()
		}
		f.Tier = memory.TierLong
		out[i] = f

		meta := map[string]map[string]string{"index": {"_id": f.ID}}
		if err := enc.Encode(meta); err != nil {
			return nil, fmt.Errorf("elasticsearch: encode bulk meta: %w", err)
		}
		if err := enc.Encode(source{
			FragmentID:     f.ID,
			ConversationID: f.ConversationID,
			Role:           string(f.Role),
			Content:        f.Content,
			CreatedAt:      f.CreatedAt.UTC(),
		}); err != nil {
			return nil, fmt.Errorf("elasticsearch: encode bulk source: %w", err)
		}
	}

	res, err := s.es.Bulk(&buf,
		s.es.Bulk.WithContext(ctx),
		s.es.Bulk.WithIndex(s.index),
		s.es.Bulk.WithRefresh(s.refresh),
	)
	res, err = check(res, err, "bulk insert")
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("elasticsearch: decode bulk response: %w", err)
	}
	if br.Errors {
		var errs []error
		for _, item := range br.Items {
			for _, r := range item {
				if r.Error == nil {
					continue
				}
				if r.Error.Type == indexNotFound {
					errs = append(errs, memory.ErrIndexMissing)
				}
				errs = append(errs, fmt.Errorf("%s: %s: %s", r.ID, r.Error.Type, r.Error.Reason))
			}
		}
		return nil, fmt.Errorf("elasticsearch: bulk insert: %w", errors.Join(errs...))
	}
	return out, nil
}

// MoreLikeThis implements memory.LongStore with a more_like_this query
// scoped to the conversation.
func (s *Store) MoreLikeThis(ctx context.Context, conversationID, like string, maxTerms, limit int) ([]memory.Fragment, error) {
	if limit <= 0 {
		return nil, nil
	}
	mlt := map[string]any{
		"fields":        []string{"content"},
		"like":          like,
		"min_term_freq": 1,
		"min_doc_freq":  1,
	}
	if maxTerms > 0 {
		mlt["max_query_terms"] = maxTerms
	}
	query := map[string]any{
		"size": limit,
		"query": map[string]any{
			"bool": map[string]any{
				"must":   map[string]any{"more_like_this": mlt},
				"filter": map[string]any{"term": map[string]any{"conversation_id": conversationID}},
			},
		},
	}
	frags, _, err := s.search(ctx, query, "more like this")
	return frags, err
}

// Delete implements memory.LongStore.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.es.Delete(s.index, id,
		s.es.Delete.WithContext(ctx),
		s.es.Delete.WithRefresh(s.refresh),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch: delete: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode == http.StatusNotFound {
		return memory.ErrNotFound
	}
	if res.IsError() {
		return fmt.Errorf("elasticsearch: delete: %s", res.Status())
	}
	return nil
}

// List implements memory.LongStore. It pages through every matching
// fragment with search_after, oldest first; fragment_id breaks ties between
// fragments created in the same millisecond.
func (s *Store) List(ctx context.Context, conversationID string) ([]memory.Fragment, error) {
	q := map[string]any{"match_all": map[string]any{}}
	if conversationID != "" {
		q = map[string]any{"term": map[string]any{"conversation_id": conversationID}}
	}

	var (
		out   []memory.Fragment
		after []any
	)
	for {
		query := map[string]any{
			"size":  s.pageSize,
			"query": q,
			"sort": []any{
				map[string]any{"created_at": "asc"},
				map[string]any{"fragment_id": map[string]any{"order": "asc", "missing": "_last", "unmapped_type": "keyword"}},
			},
		}
		if after != nil {
			query["search_after"] = after
		}
		page, last, err := s.search(ctx, query, "list")
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < s.pageSize || len(last) == 0 {
			return out, nil
		}
		after = last
	}
}

// search runs query and returns the hits with the sort values of the last
// one.
func (s *Store) search(ctx context.Context, query map[string]any, op string) ([]memory.Fragment, []any, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, nil, fmt.Errorf("elasticsearch: encode %s query: %w", op, err)
	}
	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(body)),
	)
	res, err = check(res, err, op)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, nil, fmt.Errorf("elasticsearch: decode %s response: %w", op, err)
	}
	var last []any
	out := make([]memory.Fragment, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		last = h.Sort
		out = append(out, memory.Fragment{
			ID:             h.ID,
			ConversationID: h.Source.ConversationID,
			Role:           memory.Role(h.Source.Role),
			Content:        h.Source.Content,
			CreatedAt:      h.Source.CreatedAt,
			Tier:           memory.TierLong,
		})
	}
	return out, last, nil
}

// Indices implements memory.LongStore by listing the cluster's indices.
func (s *Store) Indices(ctx context.Context) ([]string, error) {
	res, err := s.es.Cat.Indices(
		s.es.Cat.Indices.WithContext(ctx),
		s.es.Cat.Indices.WithFormat("json"),
		s.es.Cat.Indices.WithH("index"),
	)
	res, err = check(res, err, "cat indices")
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var rows []struct {
		Index string `json:"index"`
	}
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("elasticsearch: decode cat indices: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Index)
	}
	return out, nil
}

// Compile-time interface guard.
var _ memory.LongStore = (*Store)(nil)
