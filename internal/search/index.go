// internal/search/index.go
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"property-tracker/internal/common/logger"
	"property-tracker/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var (
	ErrSearchDisabled    = errors.New("SEARCH_DISABLED")
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
)

const (
	defaultSize = 20
	maxSize     = 100
)

// Index keeps an Elasticsearch index in step with the property store and
// answers full-text queries. A nil client disables it.
type Index struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndex(client *elasticsearch.Client, index string, log logger.Logger) *Index {
	if index == "" {
		index = "properties"
	}
	return &Index{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"index": index}),
	}
}

func (i *Index) Enabled() bool {
	return i != nil && i.client != nil
}

// PropertySaved indexes p. Failures are logged; the store write already
// committed.
func (i *Index) PropertySaved(ctx context.Context, p models.Property) {
	if !i.Enabled() {
		return
	}

	body, err := json.Marshal(newDocument(p))
	if err != nil {
		i.logger.Error("failed to encode property document", map[string]interface{}{"propertyId": p.ID, "error": err.Error()})
		return
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: p.ID,
		Body:       bytes.NewReader(body),
	}
	i.do(ctx, req, "index", map[string]interface{}{"propertyId": p.ID})
}

func (i *Index) PropertyDeleted(ctx context.Context, id string) {
	if !i.Enabled() {
		return
	}
	req := esapi.DeleteRequest{Index: i.index, DocumentID: id}
	i.do(ctx, req, "delete", map[string]interface{}{"propertyId": id})
}

func (i *Index) GroupDeleted(ctx context.Context, groupID string) {
	if !i.Enabled() {
		return
	}

	body, _ := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"searchGroupId": groupID},
		},
	})
	req := esapi.DeleteByQueryRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
	}
	i.do(ctx, req, "delete_by_query", map[string]interface{}{"groupId": groupID})
}

func (i *Index) do(ctx context.Context, req esapi.Request, op string, fields map[string]interface{}) {
	fields["op"] = op

	res, err := req.Do(ctx, i.client)
	if err != nil {
		fields["error"] = err.Error()
		i.logger.Error("search index update failed", fields)
		return
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		fields["status"] = res.StatusCode
		i.logger.Error("search index update rejected", fields)
		return
	}
	i.logger.Debug("search index updated", fields)
}

// Search runs a full-text query over the properties of one group. The caller
// is responsible for checking the group belongs to the current user.
func (i *Index) Search(ctx context.Context, groupID, query string, size int) ([]Hit, error) {
	if !i.Enabled() {
		return nil, ErrSearchDisabled
	}
	if size < 1 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}

	body, _ := json.Marshal(buildQuery(groupID, query))
	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}

	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchQueryFailed, res.Status())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}

	hits := make([]Hit, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		hits = append(hits, Hit{
			ID:      h.ID,
			Title:   h.Source.Title,
			Address: h.Source.Address,
			Price:   h.Source.Price,
			Status:  h.Source.Status,
			Score:   h.Score,
		})
	}
	return hits, nil
}

func buildQuery(groupID, query string) map[string]interface{} {
	filter := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"searchGroupId": groupID}},
	}

	must := []interface{}{}
	if q := strings.TrimSpace(query); q != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     q,
				"fields":    []string{"title^3", "address^2", "comments", "contactName", "sourceName"},
				"type":      "best_fields",
				"fuzziness": "AUTO",
			},
		})
	} else {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
	}
}
