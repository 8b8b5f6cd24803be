package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const (
	idxCollections = "builder_collections"
	idxItems       = "builder_items"
)

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
	logger  *zap.Logger
}

// NewMeili creates a Meilisearch client and configures indexes. An
// unreachable server leaves it unhealthy until the health loop sees it.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
		logger: logger,
	}

	if _, err := client.Health(); err != nil {
		logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		primaryKey string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxCollections,
			primaryKey: "id",
			filterable: []string{"owner", "isPublished"},
			searchable: []string{"name", "symbol", "urn"},
		},
		{
			uid:        idxItems,
			primaryKey: "id",
			filterable: []string{"owner", "collectionId", "rarity", "category"},
			searchable: []string{"name", "description", "tags"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: idx.primaryKey,
		}); err != nil {
			m.logger.Debug("create index (may already exist)", zap.String("index", idx.uid), zap.Error(err))
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.logger.Warn("update filterable attributes", zap.String("index", idx.uid), zap.Error(err))
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			m.logger.Warn("update searchable attributes", zap.String("index", idx.uid), zap.Error(err))
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries both indexes, or the one FilterType names, and merges hits.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxCollections, ResultCollection},
		{idxItems, ResultItem},
	}

	var queries []*meili.SearchRequest
	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              ti.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		}
		if filters := meiliFilters(q, ti.rtyp); len(filters) > 0 {
			sr.Filter = filters
		}
		queries = append(queries, sr)
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

func meiliFilters(q Query, rtyp ResultType) []string {
	var filters []string
	if q.FilterOwner != "" {
		filters = append(filters, fmt.Sprintf("owner = %q", strings.ToLower(q.FilterOwner)))
	}
	if q.FilterCollectionID != "" && rtyp == ResultItem {
		filters = append(filters, fmt.Sprintf("collectionId = %q", q.FilterCollectionID))
	}
	return filters
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxCollections:
		return ResultCollection
	case idxItems:
		return ResultItem
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")
	r.Owner = decodeString(hit, "owner")
	r.Title = firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name"))

	switch rtyp {
	case ResultCollection:
		r.CollectionID = r.ID
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "symbol"), decodeString(hit, "symbol"))
	case ResultItem:
		r.CollectionID = decodeString(hit, "collectionId")
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func (m *Meili) IndexCollections(collections []CollectionRecord) error {
	if len(collections) == 0 {
		return nil
	}
	_, err := m.client.Index(idxCollections).AddDocuments(collections, nil)
	return err
}

func (m *Meili) IndexItems(items []ItemRecord) error {
	if len(items) == 0 {
		return nil
	}
	_, err := m.client.Index(idxItems).AddDocuments(items, nil)
	return err
}

func (m *Meili) DeleteCollection(id string) error {
	_, err := m.client.Index(idxCollections).DeleteDocument(id, nil)
	return err
}

func (m *Meili) DeleteItem(id string) error {
	_, err := m.client.Index(idxItems).DeleteDocument(id, nil)
	return err
}
