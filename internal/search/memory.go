package search

import (
	"sort"
	"strings"

	"builder/internal/model"
)

// Source supplies the entities Memory searches.
type Source interface {
	Collections() []model.Collection
	Items() []model.Item
}

// Memory searches the live state by case-insensitive substring match. It is
// the fallback when Meilisearch is unavailable.
type Memory struct {
	source Source
}

func NewMemory(source Source) *Memory {
	return &Memory{source: source}
}

func (m *Memory) Healthy() bool {
	return m.source != nil
}

func (m *Memory) Search(q Query) ([]Result, int, error) {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" || m.source == nil {
		return nil, 0, nil
	}
	owner := strings.ToLower(q.FilterOwner)

	var matches []Result
	if q.FilterType == "" || q.FilterType == ResultCollection {
		for _, collection := range m.source.Collections() {
			if owner != "" && !strings.EqualFold(collection.Owner, owner) {
				continue
			}
			if q.FilterCollectionID != "" && collection.ID != q.FilterCollectionID {
				continue
			}
			if !containsAny(text, collection.Name, collection.Symbol, collection.URN) {
				continue
			}
			matches = append(matches, Result{
				Type:         ResultCollection,
				ID:           collection.ID,
				Title:        collection.Name,
				Snippet:      collection.Symbol,
				CollectionID: collection.ID,
				Owner:        strings.ToLower(collection.Owner),
			})
		}
	}
	if q.FilterType == "" || q.FilterType == ResultItem {
		for _, item := range m.source.Items() {
			if owner != "" && !strings.EqualFold(item.Owner, owner) {
				continue
			}
			if q.FilterCollectionID != "" && item.CollectionID != q.FilterCollectionID {
				continue
			}
			fields := append([]string{item.Name, item.Description}, item.Data.Tags...)
			if !containsAny(text, fields...) {
				continue
			}
			matches = append(matches, Result{
				Type:         ResultItem,
				ID:           item.ID,
				Title:        item.Name,
				Snippet:      item.Description,
				CollectionID: item.CollectionID,
				Owner:        strings.ToLower(item.Owner),
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return strings.ToLower(matches[i].Title) < strings.ToLower(matches[j].Title)
	})

	total := len(matches)
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

func containsAny(needle string, fields ...string) bool {
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
