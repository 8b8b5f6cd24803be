package search

import (
	"context"
	"encoding/json"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"builder/internal/model"
	"builder/internal/outcome"
)

type fixedSource struct {
	collections []model.Collection
	items       []model.Item
}

func (f fixedSource) Collections() []model.Collection { return f.collections }
func (f fixedSource) Items() []model.Item             { return f.items }

func testSource() fixedSource {
	return fixedSource{
		collections: []model.Collection{
			{ID: "c1", Name: "Summer Hats", Symbol: "HAT", Owner: "0xAAA"},
			{ID: "c2", Name: "Winter Boots", Symbol: "BOOT", Owner: "0xbbb"},
		},
		items: []model.Item{
			{ID: "i1", Name: "Straw hat", CollectionID: "c1", Owner: "0xaaa"},
			{ID: "i2", Name: "Snow boot", Description: "keeps your hat dry", CollectionID: "c2", Owner: "0xbbb"},
			{ID: "i3", Name: "Scarf", Owner: "0xbbb", Data: model.WearableData{Tags: []string{"HAT-adjacent"}}},
		},
	}
}

func TestMemorySearchMatchesNamesDescriptionsAndTags(t *testing.T) {
	memory := NewMemory(testSource())
	results, total, err := memory.Search(Query{Text: "hat"})
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	var ids []string
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"c1", "i1", "i2", "i3"}, ids)
}

func TestMemorySearchFilters(t *testing.T) {
	memory := NewMemory(testSource())

	results, _, err := memory.Search(Query{Text: "hat", FilterType: ResultItem, FilterOwner: "0xBBB"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, ResultItem, r.Type)
		assert.Equal(t, "0xbbb", r.Owner)
	}

	results, _, err = memory.Search(Query{Text: "hat", FilterCollectionID: "c1", FilterType: ResultItem})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "i1", results[0].ID)
}

func TestMemorySearchPaginates(t *testing.T) {
	memory := NewMemory(testSource())
	results, total, err := memory.Search(Query{Text: "hat", Limit: 2, Offset: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, results, 1)

	results, _, err = memory.Search(Query{Text: "hat", Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestServiceFallsBackWithoutMeili(t *testing.T) {
	service := NewService(nil, NewMemory(testSource()), nil)
	resp := service.Search(Query{Text: "boot"})
	assert.Equal(t, "boot", resp.Query)
	assert.Equal(t, 2, resp.Total)

	empty := NewService(nil, nil, nil).Search(Query{Text: "boot"})
	assert.NotNil(t, empty.Results)
	assert.Empty(t, empty.Results)

	// No index configured: handling outcomes is a no-op.
	service.Handle(context.Background(), outcome.Success(outcome.KindSaveCollection, "c1"))
}

func TestHitToResultPrefersHighlights(t *testing.T) {
	raw := func(v any) json.RawMessage {
		b, _ := json.Marshal(v)
		return b
	}
	hit := meili.Hit{
		"id":           raw("i1"),
		"name":         raw("Straw hat"),
		"description":  raw("light"),
		"collectionId": raw("c1"),
		"owner":        raw("0xaaa"),
		"_formatted":   raw(map[string]any{"name": "Straw <mark>hat</mark>", "tags": []string{"x"}}),
	}
	result := hitToResult(hit, ResultItem)
	assert.Equal(t, "Straw <mark>hat</mark>", result.Title)
	assert.Equal(t, "light", result.Snippet)
	assert.Equal(t, "c1", result.CollectionID)
	assert.Equal(t, "0xaaa", result.Owner)
}

func TestItemRecordLowercasesOwner(t *testing.T) {
	record := ItemRecordFrom(model.Item{ID: "i1", Owner: "0xABC", Rarity: model.RarityEpic})
	assert.Equal(t, "0xabc", record.Owner)
	assert.Equal(t, "epic", record.Rarity)
	assert.NotNil(t, record.Tags)
}
