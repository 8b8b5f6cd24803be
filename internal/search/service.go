package search

import (
	"context"

	"go.uber.org/zap"

	"builder/internal/model"
	"builder/internal/outcome"
)

// Service tries Meilisearch first and falls back to the in-memory searcher.
type Service struct {
	meili    *Meili
	fallback Searcher
	logger   *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, fallback Searcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{meili: meili, fallback: fallback, logger: logger}
}

func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back to memory", zap.Error(err))
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.fallback.Search(q)
	if err != nil {
		s.logger.Warn("fallback search", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

func (s *Service) indexing() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Handle is a bus handler that keeps the index in step with successful
// outcomes. Index writes are fire-and-forget.
func (s *Service) Handle(_ context.Context, o outcome.Outcome) {
	if !o.Completed() || !s.indexing() {
		return
	}

	var removedCollections, removedItems []string
	switch o.Kind {
	case outcome.KindDeleteCollection:
		removedCollections = o.Removed
	case outcome.KindDeleteItem:
		removedItems = o.Removed
	}

	collections := make([]CollectionRecord, 0, len(o.Collections))
	for _, collection := range o.Collections {
		collections = append(collections, CollectionRecordFrom(collection))
	}
	items := make([]ItemRecord, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, ItemRecordFrom(item))
	}
	if len(collections) == 0 && len(items) == 0 && len(removedCollections) == 0 && len(removedItems) == 0 {
		return
	}

	go func() {
		if err := s.meili.IndexCollections(collections); err != nil {
			s.logger.Warn("index collections", zap.Error(err))
		}
		if err := s.meili.IndexItems(items); err != nil {
			s.logger.Warn("index items", zap.Error(err))
		}
		for _, id := range removedCollections {
			if err := s.meili.DeleteCollection(id); err != nil {
				s.logger.Warn("delete collection from index", zap.String("id", id), zap.Error(err))
			}
		}
		for _, id := range removedItems {
			if err := s.meili.DeleteItem(id); err != nil {
				s.logger.Warn("delete item from index", zap.String("id", id), zap.Error(err))
			}
		}
	}()
}

// ReindexAll pushes every collection and item to Meilisearch.
func (s *Service) ReindexAll(collections []model.Collection, items []model.Item) {
	if !s.indexing() {
		return
	}
	collectionRecords := make([]CollectionRecord, 0, len(collections))
	for _, collection := range collections {
		collectionRecords = append(collectionRecords, CollectionRecordFrom(collection))
	}
	itemRecords := make([]ItemRecord, 0, len(items))
	for _, item := range items {
		itemRecords = append(itemRecords, ItemRecordFrom(item))
	}
	if err := s.meili.IndexCollections(collectionRecords); err != nil {
		s.logger.Warn("reindex collections", zap.Error(err))
	}
	if err := s.meili.IndexItems(itemRecords); err != nil {
		s.logger.Warn("reindex items", zap.Error(err))
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
