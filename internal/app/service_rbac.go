package app

import (
	"strings"

	"go.uber.org/zap"

	"builder/internal/model"
	"builder/internal/outcome"
	"builder/internal/rbac"
	"builder/internal/saga"
)

// isOperator reports whether the session belongs to the wallet that signs
// every transaction. The operator holds owner rights everywhere.
func (s *Service) isOperator(current Session) bool {
	operator := s.workflows.Address()
	return operator != "" && strings.EqualFold(current.Address, operator)
}

// authorizeCollection resolves the collection an intent targets. A collection
// the state has never seen may only be created, and the caller becomes its
// owner.
func (s *Service) authorizeCollection(current Session, collectionID string, action rbac.Action) (model.Collection, error) {
	collection, ok := s.state.Collection(collectionID)
	if !ok {
		if action != rbac.ActionEdit {
			return model.Collection{}, notFound("collection", collectionID)
		}
		return model.Collection{ID: collectionID, Owner: current.Address}, nil
	}
	if s.isOperator(current) || rbac.Allowed(collection, current.Address, action) {
		return collection, nil
	}
	return model.Collection{}, forbidden(action)
}

// authorizeItem checks the item's collection roles, or the item owner for
// items outside any collection.
func (s *Service) authorizeItem(current Session, itemID string, action rbac.Action) (model.Item, error) {
	item, ok := s.state.Item(itemID)
	if !ok {
		return model.Item{}, notFound("item", itemID)
	}
	if err := s.authorizeItemAccess(current, item, action); err != nil {
		return model.Item{}, err
	}
	return item, nil
}

func (s *Service) authorizeItemAccess(current Session, item model.Item, action rbac.Action) error {
	if s.isOperator(current) {
		return nil
	}
	if item.CollectionID != "" {
		if collection, ok := s.state.Collection(item.CollectionID); ok {
			if rbac.Allowed(collection, current.Address, action) {
				return nil
			}
			return forbidden(action)
		}
	}
	if item.Owner == "" || strings.EqualFold(item.Owner, current.Address) {
		return nil
	}
	return forbidden(action)
}

func (s *Service) authorizeLand(current Session, landID string) (model.Land, error) {
	land, ok := s.state.Land(landID)
	if !ok {
		return model.Land{}, notFound("land", landID)
	}
	if s.isOperator(current) || strings.EqualFold(land.Owner, current.Address) {
		return land, nil
	}
	return model.Land{}, forbidden(rbac.ActionEdit)
}

// authorizeOperator guards intents with no per-entity owner, such as scene
// deployments, which only the signing wallet may send.
func (s *Service) authorizeOperator(current Session) error {
	if s.isOperator(current) {
		return nil
	}
	return forbidden(rbac.ActionPublish)
}

func (s *Service) dispatch(kind outcome.Kind, key string, task saga.Task) {
	s.logger.Debug("dispatch intent", zap.String("kind", string(kind)), zap.String("key", key))
	s.workflows.Runner().Go(kind, key, task)
}

func (s *Service) cancel(kind outcome.Kind, key string) bool {
	return s.workflows.Runner().Cancel(kind, key)
}

func (s *Service) collectionItems(collectionID string) []model.Item {
	return s.state.CollectionItems(collectionID)
}
