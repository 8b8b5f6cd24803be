package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"builder/internal/model"
	"builder/internal/outcome"
)

// Snapshot is a detached copy of every table in State.
type Snapshot struct {
	Collections    []model.Collection    `json:"collections"`
	Items          []model.Item          `json:"items"`
	Lands          []model.Land          `json:"lands"`
	Deployments    []model.Deployment    `json:"deployments"`
	Projects       []model.Project       `json:"projects"`
	Authorizations []model.Authorization `json:"authorizations"`
	Rarities       []model.RarityInfo    `json:"rarities"`
	Curations      []model.ItemCuration  `json:"curations"`
	Failures       map[string]string     `json:"failures"`
}

// State holds the normalized entity tables. It is written only by Apply;
// every reader gets copies.
type State struct {
	mu             sync.RWMutex
	version        uint64
	collections    map[string]model.Collection
	items          map[string]model.Item
	lands          map[string]model.Land
	deployments    map[string]model.Deployment
	projects       map[string]model.Project
	authorizations map[string]model.Authorization
	curations      map[string]model.ItemCuration
	rarities       []model.RarityInfo
	failures       map[string]string
}

func NewState() *State {
	return &State{
		collections:    make(map[string]model.Collection),
		items:          make(map[string]model.Item),
		lands:          make(map[string]model.Land),
		deployments:    make(map[string]model.Deployment),
		projects:       make(map[string]model.Project),
		authorizations: make(map[string]model.Authorization),
		curations:      make(map[string]model.ItemCuration),
		failures:       make(map[string]string),
	}
}

// Handle is a bus handler that applies outcomes.
func (s *State) Handle(_ context.Context, o outcome.Outcome) {
	s.Apply(o)
}

// Apply folds a settled outcome into the tables. Progress outcomes are
// ignored. Failures are recorded against the outcome key; entity tables
// change only on success, except for the partial results of a bulk item
// save.
func (s *State) Apply(o outcome.Outcome) {
	if !o.Settled() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++

	if o.Kind == outcome.KindSaveMultipleItems {
		s.upsertItems(o.Items)
	}

	if !o.Completed() {
		if o.Key != "" && o.Error != "" {
			s.failures[o.Key] = o.Error
		}
		return
	}
	if o.Key != "" {
		delete(s.failures, o.Key)
	}

	switch o.Kind {
	case outcome.KindDeleteCollection:
		for _, id := range o.Removed {
			delete(s.collections, id)
			for itemID, item := range s.items {
				if item.CollectionID == id {
					item.CollectionID = ""
					s.items[itemID] = item
				}
			}
		}
	case outcome.KindDeleteItem:
		for _, id := range o.Removed {
			delete(s.items, id)
		}
	case outcome.KindFetchLands:
		address := strings.ToLower(o.Address)
		for id, land := range s.lands {
			if strings.EqualFold(land.Owner, address) {
				delete(s.lands, id)
			}
		}
	case outcome.KindTransferLand, outcome.KindDissolveEstate:
		for _, id := range o.Removed {
			delete(s.lands, id)
		}
	case outcome.KindFetchDeployments:
		s.clearDeploymentsOn(o.Coords)
	case outcome.KindDeployToLand:
		for _, id := range o.Removed {
			delete(s.deployments, id)
		}
		for _, deployment := range o.Deployments {
			s.clearDeploymentsOn(deployment.Parcels)
		}
	case outcome.KindClearDeployment:
		for _, id := range o.Removed {
			delete(s.deployments, id)
		}
	case outcome.KindFetchRarities:
		s.rarities = append([]model.RarityInfo(nil), o.Rarities...)
	}

	for _, collection := range o.Collections {
		s.collections[collection.ID] = collection.Clone()
	}
	if o.Kind != outcome.KindSaveMultipleItems {
		s.upsertItems(o.Items)
	}
	for _, land := range o.Lands {
		s.lands[land.ID] = cloneLand(land)
	}
	for _, deployment := range o.Deployments {
		s.deployments[deployment.ID] = cloneDeployment(deployment)
	}
	for _, project := range o.Projects {
		s.projects[project.ID] = project
	}
	for _, authorization := range o.Authorizations {
		s.authorizations[authorization.Key()] = authorization
	}
	for _, curation := range o.Curations {
		s.curations[curation.ItemID] = curation
	}
}

func (s *State) upsertItems(items []model.Item) {
	for _, item := range items {
		s.items[item.ID] = item.Clone()
	}
}

// clearDeploymentsOn drops every deployment covering one of coords.
func (s *State) clearDeploymentsOn(coords []string) {
	if len(coords) == 0 {
		return
	}
	covered := make(map[string]struct{}, len(coords))
	for _, coord := range coords {
		covered[coord] = struct{}{}
	}
	for id, deployment := range s.deployments {
		for _, parcel := range deployment.Parcels {
			if _, ok := covered[parcel]; ok {
				delete(s.deployments, id)
				break
			}
		}
	}
}

// Version increases on every applied outcome.
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *State) Collection(id string) (model.Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	collection, ok := s.collections[id]
	return collection.Clone(), ok
}

func (s *State) Collections() []model.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Collection, 0, len(s.collections))
	for _, collection := range s.collections {
		out = append(out, collection.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *State) Item(id string) (model.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return model.Item{}, false
	}
	return item.Clone(), true
}

func (s *State) Items() []model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Clone())
	}
	sortItems(out)
	return out
}

// CollectionItems returns the items of a collection ordered by creation.
func (s *State) CollectionItems(collectionID string) []model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Item
	for _, item := range s.items {
		if item.CollectionID == collectionID {
			out = append(out, item.Clone())
		}
	}
	sortItems(out)
	return out
}

func sortItems(items []model.Item) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

func (s *State) Land(id string) (model.Land, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	land, ok := s.lands[id]
	return cloneLand(land), ok
}

func (s *State) Lands() []model.Land {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Land, 0, len(s.lands))
	for _, land := range s.lands {
		out = append(out, cloneLand(land))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *State) Deployment(id string) (model.Deployment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	deployment, ok := s.deployments[id]
	return cloneDeployment(deployment), ok
}

func (s *State) Deployments() []model.Deployment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Deployment, 0, len(s.deployments))
	for _, deployment := range s.deployments {
		out = append(out, cloneDeployment(deployment))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *State) Project(id string) (model.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	project, ok := s.projects[id]
	return project, ok
}

func (s *State) Failure(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures[key]
}

// Snapshot copies every table.
func (s *State) Snapshot() Snapshot {
	snapshot := Snapshot{
		Collections: s.Collections(),
		Items:       s.Items(),
		Lands:       s.Lands(),
		Deployments: s.Deployments(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, project := range s.projects {
		snapshot.Projects = append(snapshot.Projects, project)
	}
	sort.Slice(snapshot.Projects, func(i, j int) bool { return snapshot.Projects[i].ID < snapshot.Projects[j].ID })
	for _, authorization := range s.authorizations {
		snapshot.Authorizations = append(snapshot.Authorizations, authorization)
	}
	sort.Slice(snapshot.Authorizations, func(i, j int) bool {
		return snapshot.Authorizations[i].Key() < snapshot.Authorizations[j].Key()
	})
	for _, curation := range s.curations {
		snapshot.Curations = append(snapshot.Curations, curation)
	}
	sort.Slice(snapshot.Curations, func(i, j int) bool { return snapshot.Curations[i].ItemID < snapshot.Curations[j].ItemID })
	snapshot.Rarities = append([]model.RarityInfo(nil), s.rarities...)
	snapshot.Failures = make(map[string]string, len(s.failures))
	for key, message := range s.failures {
		snapshot.Failures[key] = message
	}
	return snapshot
}

// Restore replaces every table with the contents of a snapshot.
func (s *State) Restore(snapshot Snapshot) {
	fresh := NewState()
	for _, collection := range snapshot.Collections {
		fresh.collections[collection.ID] = collection.Clone()
	}
	fresh.upsertItems(snapshot.Items)
	for _, land := range snapshot.Lands {
		fresh.lands[land.ID] = cloneLand(land)
	}
	for _, deployment := range snapshot.Deployments {
		fresh.deployments[deployment.ID] = cloneDeployment(deployment)
	}
	for _, project := range snapshot.Projects {
		fresh.projects[project.ID] = project
	}
	for _, authorization := range snapshot.Authorizations {
		fresh.authorizations[authorization.Key()] = authorization
	}
	for _, curation := range snapshot.Curations {
		fresh.curations[curation.ItemID] = curation
	}
	fresh.rarities = append([]model.RarityInfo(nil), snapshot.Rarities...)
	for key, message := range snapshot.Failures {
		fresh.failures[key] = message
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = fresh.collections
	s.items = fresh.items
	s.lands = fresh.lands
	s.deployments = fresh.deployments
	s.projects = fresh.projects
	s.authorizations = fresh.authorizations
	s.curations = fresh.curations
	s.rarities = fresh.rarities
	s.failures = fresh.failures
	s.version++
}

func cloneLand(land model.Land) model.Land {
	land.Parcels = append([]model.ParcelRef(nil), land.Parcels...)
	land.Operators = append([]string(nil), land.Operators...)
	return land
}

func cloneDeployment(deployment model.Deployment) model.Deployment {
	deployment.Parcels = append([]string(nil), deployment.Parcels...)
	if deployment.Layout != nil {
		layout := *deployment.Layout
		deployment.Layout = &layout
	}
	return deployment
}
