package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"builder/internal/model"
	"builder/internal/outcome"
)

func TestApplyIgnoresProgress(t *testing.T) {
	state := NewState()
	state.Apply(outcome.Outcome{
		Kind:   outcome.KindSaveMultipleProgress,
		Status: outcome.StatusProgress,
		Items:  []model.Item{{ID: "i1"}},
	})
	assert.Empty(t, state.Items())
	assert.Zero(t, state.Version())
}

func TestApplyFailureRecordsMessageOnly(t *testing.T) {
	state := NewState()
	failed := outcome.Failure(outcome.KindSaveCollection, "c1", errors.New("boom"))
	failed.Collections = []model.Collection{{ID: "c1"}}
	state.Apply(failed)

	assert.Equal(t, "boom", state.Failure("c1"))
	_, ok := state.Collection("c1")
	assert.False(t, ok)

	ok1 := outcome.Success(outcome.KindSaveCollection, "c1")
	ok1.Collections = []model.Collection{{ID: "c1", Name: "Hats"}}
	state.Apply(ok1)
	assert.Empty(t, state.Failure("c1"))
	got, found := state.Collection("c1")
	require.True(t, found)
	assert.Equal(t, "Hats", got.Name)
}

func TestGettersReturnCopies(t *testing.T) {
	state := NewState()
	saved := outcome.Success(outcome.KindSaveItem, "i1")
	saved.Items = []model.Item{{ID: "i1", Contents: map[string]string{"a": "1"}}}
	state.Apply(saved)

	item, _ := state.Item("i1")
	item.Contents["a"] = "changed"

	again, _ := state.Item("i1")
	assert.Equal(t, "1", again.Contents["a"])
}

func TestCancelledBulkSaveKeepsPartialItems(t *testing.T) {
	state := NewState()
	cancelled := outcome.Outcome{
		Kind:   outcome.KindSaveMultipleItems,
		Status: outcome.StatusCancelled,
		Items:  []model.Item{{ID: "i1"}, {ID: "i2"}},
	}
	state.Apply(cancelled)
	assert.Len(t, state.Items(), 2)
}

func TestDeleteCollectionDetachesItems(t *testing.T) {
	state := NewState()
	seed := outcome.Success(outcome.KindFetchCollection, "c1")
	seed.Collections = []model.Collection{{ID: "c1"}}
	seed.Items = []model.Item{{ID: "i1", CollectionID: "c1"}}
	state.Apply(seed)

	deleted := outcome.Success(outcome.KindDeleteCollection, "c1")
	deleted.Removed = []string{"c1"}
	state.Apply(deleted)

	assert.Empty(t, state.Collections())
	item, ok := state.Item("i1")
	require.True(t, ok)
	assert.Empty(t, item.CollectionID)
}

func TestCollectionItemsOrderedByCreation(t *testing.T) {
	state := NewState()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fetched := outcome.Success(outcome.KindFetchCollectionItems, "c1")
	fetched.Items = []model.Item{
		{ID: "b", CollectionID: "c1", CreatedAt: base.Add(time.Hour)},
		{ID: "a", CollectionID: "c1", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "c", CollectionID: "c1", CreatedAt: base},
		{ID: "x", CollectionID: "other", CreatedAt: base},
	}
	state.Apply(fetched)

	var ids []string
	for _, item := range state.CollectionItems("c1") {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)
}

func TestFetchLandsReplacesOwnerLands(t *testing.T) {
	state := NewState()
	first := outcome.Success(outcome.KindFetchLands, "0xabc")
	first.Address = "0xABC"
	first.Lands = []model.Land{
		{ID: "1,1", Owner: "0xabc", Type: model.LandTypeParcel},
		{ID: "2,2", Owner: "0xabc", Type: model.LandTypeParcel},
	}
	state.Apply(first)

	second := outcome.Success(outcome.KindFetchLands, "0xabc")
	second.Address = "0xabc"
	second.Lands = []model.Land{{ID: "2,2", Owner: "0xabc", Type: model.LandTypeParcel}}
	state.Apply(second)

	lands := state.Lands()
	require.Len(t, lands, 1)
	assert.Equal(t, "2,2", lands[0].ID)
}

func TestDeploymentsLastWriterWinsPerParcel(t *testing.T) {
	state := NewState()
	first := outcome.Success(outcome.KindDeployToLand, "p1")
	first.Deployments = []model.Deployment{{ID: "0x1", Parcels: []string{"0,0", "0,1"}}}
	state.Apply(first)

	second := outcome.Success(outcome.KindDeployToLand, "p2")
	second.Deployments = []model.Deployment{{ID: "0x2", Parcels: []string{"0,1"}}}
	state.Apply(second)

	deployments := state.Deployments()
	require.Len(t, deployments, 1)
	assert.Equal(t, "0x2", deployments[0].ID)

	cleared := outcome.Success(outcome.KindClearDeployment, "0x2")
	cleared.Removed = []string{"0x2"}
	state.Apply(cleared)
	assert.Empty(t, state.Deployments())
}

func TestSnapshotRestore(t *testing.T) {
	state := NewState()
	seed := outcome.Success(outcome.KindFetchRarities, "")
	seed.Rarities = []model.RarityInfo{{ID: "epic", MaxSupply: 1000}}
	seed.Authorizations = []model.Authorization{{Type: model.AuthorizationApproval, Address: "0x1", Granted: true}}
	state.Apply(seed)
	state.Apply(outcome.Failure(outcome.KindPublish, "c9", errors.New("nope")))

	restored := NewState()
	restored.Restore(state.Snapshot())

	snapshot := restored.Snapshot()
	assert.Equal(t, "epic", snapshot.Rarities[0].ID)
	assert.True(t, snapshot.Authorizations[0].Granted)
	assert.Equal(t, "nope", restored.Failure("c9"))
}

type recordingStore struct {
	saves []Snapshot
}

func (r *recordingStore) SaveSnapshot(_ context.Context, snapshot Snapshot) error {
	r.saves = append(r.saves, snapshot)
	return nil
}

func TestPersisterFlushesOnlyOnChange(t *testing.T) {
	state := NewState()
	sink := &recordingStore{}
	persister := NewPersister(state, sink, time.Second, nil)
	ctx := context.Background()

	require.NoError(t, persister.Flush(ctx))
	assert.Empty(t, sink.saves)

	saved := outcome.Success(outcome.KindSaveItem, "i1")
	saved.Items = []model.Item{{ID: "i1"}}
	state.Apply(saved)

	require.NoError(t, persister.Flush(ctx))
	require.NoError(t, persister.Flush(ctx))
	require.Len(t, sink.saves, 1)
	assert.Equal(t, "i1", sink.saves[0].Items[0].ID)
}
