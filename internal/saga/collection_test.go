package saga

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"builder/internal/model"
	"builder/internal/outcome"
)

func publishFixture() (model.Collection, []model.Item) {
	collection := model.Collection{ID: "c1", Name: "Hats", Symbol: "HAT", Owner: testWallet}
	items := []model.Item{
		{
			ID:           "i1",
			Name:         "Red hat",
			CollectionID: "c1",
			Rarity:       model.RarityEpic,
			Type:         model.ItemTypeWearable,
			Contents:     map[string]string{model.ThumbnailPath: "QmThumb", "male/hat.glb": "QmHat"},
			Data: model.WearableData{
				Category: "hat",
				Tags:     []string{"red"},
				Representations: []model.Representation{{
					BodyShapes: []string{model.BodyShapeMale},
					MainFile:   "male/hat.glb",
					Contents:   []string{"male/hat.glb"},
				}},
			},
		},
		{ID: "i2", Name: "Blue hat", CollectionID: "c1", Rarity: model.RarityUnique, Price: "100", Contents: map[string]string{}},
	}
	return collection, items
}

func TestPublishSavesBeforeMinting(t *testing.T) {
	h := newHarness(t)
	collection, items := publishFixture()
	h.builder.serverItems = items
	h.builder.saveCollection = func(c model.Collection) (model.Collection, error) {
		c.ContractAddress = "0x00000000000000000000000000000000000000c1"
		return c, nil
	}

	out := h.orch.PublishCollection(context.Background(), collection, items)
	require.True(t, out.Completed(), out.Error)

	assert.Equal(t, []string{
		"builder.saveCollection c1",
		"builder.fetchCollectionItems c1",
		"hub.metadata",
		"hub.metadata",
		"chain.create Hats",
		"builder.lock c1",
	}, h.log.list())

	assert.Equal(t, "0xtx1", out.TxHash)
	assert.Equal(t, int64(11155111), out.ChainID)
	published := out.Collections[0]
	assert.Equal(t, h.builder.lockedAt, published.Lock)
	assert.Equal(t, "0x00000000000000000000000000000000000000c1", published.ContractAddress)

	require.Len(t, h.chain.createArgs, 2)
	assert.Equal(t, int64(1000), h.chain.createArgs[0].MaxSupply.Int64())
	assert.Equal(t, "ipfs://doc1", h.chain.createArgs[0].TokenURI)
	assert.Equal(t, int64(0), h.chain.createArgs[0].Price.Int64())
	assert.Equal(t, int64(100), h.chain.createArgs[1].Price.Int64())

	stored, ok := h.state.Collection("c1")
	require.True(t, ok)
	assert.Equal(t, h.builder.lockedAt, stored.Lock)
}

func TestPublishLockedCollectionSkipsSave(t *testing.T) {
	h := newHarness(t)
	collection, items := publishFixture()
	collection.Lock = h.orch.now().Add(-time.Hour)
	h.builder.serverItems = items

	out := h.orch.PublishCollection(context.Background(), collection, items)
	require.True(t, out.Completed(), out.Error)
	assert.Zero(t, h.log.count("builder.saveCollection c1"))
}

func TestPublishFailsWhenSaveFails(t *testing.T) {
	h := newHarness(t)
	collection, items := publishFixture()
	collection.Name = "bad:name"

	out := h.orch.PublishCollection(context.Background(), collection, items)
	assert.Equal(t, outcome.StatusFailure, out.Status)
	assert.Equal(t, "Invalid collection name", out.Error)
	assert.Zero(t, h.log.count("chain.create bad:name"))
}

func TestPublishUnsyncedCollectionNeverMints(t *testing.T) {
	cases := map[string]struct {
		server []model.Item
		detail string
	}{
		"different length": {
			server: []model.Item{{ID: "i1"}},
			detail: "Different items length",
		},
		"unknown server item": {
			server: []model.Item{{ID: "i1"}, {ID: "i9"}},
			detail: "Item found in the server but not in the browser",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			collection, items := publishFixture()
			h.builder.serverItems = tc.server

			out := h.orch.PublishCollection(context.Background(), collection, items)
			require.Equal(t, outcome.StatusFailure, out.Status)
			assert.True(t, model.IsUnsynced(out.Error))
			assert.Contains(t, out.Error, tc.detail)
			assert.Len(t, out.Items, 2)
			for _, call := range h.log.list() {
				assert.NotContains(t, call, "chain.")
				assert.NotContains(t, call, "hub.")
			}
			assert.Equal(t, out.Error, h.state.Failure("c1"))
		})
	}
}

func TestPublishLockRetry(t *testing.T) {
	t.Run("nine failures still lock", func(t *testing.T) {
		h := newHarness(t)
		collection, items := publishFixture()
		h.builder.serverItems = items
		h.builder.lockFailures = 9

		out := h.orch.PublishCollection(context.Background(), collection, items)
		require.True(t, out.Completed(), out.Error)
		assert.Equal(t, 10, h.builder.lockCalls)
	})

	t.Run("ten failures fail after ten attempts", func(t *testing.T) {
		h := newHarness(t)
		collection, items := publishFixture()
		h.builder.serverItems = items
		h.builder.lockFailures = 10

		out := h.orch.PublishCollection(context.Background(), collection, items)
		assert.Equal(t, outcome.StatusFailure, out.Status)
		assert.Equal(t, "lock failed", out.Error)
		assert.Equal(t, 10, h.builder.lockCalls)
		assert.Equal(t, 1, h.log.count("chain.create Hats"))
	})

	t.Run("attempts are spaced by the lock delay", func(t *testing.T) {
		h := newHarness(t)
		h.orch.cfg.LockDelay = 20 * time.Millisecond
		collection, items := publishFixture()
		h.builder.serverItems = items
		h.builder.lockFailures = 3

		out := h.orch.PublishCollection(context.Background(), collection, items)
		require.True(t, out.Completed(), out.Error)
		require.Len(t, h.builder.lockTimes, 4)
		for i := 1; i < len(h.builder.lockTimes); i++ {
			gap := h.builder.lockTimes[i].Sub(h.builder.lockTimes[i-1])
			assert.GreaterOrEqual(t, gap, 20*time.Millisecond, "attempt %d", i+1)
		}
	})
}

func TestConcurrentPublishesUseTheirOwnSaveResult(t *testing.T) {
	h := newHarness(t)
	_, items := publishFixture()
	h.builder.serverItems = items
	h.builder.saveCollection = func(c model.Collection) (model.Collection, error) {
		c.Salt = "salt-" + c.ID
		return c, nil
	}

	results := make(chan outcome.Outcome, 2)
	for _, id := range []string{"a", "b"} {
		collection := model.Collection{ID: id, Name: "Hats " + id}
		go func() {
			results <- h.orch.PublishCollection(context.Background(), collection, items)
		}()
	}
	for range 2 {
		out := <-results
		require.True(t, out.Completed(), out.Error)
		assert.Equal(t, "salt-"+out.Key, out.Collections[0].Salt)
	}
}

func TestSaveCollectionRejectsLocked(t *testing.T) {
	h := newHarness(t)
	collection := model.Collection{ID: "c1", Name: "Hats", Lock: h.orch.now()}

	out := h.orch.SaveCollection(context.Background(), collection)
	assert.Equal(t, model.ErrCollectionLocked.Error(), out.Error)
	assert.Zero(t, h.log.count("builder.saveCollection c1"))
}

func TestSaveCollectionMergesServerFields(t *testing.T) {
	h := newHarness(t)
	h.builder.saveCollection = func(c model.Collection) (model.Collection, error) {
		return model.Collection{ID: c.ID, ContractAddress: "0xabc"}, nil
	}
	out := h.orch.SaveCollection(context.Background(), model.Collection{ID: "c1", Name: "Hats", Symbol: "HAT"})
	require.True(t, out.Completed())
	assert.Equal(t, "Hats", out.Collections[0].Name)
	assert.Equal(t, "0xabc", out.Collections[0].ContractAddress)
}

func TestSetMintersUpdatesMinterList(t *testing.T) {
	h := newHarness(t)
	collection := model.Collection{ID: "c1", ContractAddress: "0xc1", Minters: []string{"0xAAA", "0xbbb"}}

	out := h.orch.SetMinters(context.Background(), collection, []model.MinterAccess{
		{Address: "0xaaa", HasAccess: false},
		{Address: "0xccc", HasAccess: true},
	})
	require.True(t, out.Completed())
	assert.Equal(t, []string{"0xbbb", "0xccc"}, out.Collections[0].Minters)
	assert.Equal(t, "0xtx2", out.TxHash)
	assert.Equal(t, []string{"chain.setMinter 0xaaa false", "chain.setMinter 0xccc true"}, h.log.list())
}

func TestMintItemsUsesPublishedTokenIDs(t *testing.T) {
	h := newHarness(t)
	seed := outcome.Outcome{Kind: outcome.KindFetchItems}
	seed.Items = []model.Item{{ID: "i1", TokenID: "7"}}
	h.seed(seed)

	collection := model.Collection{ID: "c1", ContractAddress: "0xc1"}
	out := h.orch.MintItems(context.Background(), collection, []model.Mint{
		{Address: "0x1", ItemID: "i1", Amount: 2},
		{Address: "0x2", ItemID: "i1", TokenID: "7", Amount: 1},
	})
	require.True(t, out.Completed())
	assert.Equal(t, []string{"chain.batchCreate 0x1 7 2", "chain.batchCreate 0x2 7 1"}, h.log.list())
	assert.Equal(t, "7", out.Mints[0].TokenID)
}

func TestMintItemsWithoutTokenIDFails(t *testing.T) {
	h := newHarness(t)
	out := h.orch.MintItems(context.Background(), model.Collection{ID: "c1"}, []model.Mint{{Address: "0x1", ItemID: "missing", Amount: 1}})
	assert.Equal(t, outcome.StatusFailure, out.Status)
	assert.Empty(t, h.log.list())
}

func TestFinishPublishingSyncsOwnedCollections(t *testing.T) {
	h := newHarness(t)
	seed := outcome.Outcome{Kind: outcome.KindFetchCollections}
	seed.Collections = []model.Collection{
		{ID: "mine", Owner: testWallet, IsPublished: true},
		{ID: "other", Owner: "0xother", IsPublished: true},
		{ID: "draft", Owner: testWallet},
	}
	seed.Items = []model.Item{
		{ID: "i1", CollectionID: "mine"},
		{ID: "i2", CollectionID: "other"},
		{ID: "i3", CollectionID: "draft"},
	}
	h.seed(seed)
	h.builder.syncCollection = model.Collection{ID: "mine", Owner: testWallet, IsPublished: true}
	h.builder.syncItems = []model.Item{{ID: "i1", CollectionID: "mine", TokenID: "1"}}

	h.orch.FinishPublishing(context.Background())
	h.orch.Runner().Wait()

	assert.Equal(t, []string{"builder.sync mine"}, h.log.list())
	item, _ := h.state.Item("i1")
	assert.Equal(t, "1", item.TokenID)
}

func TestSyncFailureRetriesWithFreshState(t *testing.T) {
	h := newHarness(t)
	h.orch.Subscribe(h.bus)
	seed := outcome.Outcome{Kind: outcome.KindFetchCollections}
	seed.Collections = []model.Collection{{ID: "mine", Owner: testWallet, IsPublished: true}}
	seed.Items = []model.Item{{ID: "i1", CollectionID: "mine"}}
	h.seed(seed)
	h.builder.syncFailures = 1
	h.builder.syncCollection = model.Collection{ID: "mine", Owner: testWallet, IsPublished: true}
	h.builder.syncItems = []model.Item{{ID: "i1", CollectionID: "mine", TokenID: "3"}}

	out := h.orch.SyncTokenIDs(context.Background(), "mine")
	require.Equal(t, outcome.StatusFailure, out.Status)
	assert.Equal(t, "sync failed", h.state.Failure("mine"))

	require.Eventually(t, func() bool {
		item, _ := h.state.Item("i1")
		return item.TokenID == "3"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, h.log.count("builder.sync mine"))
	assert.Empty(t, h.state.Failure("mine"))
}

func TestSyncRetryStopsForDeletedCollection(t *testing.T) {
	h := newHarness(t)
	h.orch.Subscribe(h.bus)
	h.orch.sleep = func(ctx context.Context, _ time.Duration) error {
		h.seed(outcome.Outcome{Kind: outcome.KindDeleteCollection, Removed: []string{"gone"}})
		return nil
	}
	seed := outcome.Outcome{Kind: outcome.KindFetchCollections}
	seed.Collections = []model.Collection{{ID: "gone", Owner: testWallet, IsPublished: true}}
	h.seed(seed)
	h.builder.syncFailures = 100

	h.orch.SyncTokenIDs(context.Background(), "gone")
	h.orch.Runner().Wait()
	assert.Equal(t, 1, h.log.count("builder.sync gone"))
}
