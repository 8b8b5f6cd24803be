package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"builder/internal/chain"
	"builder/internal/model"
	"builder/internal/outcome"
	"builder/internal/transform"
)

func (o *Orchestrator) FetchCollections(ctx context.Context, owner string) outcome.Outcome {
	collections, err := o.builder.FetchCollections(ctx, owner)
	if err != nil {
		return o.fail(ctx, outcome.KindFetchCollections, owner, err)
	}
	out := outcome.Success(outcome.KindFetchCollections, owner)
	out.Address = owner
	out.Collections = collections
	return o.emit(ctx, out)
}

func (o *Orchestrator) FetchCollection(ctx context.Context, id string) outcome.Outcome {
	collection, err := o.builder.FetchCollection(ctx, id)
	if err != nil {
		return o.fail(ctx, outcome.KindFetchCollection, id, err)
	}
	out := outcome.Success(outcome.KindFetchCollection, id)
	out.Collections = []model.Collection{collection}
	return o.emit(ctx, out)
}

// SaveCollection validates and stores a collection, merging the server's
// copy over the local one.
func (o *Orchestrator) SaveCollection(ctx context.Context, collection model.Collection) outcome.Outcome {
	saved, err := o.saveCollection(ctx, collection)
	if err != nil {
		out := outcome.Failure(outcome.KindSaveCollection, collection.ID, err)
		out.Collections = []model.Collection{collection}
		return o.emit(ctx, out)
	}
	out := outcome.Success(outcome.KindSaveCollection, saved.ID)
	out.Collections = []model.Collection{saved}
	return o.emit(ctx, out)
}

func (o *Orchestrator) saveCollection(ctx context.Context, collection model.Collection) (model.Collection, error) {
	if !model.IsValidText(collection.Name) {
		return model.Collection{}, model.NewValidationError("name", "Invalid collection name")
	}
	if collection.IsLocked(o.now()) {
		return model.Collection{}, model.ErrCollectionLocked
	}
	remote, err := o.builder.SaveCollection(ctx, collection)
	if err != nil {
		return model.Collection{}, err
	}
	return transform.MergeCollection(collection, remote), nil
}

func (o *Orchestrator) DeleteCollection(ctx context.Context, collection model.Collection) outcome.Outcome {
	if err := o.builder.DeleteCollection(ctx, collection.ID); err != nil {
		return o.fail(ctx, outcome.KindDeleteCollection, collection.ID, err)
	}
	out := outcome.Success(outcome.KindDeleteCollection, collection.ID)
	out.Removed = []string{collection.ID}
	return o.emit(ctx, out)
}

// awaitSave runs the save as its own task and waits on a future owned by
// this call, so concurrent publishes never see each other's result.
func (o *Orchestrator) awaitSave(ctx context.Context, collection model.Collection) (model.Collection, error) {
	result := newFuture[model.Collection]()
	o.runner.Go(outcome.KindSaveCollection, collection.ID, func(taskCtx context.Context) {
		saved := o.SaveCollection(taskCtx, collection)
		if !saved.Completed() {
			result.resolve(model.Collection{}, errors.New(saved.Error))
			return
		}
		result.resolve(saved.Collections[0], nil)
	})
	return result.wait(ctx)
}

// PublishCollection deploys a collection and its items to the factory
// contract and locks it on the server.
func (o *Orchestrator) PublishCollection(ctx context.Context, collection model.Collection, items []model.Item) outcome.Outcome {
	key := collection.ID
	failed := func(err error) outcome.Outcome {
		out := outcome.Failure(outcome.KindPublish, key, err)
		out.Collections = []model.Collection{collection}
		out.Items = items
		return o.emit(ctx, out)
	}

	if !collection.IsLocked(o.now()) {
		saved, err := o.awaitSave(ctx, collection)
		if err != nil {
			return failed(err)
		}
		collection = saved
	}

	serverItems, err := o.builder.FetchCollectionItems(ctx, collection.ID)
	if err != nil {
		return failed(err)
	}
	if len(serverItems) != len(items) {
		return failed(model.UnsyncedCollection("Different items length"))
	}
	local := make(map[string]struct{}, len(items))
	for _, item := range items {
		local[item.ID] = struct{}{}
	}
	for _, item := range serverItems {
		if _, ok := local[item.ID]; !ok {
			return failed(model.UnsyncedCollection("Item found in the server but not in the browser"))
		}
	}

	initialize := make([]chain.InitializeItem, 0, len(items))
	for _, item := range items {
		uri, err := o.hub.CreateMetadata(ctx, ItemMetadata(item))
		if err != nil {
			return failed(err)
		}
		price := item.Price
		if price == "" {
			price = "0"
		}
		entry, err := chain.NewInitializeItem(item.Rarity.MaxSupply(), uri, price, item.Beneficiary)
		if err != nil {
			return failed(err)
		}
		initialize = append(initialize, entry)
	}

	txHash, err := o.chain.CreateCollection(ctx, collection.Name, collection.Symbol, initialize, "")
	if err != nil {
		return failed(err)
	}

	lockedAt, err := o.lockCollection(ctx, collection.ID)
	if err != nil {
		return failed(err)
	}
	collection.Lock = lockedAt

	out := outcome.Success(outcome.KindPublish, key)
	out.ChainID = o.chainID()
	out.TxHash = txHash
	out.Collections = []model.Collection{collection}
	out.Items = items
	return o.emit(ctx, out)
}

func (o *Orchestrator) lockCollection(ctx context.Context, id string) (time.Time, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (time.Time, error) {
		attempt++
		lockedAt, err := o.builder.LockCollection(ctx, id)
		if err != nil {
			o.logger.Debug("lock collection", zap.String("collection", id), zap.Int("attempt", attempt), zap.Error(err))
		}
		return lockedAt, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(o.cfg.LockDelay)),
		backoff.WithMaxTries(uint(o.cfg.LockAttempts)),
	)
}

// SetMinters grants or revokes minting rights, one transaction per entry.
func (o *Orchestrator) SetMinters(ctx context.Context, collection model.Collection, access []model.MinterAccess) outcome.Outcome {
	minters := append([]string(nil), collection.Minters...)
	var txHash string
	for _, entry := range access {
		hash, err := o.chain.SetMinter(ctx, collection.ContractAddress, entry.Address, entry.HasAccess)
		if err != nil {
			out := outcome.Failure(outcome.KindSetMinters, collection.ID, err)
			out.Minters = access
			return o.emit(ctx, out)
		}
		txHash = hash
		minters = updateMinters(minters, entry)
	}

	updated := collection.Clone()
	updated.Minters = minters
	out := outcome.Success(outcome.KindSetMinters, collection.ID)
	out.ChainID = o.chainID()
	out.TxHash = txHash
	out.Minters = access
	out.Collections = []model.Collection{updated}
	return o.emit(ctx, out)
}

func updateMinters(minters []string, entry model.MinterAccess) []string {
	kept := make([]string, 0, len(minters)+1)
	for _, minter := range minters {
		if !strings.EqualFold(minter, entry.Address) {
			kept = append(kept, minter)
		}
	}
	if entry.HasAccess {
		kept = append(kept, entry.Address)
	}
	return kept
}

// MintItems issues one batchCreate per mint. Mints without a token id take
// the one the item got when it was published.
func (o *Orchestrator) MintItems(ctx context.Context, collection model.Collection, mints []model.Mint) outcome.Outcome {
	var txHash string
	for i, mint := range mints {
		if mint.TokenID == "" {
			item, ok := o.state.Item(mint.ItemID)
			if !ok || item.TokenID == "" {
				return o.fail(ctx, outcome.KindMintItems, collection.ID, fmt.Errorf("item %s has no token id: %w", mint.ItemID, model.ErrNotFound))
			}
			mints[i].TokenID = item.TokenID
			mint.TokenID = item.TokenID
		}
		hash, err := o.chain.BatchCreate(ctx, collection.ContractAddress, mint.Address, mint.TokenID, mint.Amount)
		if err != nil {
			out := outcome.Failure(outcome.KindMintItems, collection.ID, err)
			out.Mints = mints
			return o.emit(ctx, out)
		}
		txHash = hash
	}
	out := outcome.Success(outcome.KindMintItems, collection.ID)
	out.ChainID = o.chainID()
	out.TxHash = txHash
	out.Mints = mints
	out.Collections = []model.Collection{collection}
	return o.emit(ctx, out)
}

// SyncTokenIDs asks the server to read token ids back from the chain.
func (o *Orchestrator) SyncTokenIDs(ctx context.Context, collectionID string) outcome.Outcome {
	collection, items, err := o.builder.SyncCollection(ctx, collectionID)
	if err != nil {
		return o.fail(ctx, outcome.KindSyncTokenIDs, collectionID, err)
	}
	out := outcome.Success(outcome.KindSyncTokenIDs, collectionID)
	out.Collections = []model.Collection{collection}
	out.Items = items
	return o.emit(ctx, out)
}

// FinishPublishing syncs token ids for every published collection the
// signing wallet owns whose items are still missing them.
func (o *Orchestrator) FinishPublishing(ctx context.Context) {
	address := o.Address()
	if len(o.state.Items()) == 0 && address != "" {
		o.FetchItems(ctx, address)
	}
	for _, collection := range o.state.Collections() {
		if !collection.IsPublished || !collection.IsOwner(address) {
			continue
		}
		for _, item := range o.state.CollectionItems(collection.ID) {
			if item.TokenID == "" {
				id := collection.ID
				o.runner.Go(outcome.KindSyncTokenIDs, id, func(taskCtx context.Context) {
					o.SyncTokenIDs(taskCtx, id)
				})
				break
			}
		}
	}
}

// retrySync waits and then syncs again, reading the collection from state
// so a deleted or already synced collection is not retried.
func (o *Orchestrator) retrySync(ctx context.Context, collectionID string) {
	if err := o.sleep(ctx, o.cfg.SyncRetryDelay); err != nil {
		return
	}
	collection, ok := o.state.Collection(collectionID)
	if !ok {
		return
	}
	for _, item := range o.state.CollectionItems(collection.ID) {
		if item.TokenID == "" {
			o.SyncTokenIDs(ctx, collection.ID)
			return
		}
	}
}

func (o *Orchestrator) SaveTOS(ctx context.Context, collection model.Collection, email string) outcome.Outcome {
	if err := o.builder.SaveTOS(ctx, collection, email); err != nil {
		return o.fail(ctx, outcome.KindSaveTOS, collection.ID, err)
	}
	return o.emit(ctx, outcome.Success(outcome.KindSaveTOS, collection.ID))
}
