package saga

import (
	"context"
	"fmt"
	"math"
	"sort"

	"builder/internal/model"
	"builder/internal/outcome"
)

// BulkKey is the runner key shared by every bulk item save; a new bulk save
// replaces the running one.
const BulkKey = "items"

// BuiltFile is an item produced from an uploaded file, with the content it
// still has to upload.
type BuiltFile struct {
	Item       model.Item        `json:"item"`
	NewContent map[string][]byte `json:"-"`
	FileName   string            `json:"fileName"`
}

func (o *Orchestrator) FetchItems(ctx context.Context, owner string) outcome.Outcome {
	items, err := o.builder.FetchItems(ctx, owner)
	if err != nil {
		return o.fail(ctx, outcome.KindFetchItems, owner, err)
	}
	out := outcome.Success(outcome.KindFetchItems, owner)
	out.Address = owner
	out.Items = items
	return o.emit(ctx, out)
}

func (o *Orchestrator) FetchItem(ctx context.Context, id string) outcome.Outcome {
	item, err := o.builder.FetchItem(ctx, id)
	if err != nil {
		return o.fail(ctx, outcome.KindFetchItem, id, err)
	}
	out := outcome.Success(outcome.KindFetchItem, id)
	out.Items = []model.Item{item}
	return o.emit(ctx, out)
}

func (o *Orchestrator) FetchCollectionItems(ctx context.Context, collectionID string) outcome.Outcome {
	items, err := o.builder.FetchCollectionItems(ctx, collectionID)
	if err != nil {
		return o.fail(ctx, outcome.KindFetchCollectionItems, collectionID, err)
	}
	out := outcome.Success(outcome.KindFetchCollectionItems, collectionID)
	out.Items = items
	return o.emit(ctx, out)
}

// SaveItem validates an item, uploads its new content and stores it.
func (o *Orchestrator) SaveItem(ctx context.Context, item model.Item, contents map[string][]byte) outcome.Outcome {
	item = item.Clone()
	item.UpdatedAt = o.now().UTC()

	saved, err := o.saveItem(ctx, item, contents)
	if err != nil {
		out := outcome.Failure(outcome.KindSaveItem, item.ID, err)
		out.Items = []model.Item{item}
		return o.emit(ctx, out)
	}
	out := outcome.Success(outcome.KindSaveItem, saved.ID)
	out.Items = []model.Item{saved}
	return o.emit(ctx, out)
}

func (o *Orchestrator) saveItem(ctx context.Context, item model.Item, contents map[string][]byte) (model.Item, error) {
	if !model.IsValidText(item.Name) {
		return model.Item{}, model.NewValidationError("name", "Invalid item name")
	}
	if !model.IsValidText(item.Description) {
		return model.Item{}, model.NewValidationError("description", "Invalid item description")
	}
	if item.CollectionID != "" {
		if collection, ok := o.state.Collection(item.CollectionID); ok && collection.IsLocked(o.now()) {
			return model.Item{}, model.ErrCollectionLocked
		}
	}
	if err := checkBundleSize(contents); err != nil {
		return model.Item{}, err
	}
	return o.upsertItem(ctx, item, contents)
}

// upsertItem uploads contents in path order, records their hashes on the
// item and saves it.
func (o *Orchestrator) upsertItem(ctx context.Context, item model.Item, contents map[string][]byte) (model.Item, error) {
	paths := make([]string, 0, len(contents))
	for path := range contents {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		hash, err := o.hub.UploadMedia(ctx, contents[path], path, nil)
		if err != nil {
			return model.Item{}, fmt.Errorf("upload %s: %w", path, err)
		}
		item.Contents[path] = hash
	}
	if err := o.builder.SaveItem(ctx, item); err != nil {
		return model.Item{}, err
	}
	return item, nil
}

// SaveMultipleItems saves files one after another, reporting progress after
// each. On failure or cancellation the outcome carries the items saved so
// far, in order.
func (o *Orchestrator) SaveMultipleItems(ctx context.Context, files []BuiltFile) outcome.Outcome {
	saved := make([]model.Item, 0, len(files))
	names := make([]string, 0, len(files))
	settle := func(status outcome.Status, err error) outcome.Outcome {
		out := outcome.Outcome{Kind: outcome.KindSaveMultipleItems, Status: status, Key: BulkKey}
		if err != nil {
			out.Error = err.Error()
		}
		out.Items = saved
		out.FileNames = names
		return o.emit(ctx, out)
	}

	for i, file := range files {
		if cancelled(ctx) {
			return settle(outcome.StatusCancelled, nil)
		}
		item := file.Item.Clone()
		item.UpdatedAt = o.now().UTC()
		result, err := o.upsertItem(ctx, item, file.NewContent)
		if err != nil {
			if cancelled(ctx) {
				return settle(outcome.StatusCancelled, nil)
			}
			return settle(outcome.StatusFailure, err)
		}
		saved = append(saved, result)
		names = append(names, file.FileName)

		progress := outcome.Outcome{
			Kind:     outcome.KindSaveMultipleProgress,
			Status:   outcome.StatusProgress,
			Key:      BulkKey,
			Progress: int(math.Round(float64(i+1) / float64(len(files)) * 100)),
		}
		o.emit(ctx, progress)
	}
	return settle(outcome.StatusSuccess, nil)
}

// SetPriceAndBeneficiary edits the sale terms of a published item on chain.
func (o *Orchestrator) SetPriceAndBeneficiary(ctx context.Context, itemID, price, beneficiary string) outcome.Outcome {
	item, ok := o.state.Item(itemID)
	if !ok {
		return o.fail(ctx, outcome.KindSetPriceAndBeneficiary, itemID, fmt.Errorf("item %s: %w", itemID, model.ErrNotFound))
	}
	collection, ok := o.state.Collection(item.CollectionID)
	if !ok {
		return o.fail(ctx, outcome.KindSetPriceAndBeneficiary, itemID, fmt.Errorf("collection %s: %w", item.CollectionID, model.ErrNotFound))
	}
	if !item.IsPublished {
		return o.fail(ctx, outcome.KindSetPriceAndBeneficiary, itemID, &model.StateConflictError{Message: "The item is not published"})
	}

	txHash, err := o.chain.EditPriceAndBeneficiary(ctx, collection.ContractAddress, item.TokenID, price, beneficiary)
	if err != nil {
		return o.fail(ctx, outcome.KindSetPriceAndBeneficiary, itemID, err)
	}
	item.Price = price
	item.Beneficiary = beneficiary
	item.UpdatedAt = o.now().UTC()

	out := outcome.Success(outcome.KindSetPriceAndBeneficiary, itemID)
	out.ChainID = o.chainID()
	out.TxHash = txHash
	out.Items = []model.Item{item}
	return o.emit(ctx, out)
}

func (o *Orchestrator) DeleteItem(ctx context.Context, item model.Item) outcome.Outcome {
	if err := o.builder.DeleteItem(ctx, item.ID); err != nil {
		return o.fail(ctx, outcome.KindDeleteItem, item.ID, err)
	}
	out := outcome.Success(outcome.KindDeleteItem, item.ID)
	out.Removed = []string{item.ID}
	return o.emit(ctx, out)
}

// SetItemCollection moves an item into a collection, or out of any when
// collectionID is empty, and saves it.
func (o *Orchestrator) SetItemCollection(ctx context.Context, item model.Item, collectionID string) outcome.Outcome {
	moved := item.Clone()
	moved.CollectionID = collectionID
	saved := o.SaveItem(ctx, moved, nil)

	out := saved
	out.ID = ""
	out.Kind = outcome.KindSetItemCollection
	return o.emit(ctx, out)
}

func (o *Orchestrator) FetchRarities(ctx context.Context) outcome.Outcome {
	rarities, err := o.builder.FetchRarities(ctx)
	if err != nil {
		return o.fail(ctx, outcome.KindFetchRarities, "rarities", err)
	}
	out := outcome.Success(outcome.KindFetchRarities, "rarities")
	out.Rarities = rarities
	return o.emit(ctx, out)
}

func (o *Orchestrator) PushItemCuration(ctx context.Context, itemID string) outcome.Outcome {
	curation, err := o.builder.PushItemCuration(ctx, itemID)
	if err != nil {
		return o.fail(ctx, outcome.KindPushItemCuration, itemID, err)
	}
	out := outcome.Success(outcome.KindPushItemCuration, itemID)
	out.Curations = []model.ItemCuration{curation}
	return o.emit(ctx, out)
}

// DownloadItem zips an item's content. The archive is returned to the caller;
// the outcome only names the file.
func (o *Orchestrator) DownloadItem(ctx context.Context, itemID string) ([]byte, outcome.Outcome) {
	item, ok := o.state.Item(itemID)
	if !ok {
		return nil, o.fail(ctx, outcome.KindDownloadItem, itemID, fmt.Errorf("item %s: %w", itemID, model.ErrNotFound))
	}
	blobs, err := o.contents.FetchAll(ctx, item.Contents)
	if err != nil {
		return nil, o.fail(ctx, outcome.KindDownloadItem, itemID, err)
	}
	packed, err := Zip(downloadFiles(item.Contents, blobs))
	if err != nil {
		return nil, o.fail(ctx, outcome.KindDownloadItem, itemID, err)
	}
	out := outcome.Success(outcome.KindDownloadItem, itemID)
	out.FileNames = []string{DownloadName(item)}
	return packed, o.emit(ctx, out)
}
