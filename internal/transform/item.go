package transform

import "builder/internal/model"

// ToRemoteItem prepares an item for saving. Publication and approval are
// decided by the server and always go out as false.
func ToRemoteItem(item model.Item) RemoteItem {
	remote := RemoteItem{
		ID:                  item.ID,
		Name:                item.Name,
		Description:         item.Description,
		Thumbnail:           item.Thumbnail,
		Owner:               item.Owner,
		CollectionID:        optional(item.CollectionID),
		BlockchainItemID:    optional(item.TokenID),
		Price:               optional(item.Price),
		URN:                 optional(item.URN),
		Beneficiary:         optional(item.Beneficiary),
		IsPublished:         false,
		IsApproved:          false,
		InCatalyst:          item.InCatalyst,
		Type:                item.Type,
		Data:                item.Data,
		Metrics:             item.Metrics,
		Contents:            copyContents(item.Contents),
		ContentHash:         optional(item.BlockchainContentHash),
		LocalContentHash:    optional(item.CurrentContentHash),
		CatalystContentHash: optional(item.CatalystContentHash),
		CreatedAt:           item.CreatedAt,
		UpdatedAt:           item.UpdatedAt,
	}
	if item.Rarity != "" {
		rarity := item.Rarity
		remote.Rarity = &rarity
	}
	if item.TotalSupply != nil {
		supply := *item.TotalSupply
		remote.TotalSupply = &supply
	}
	return remote
}

func FromRemoteItem(remote RemoteItem) model.Item {
	item := model.Item{
		ID:                    remote.ID,
		Name:                  remote.Name,
		Description:           remote.Description,
		Thumbnail:             remote.Thumbnail,
		Owner:                 remote.Owner,
		CollectionID:          deref(remote.CollectionID),
		TokenID:               deref(remote.BlockchainItemID),
		Price:                 deref(remote.Price),
		URN:                   deref(remote.URN),
		Beneficiary:           deref(remote.Beneficiary),
		IsPublished:           remote.IsPublished,
		IsApproved:            remote.IsApproved,
		InCatalyst:            remote.InCatalyst,
		Type:                  remote.Type,
		Data:                  remote.Data,
		Metrics:               remote.Metrics,
		Contents:              copyContents(remote.Contents),
		BlockchainContentHash: deref(remote.ContentHash),
		CurrentContentHash:    deref(remote.LocalContentHash),
		CatalystContentHash:   deref(remote.CatalystContentHash),
		CreatedAt:             remote.CreatedAt,
		UpdatedAt:             remote.UpdatedAt,
	}
	if remote.Rarity != nil {
		item.Rarity = *remote.Rarity
	}
	if remote.TotalSupply != nil {
		supply := *remote.TotalSupply
		item.TotalSupply = &supply
	}
	return item
}

func FromRemoteItems(remotes []RemoteItem) []model.Item {
	items := make([]model.Item, 0, len(remotes))
	for _, remote := range remotes {
		items = append(items, FromRemoteItem(remote))
	}
	return items
}

func FromRemoteItemCuration(remote RemoteItemCuration) model.ItemCuration {
	return model.ItemCuration{
		ID:          remote.ID,
		ItemID:      remote.ItemID,
		ContentHash: remote.ContentHash,
		Status:      remote.Status,
		CreatedAt:   remote.CreatedAt,
		UpdatedAt:   remote.UpdatedAt,
	}
}

func copyContents(contents map[string]string) map[string]string {
	out := make(map[string]string, len(contents))
	for path, hash := range contents {
		out[path] = hash
	}
	return out
}
