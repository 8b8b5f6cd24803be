package search

import (
	"strings"

	"builder/internal/model"
)

func CollectionRecordFrom(collection model.Collection) CollectionRecord {
	return CollectionRecord{
		ID:          collection.ID,
		Name:        collection.Name,
		Symbol:      collection.Symbol,
		Owner:       strings.ToLower(collection.Owner),
		URN:         collection.URN,
		IsPublished: collection.IsPublished,
	}
}

func ItemRecordFrom(item model.Item) ItemRecord {
	tags := item.Data.Tags
	if tags == nil {
		tags = []string{}
	}
	return ItemRecord{
		ID:           item.ID,
		Name:         item.Name,
		Description:  item.Description,
		CollectionID: item.CollectionID,
		Owner:        strings.ToLower(item.Owner),
		Rarity:       string(item.Rarity),
		Category:     item.Data.Category,
		Tags:         append([]string(nil), tags...),
	}
}
