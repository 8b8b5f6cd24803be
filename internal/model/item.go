package model

import "time"

type ItemType string

const (
	ItemTypeWearable ItemType = "wearable"
)

type Rarity string

const (
	RarityUnique    Rarity = "unique"
	RarityMythic    Rarity = "mythic"
	RarityLegendary Rarity = "legendary"
	RarityEpic      Rarity = "epic"
	RarityRare      Rarity = "rare"
	RarityUncommon  Rarity = "uncommon"
	RarityCommon    Rarity = "common"
)

var rarityMaxSupply = map[Rarity]int64{
	RarityUnique:    1,
	RarityMythic:    10,
	RarityLegendary: 100,
	RarityEpic:      1000,
	RarityRare:      5000,
	RarityUncommon:  10000,
	RarityCommon:    100000,
}

// MaxSupply returns the mint cap for a rarity. Unknown or empty rarities are
// treated as unique.
func (r Rarity) MaxSupply() int64 {
	if supply, ok := rarityMaxSupply[r]; ok {
		return supply
	}
	return rarityMaxSupply[RarityUnique]
}

// RarityInfo is a row of the rarities table served by the builder API.
type RarityInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MaxSupply int64  `json:"maxSupply"`
	Price     string `json:"price"`
}

const (
	BodyShapeMale   = "urn:beland:off-chain:base-avatars:BaseMale"
	BodyShapeFemale = "urn:beland:off-chain:base-avatars:BaseFemale"

	BodyShapeTypeMale   = "male"
	BodyShapeTypeFemale = "female"
	BodyShapeTypeBoth   = "both"
)

// BodyShapeType maps a body shape urn to the short name used in metadata
// attributes and content paths.
func BodyShapeType(urn string) string {
	switch urn {
	case BodyShapeMale:
		return BodyShapeTypeMale
	case BodyShapeFemale:
		return BodyShapeTypeFemale
	default:
		return BodyShapeTypeBoth
	}
}

const (
	ThumbnailPath = "thumbnail.png"
	ImagePath     = "image.png"

	// MaxFileSize caps the zipped size of an item's content bundle.
	MaxFileSize = 2 * 1024 * 1024
)

type Representation struct {
	BodyShapes       []string `json:"bodyShapes"`
	MainFile         string   `json:"mainFile"`
	Contents         []string `json:"contents"`
	OverrideHides    []string `json:"overrideHides"`
	OverrideReplaces []string `json:"overrideReplaces"`
}

type WearableData struct {
	Category        string           `json:"category"`
	Representations []Representation `json:"representations"`
	Replaces        []string         `json:"replaces"`
	Hides           []string         `json:"hides"`
	Tags            []string         `json:"tags"`
}

type Metrics struct {
	Triangles int `json:"triangles"`
	Materials int `json:"materials"`
	Meshes    int `json:"meshes"`
	Bodies    int `json:"bodies"`
	Entities  int `json:"entities"`
	Textures  int `json:"textures"`
}

type Item struct {
	ID                    string            `json:"id"`
	Name                  string            `json:"name"`
	Description           string            `json:"description"`
	Thumbnail             string            `json:"thumbnail"`
	Owner                 string            `json:"owner"`
	CollectionID          string            `json:"collectionId,omitempty"`
	TokenID               string            `json:"tokenId,omitempty"`
	Price                 string            `json:"price,omitempty"`
	Beneficiary           string            `json:"beneficiary,omitempty"`
	URN                   string            `json:"urn,omitempty"`
	Rarity                Rarity            `json:"rarity,omitempty"`
	TotalSupply           *int64            `json:"totalSupply,omitempty"`
	IsPublished           bool              `json:"isPublished"`
	IsApproved            bool              `json:"isApproved"`
	InCatalyst            bool              `json:"inCatalyst"`
	Type                  ItemType          `json:"type"`
	Data                  WearableData      `json:"data"`
	Metrics               Metrics           `json:"metrics"`
	Contents              map[string]string `json:"contents"`
	BlockchainContentHash string            `json:"blockchainContentHash,omitempty"`
	CurrentContentHash    string            `json:"currentContentHash,omitempty"`
	CatalystContentHash   string            `json:"catalystContentHash,omitempty"`
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}

// Clone returns a copy whose contents map can be mutated independently.
func (i Item) Clone() Item {
	contents := make(map[string]string, len(i.Contents))
	for path, hash := range i.Contents {
		contents[path] = hash
	}
	i.Contents = contents
	if i.TotalSupply != nil {
		supply := *i.TotalSupply
		i.TotalSupply = &supply
	}
	return i
}

// ItemCuration is the curation record the builder API keeps per item.
type ItemCuration struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"itemId"`
	ContentHash string    `json:"contentHash"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
