// Package transform maps builder API wire payloads to domain entities and
// back. Every function here is pure.
package transform

import (
	"encoding/json"
	"time"

	"builder/internal/model"
)

type RemoteItem struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	Description         string             `json:"description"`
	Thumbnail           string             `json:"thumbnail"`
	Owner               string             `json:"owner"`
	CollectionID        *string            `json:"collection_id"`
	BlockchainItemID    *string            `json:"blockchain_item_id"`
	Price               *string            `json:"price"`
	URN                 *string            `json:"urn"`
	Beneficiary         *string            `json:"beneficiary"`
	Rarity              *model.Rarity      `json:"rarity"`
	TotalSupply         *int64             `json:"total_supply"`
	IsPublished         bool               `json:"is_published"`
	IsApproved          bool               `json:"is_approved"`
	InCatalyst          bool               `json:"in_catalyst"`
	Type                model.ItemType     `json:"type"`
	Data                model.WearableData `json:"data"`
	Metrics             model.Metrics      `json:"metrics"`
	Contents            map[string]string  `json:"contents"`
	ContentHash         *string            `json:"content_hash"`
	LocalContentHash    *string            `json:"local_content_hash"`
	CatalystContentHash *string            `json:"catalyst_content_hash"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

type RemoteCollection struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Symbol          string     `json:"symbol"`
	Owner           string     `json:"owner"`
	Salt            *string    `json:"salt"`
	ContractAddress *string    `json:"contract_address"`
	URN             string     `json:"urn"`
	IsPublished     bool       `json:"is_published"`
	IsApproved      bool       `json:"is_approved"`
	Minters         []string   `json:"minters"`
	Managers        []string   `json:"managers"`
	ForumLink       *string    `json:"forum_link"`
	LockedAt        *time.Time `json:"locked_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type RemoteProject struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Thumbnail   string          `json:"thumbnail,omitempty"`
	IsPublic    bool            `json:"is_public"`
	Scene       json.RawMessage `json:"scene,omitempty"`
	Owner       string          `json:"owner"`
	Rows        int             `json:"rows"`
	Cols        int             `json:"cols"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type RemoteAssetPack struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Thumbnail string        `json:"thumbnail,omitempty"`
	Owner     string        `json:"owner"`
	Assets    []RemoteAsset `json:"assets"`
	CreatedAt *time.Time    `json:"created_at,omitempty"`
	UpdatedAt *time.Time    `json:"updated_at,omitempty"`
}

type RemoteAsset struct {
	ID         string            `json:"id"`
	LegacyID   *string           `json:"legacy_id"`
	PackID     string            `json:"pack_id"`
	Name       string            `json:"name"`
	Model      string            `json:"model"`
	Script     *string           `json:"script"`
	Thumbnail  string            `json:"thumbnail"`
	Tags       []string          `json:"tags"`
	Category   string            `json:"category"`
	Contents   map[string]string `json:"contents"`
	Metrics    model.Metrics     `json:"metrics"`
	Parameters json.RawMessage   `json:"parameters"`
	Actions    json.RawMessage   `json:"actions"`
}

type RemoteItemCuration struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"item_id"`
	ContentHash string    `json:"content_hash"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
