package model

import (
	"strings"
	"time"
)

// LockWindow is how long a collection stays frozen after the server locks it
// for publishing.
const LockWindow = 24 * time.Hour

// UnsyncedCollectionErrorPrefix tags publish failures caused by the browser
// and the server disagreeing on a collection's items.
const UnsyncedCollectionErrorPrefix = "UnsyncedCollection:"

type Collection struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Symbol          string    `json:"symbol"`
	Owner           string    `json:"owner"`
	Salt            string    `json:"salt,omitempty"`
	ContractAddress string    `json:"contractAddress,omitempty"`
	URN             string    `json:"urn"`
	IsPublished     bool      `json:"isPublished"`
	IsApproved      bool      `json:"isApproved"`
	Minters         []string  `json:"minters"`
	Managers        []string  `json:"managers"`
	ForumLink       string    `json:"forumLink,omitempty"`
	Lock            time.Time `json:"lock,omitzero"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// IsLocked reports whether the collection is inside its lock window at now.
func (c Collection) IsLocked(now time.Time) bool {
	if c.Lock.IsZero() {
		return false
	}
	return now.Before(c.Lock.Add(LockWindow))
}

func (c Collection) IsOwner(address string) bool {
	return address != "" && strings.EqualFold(c.Owner, address)
}

func (c Collection) IsMinter(address string) bool {
	return containsAddress(c.Minters, address)
}

func (c Collection) IsManager(address string) bool {
	return containsAddress(c.Managers, address)
}

// Clone returns a copy that shares no slices with c.
func (c Collection) Clone() Collection {
	c.Minters = append([]string(nil), c.Minters...)
	c.Managers = append([]string(nil), c.Managers...)
	return c
}

func containsAddress(list []string, address string) bool {
	if address == "" {
		return false
	}
	for _, candidate := range list {
		if strings.EqualFold(candidate, address) {
			return true
		}
	}
	return false
}

// MinterAccess grants or revokes minting rights for one address.
type MinterAccess struct {
	Address   string `json:"address"`
	HasAccess bool   `json:"hasAccess"`
}

// Mint requests Amount copies of a published item for Address.
type Mint struct {
	Address string `json:"address"`
	ItemID  string `json:"itemId"`
	TokenID string `json:"tokenId"`
	Amount  int64  `json:"amount"`
}
