package transform

import (
	"time"

	"builder/internal/model"
)

func ToRemoteCollection(collection model.Collection) RemoteCollection {
	remote := RemoteCollection{
		ID:              collection.ID,
		Name:            collection.Name,
		Symbol:          collection.Symbol,
		Owner:           collection.Owner,
		Salt:            optional(collection.Salt),
		ContractAddress: optional(collection.ContractAddress),
		URN:             collection.URN,
		IsPublished:     false,
		IsApproved:      false,
		Minters:         nonNilStrings(append([]string(nil), collection.Minters...)),
		Managers:        nonNilStrings(append([]string(nil), collection.Managers...)),
		ForumLink:       optional(collection.ForumLink),
		CreatedAt:       collection.CreatedAt,
		UpdatedAt:       collection.UpdatedAt,
	}
	if !collection.Lock.IsZero() {
		lock := collection.Lock
		remote.LockedAt = &lock
	}
	return remote
}

func FromRemoteCollection(remote RemoteCollection) model.Collection {
	collection := model.Collection{
		ID:              remote.ID,
		Name:            remote.Name,
		Symbol:          remote.Symbol,
		Owner:           remote.Owner,
		Salt:            deref(remote.Salt),
		ContractAddress: deref(remote.ContractAddress),
		URN:             remote.URN,
		IsPublished:     remote.IsPublished,
		IsApproved:      remote.IsApproved,
		Minters:         nonNilStrings(append([]string(nil), remote.Minters...)),
		Managers:        nonNilStrings(append([]string(nil), remote.Managers...)),
		ForumLink:       deref(remote.ForumLink),
		CreatedAt:       remote.CreatedAt,
		UpdatedAt:       remote.UpdatedAt,
	}
	if remote.LockedAt != nil {
		collection.Lock = *remote.LockedAt
	}
	return collection
}

func FromRemoteCollections(remotes []RemoteCollection) []model.Collection {
	collections := make([]model.Collection, 0, len(remotes))
	for _, remote := range remotes {
		collections = append(collections, FromRemoteCollection(remote))
	}
	return collections
}

// MergeCollection overlays the fields a save returns from the server onto the
// collection that was sent.
func MergeCollection(local, remote model.Collection) model.Collection {
	merged := remote.Clone()
	if merged.Name == "" {
		merged.Name = local.Name
	}
	if merged.Symbol == "" {
		merged.Symbol = local.Symbol
	}
	if merged.Owner == "" {
		merged.Owner = local.Owner
	}
	if merged.Salt == "" {
		merged.Salt = local.Salt
	}
	if merged.ContractAddress == "" {
		merged.ContractAddress = local.ContractAddress
	}
	if merged.URN == "" {
		merged.URN = local.URN
	}
	if merged.ForumLink == "" {
		merged.ForumLink = local.ForumLink
	}
	if merged.Lock.IsZero() {
		merged.Lock = local.Lock
	}
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = local.CreatedAt
	}
	return merged
}

// ParseLockedAt reads the lock timestamp returned by the lock endpoint.
func ParseLockedAt(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}
