package transform

import (
	"time"

	"builder/internal/model"
)

func ToRemoteProject(project model.Project) RemoteProject {
	return RemoteProject{
		ID:          project.ID,
		Name:        project.Title,
		Description: project.Description,
		Thumbnail:   project.Thumbnail,
		IsPublic:    project.IsPublic,
		Scene:       append([]byte(nil), project.Scene...),
		Owner:       project.EthAddress,
		Rows:        project.Layout.Rows,
		Cols:        project.Layout.Cols,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
}

// FromRemoteProject reads a project. The scene id mirrors the project id the
// way the builder stores one scene per project.
func FromRemoteProject(remote RemoteProject) model.Project {
	return model.Project{
		ID:          remote.ID,
		Title:       remote.Name,
		Description: remote.Description,
		Thumbnail:   remote.Thumbnail,
		IsPublic:    remote.IsPublic,
		SceneID:     remote.ID,
		EthAddress:  remote.Owner,
		Layout:      model.Layout{Rows: remote.Rows, Cols: remote.Cols},
		Scene:       append([]byte(nil), remote.Scene...),
		CreatedAt:   remote.CreatedAt,
		UpdatedAt:   remote.UpdatedAt,
	}
}

func FromRemoteProjects(remotes []RemoteProject) []model.Project {
	projects := make([]model.Project, 0, len(remotes))
	for _, remote := range remotes {
		projects = append(projects, FromRemoteProject(remote))
	}
	return projects
}

func ToRemoteAssetPack(pack model.AssetPack) RemoteAssetPack {
	remote := RemoteAssetPack{
		ID:        pack.ID,
		Name:      pack.Title,
		Thumbnail: pack.Thumbnail,
		Owner:     pack.EthAddress,
		Assets:    make([]RemoteAsset, 0, len(pack.Assets)),
	}
	for _, asset := range pack.Assets {
		remote.Assets = append(remote.Assets, RemoteAsset{
			ID:         asset.ID,
			LegacyID:   optional(asset.LegacyID),
			PackID:     pack.ID,
			Name:       asset.Name,
			Model:      asset.Model,
			Script:     optional(asset.Script),
			Thumbnail:  asset.Thumbnail,
			Tags:       nonNilStrings(append([]string(nil), asset.Tags...)),
			Category:   asset.Category,
			Contents:   copyContents(asset.Contents),
			Metrics:    asset.Metrics,
			Parameters: append([]byte(nil), asset.Parameters...),
			Actions:    append([]byte(nil), asset.Actions...),
		})
	}
	return remote
}

func FromRemoteAssetPack(remote RemoteAssetPack) model.AssetPack {
	pack := model.AssetPack{
		ID:         remote.ID,
		Title:      remote.Name,
		Thumbnail:  remote.Thumbnail,
		EthAddress: remote.Owner,
		Assets:     make([]model.Asset, 0, len(remote.Assets)),
		CreatedAt:  derefTime(remote.CreatedAt),
		UpdatedAt:  derefTime(remote.UpdatedAt),
	}
	for _, asset := range remote.Assets {
		pack.Assets = append(pack.Assets, model.Asset{
			ID:          asset.ID,
			LegacyID:    deref(asset.LegacyID),
			AssetPackID: remote.ID,
			Name:        asset.Name,
			Model:       asset.Model,
			Script:      deref(asset.Script),
			Thumbnail:   asset.Thumbnail,
			Tags:        nonNilStrings(append([]string(nil), asset.Tags...)),
			Category:    asset.Category,
			Contents:    copyContents(asset.Contents),
			Metrics:     asset.Metrics,
			Parameters:  append([]byte(nil), asset.Parameters...),
			Actions:     append([]byte(nil), asset.Actions...),
		})
	}
	return pack
}

func FromRemoteAssetPacks(remotes []RemoteAssetPack) []model.AssetPack {
	packs := make([]model.AssetPack, 0, len(remotes))
	for _, remote := range remotes {
		packs = append(packs, FromRemoteAssetPack(remote))
	}
	return packs
}

func derefTime(value *time.Time) time.Time {
	if value == nil {
		return time.Time{}
	}
	return *value
}
