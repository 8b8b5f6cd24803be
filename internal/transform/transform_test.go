package transform

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"builder/internal/model"
)

func sampleItem() model.Item {
	supply := int64(4)
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return model.Item{
		ID:           "item-1",
		Name:         "Hat",
		Description:  "A summer hat",
		Thumbnail:    "thumbnail.png",
		Owner:        "0xabc",
		CollectionID: "col-1",
		TokenID:      "7",
		Price:        "1000",
		Beneficiary:  "0xdef",
		URN:          "urn:beland:mumbai:collections-v2:0x1:7",
		Rarity:       model.RarityEpic,
		TotalSupply:  &supply,
		InCatalyst:   true,
		Type:         model.ItemTypeWearable,
		Data: model.WearableData{
			Category: "hat",
			Representations: []model.Representation{{
				BodyShapes: []string{model.BodyShapeMale},
				MainFile:   "male/hat.glb",
				Contents:   []string{"male/hat.glb"},
			}},
			Tags: []string{"summer"},
		},
		Metrics:               model.Metrics{Triangles: 100, Meshes: 1},
		Contents:              map[string]string{"male/hat.glb": "Qm1", "thumbnail.png": "Qm2"},
		BlockchainContentHash: "bh",
		CurrentContentHash:    "ch",
		CatalystContentHash:   "kh",
		CreatedAt:             created,
		UpdatedAt:             created.Add(time.Hour),
	}
}

func TestItemRoundTrip(t *testing.T) {
	item := sampleItem()
	assert.Equal(t, item, FromRemoteItem(ToRemoteItem(item)))
}

func TestToRemoteItemForcesServerFields(t *testing.T) {
	item := sampleItem()
	item.IsPublished = true
	item.IsApproved = true

	remote := ToRemoteItem(item)
	assert.False(t, remote.IsPublished)
	assert.False(t, remote.IsApproved)
}

func TestItemSurvivesWireEncoding(t *testing.T) {
	item := sampleItem()
	payload, err := json.Marshal(ToRemoteItem(item))
	require.NoError(t, err)

	var remote RemoteItem
	require.NoError(t, json.Unmarshal(payload, &remote))
	assert.Equal(t, item, FromRemoteItem(remote))
}

func TestCollectionDefaults(t *testing.T) {
	remote := ToRemoteCollection(model.Collection{ID: "c", Name: "Hats", IsPublished: true})
	assert.Equal(t, []string{}, remote.Minters)
	assert.Equal(t, []string{}, remote.Managers)
	assert.Nil(t, remote.LockedAt)
	assert.False(t, remote.IsPublished)

	back := FromRemoteCollection(RemoteCollection{ID: "c"})
	assert.Equal(t, []string{}, back.Minters)
	assert.True(t, back.Lock.IsZero())
}

func TestCollectionRoundTrip(t *testing.T) {
	lock := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	collection := model.Collection{
		ID:              "c",
		Name:            "Hats",
		Symbol:          "HATS",
		Owner:           "0xabc",
		Salt:            "0x01",
		ContractAddress: "0xcafe",
		URN:             "urn:c",
		Minters:         []string{"0x1"},
		Managers:        []string{"0x2"},
		ForumLink:       "https://forum/1",
		Lock:            lock,
		CreatedAt:       lock.Add(-time.Hour),
		UpdatedAt:       lock,
	}
	assert.Equal(t, collection, FromRemoteCollection(ToRemoteCollection(collection)))
}

func TestMergeCollectionKeepsLocalFields(t *testing.T) {
	local := model.Collection{ID: "c", Name: "Hats", Salt: "0x01"}
	remote := model.Collection{ID: "c", ContractAddress: "0xcafe"}

	merged := MergeCollection(local, remote)
	assert.Equal(t, "Hats", merged.Name)
	assert.Equal(t, "0x01", merged.Salt)
	assert.Equal(t, "0xcafe", merged.ContractAddress)
}

func TestProjectRoundTrip(t *testing.T) {
	project := model.Project{
		ID:          "p",
		Title:       "Plaza",
		Description: "town square",
		Thumbnail:   "thumb",
		IsPublic:    true,
		SceneID:     "p",
		EthAddress:  "0xabc",
		Layout:      model.Layout{Rows: 2, Cols: 3},
		Scene:       json.RawMessage(`{"entities":{}}`),
	}
	assert.Equal(t, project, FromRemoteProject(ToRemoteProject(project)))
}

func TestAssetPackRoundTrip(t *testing.T) {
	pack := model.AssetPack{
		ID:         "pack",
		Title:      "Trees",
		EthAddress: "0xabc",
		Assets: []model.Asset{{
			ID:          "a",
			AssetPackID: "pack",
			Name:        "Oak",
			Model:       "oak.glb",
			Tags:        []string{"tree"},
			Category:    "nature",
			Contents:    map[string]string{"oak.glb": "Qm"},
		}},
	}
	got := FromRemoteAssetPack(ToRemoteAssetPack(pack))
	assert.Equal(t, pack.ID, got.ID)
	assert.Equal(t, pack.Title, got.Title)
	require.Len(t, got.Assets, 1)
	assert.Equal(t, pack.Assets[0].Contents, got.Assets[0].Contents)
	assert.Equal(t, "pack", got.Assets[0].AssetPackID)
}

func TestParcelAcceptsStringCoordinates(t *testing.T) {
	var parcel RemoteParcel
	require.NoError(t, json.Unmarshal([]byte(`{"id":12,"x":"-4","y":7,"owner":"0xabc"}`), &parcel))

	land := FromRemoteParcel(parcel, model.RoleOwner)
	assert.Equal(t, "-4,7", land.ID)
	assert.Equal(t, "12", land.LandID)
	assert.Equal(t, "Parcel -4,7", land.Name)
	assert.Equal(t, model.LandTypeParcel, land.Type)
	assert.Equal(t, []string{}, land.Operators)
}

func TestEstateListsParcels(t *testing.T) {
	var estate RemoteEstate
	require.NoError(t, json.Unmarshal([]byte(`{"id":"9","owner":"0xabc","parcels":[{"x":1,"y":1},{"x":"1","y":"2"}]}`), &estate))

	land := FromRemoteEstate(estate, model.RoleOwner)
	assert.Equal(t, "9", land.ID)
	assert.Equal(t, "Estate 9", land.Name)
	assert.Equal(t, 2, land.Size)
	assert.Equal(t, []string{"1,1", "1,2"}, land.Coords())
}
