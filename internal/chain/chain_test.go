package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"builder/internal/model"
)

func TestFactoryCreatePacksItemTuples(t *testing.T) {
	item, err := NewInitializeItem(model.RarityEpic.MaxSupply(), "ipfs://Qm1", "", "0x")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), item.MaxSupply.Int64())
	assert.Equal(t, 0, item.Price.Sign())
	assert.Equal(t, common.Address{}, item.Beneficiary)

	packed, err := factoryABI.Pack("create", "Hats", "HATS", []InitializeItem{item}, "")
	require.NoError(t, err)
	assert.Equal(t, factoryABI.Methods["create"].ID, packed[:4])
}

func TestEditItemsPacksOnChainItems(t *testing.T) {
	record := OnChainItem{
		MaxSupply:   big.NewInt(10),
		TotalSupply: big.NewInt(2),
		TokenURI:    "ipfs://Qm1",
		Price:       big.NewInt(5),
		Beneficiary: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
	}
	_, err := collectionABI.Pack("editItems", []*big.Int{big.NewInt(1)}, []OnChainItem{record})
	require.NoError(t, err)
}

func TestEstateCallsPackLandIDs(t *testing.T) {
	ids := model.CoordsToLandIDs([]model.Coord{{X: 1, Y: 2}, {X: -1, Y: 0}})
	_, err := estateABI.Pack("createBundle", ids, `0,"Home","",`)
	require.NoError(t, err)
	_, err = estateABI.Pack("removeItems", big.NewInt(7), ids)
	require.NoError(t, err)
}

func TestNewInitializeItemRejectsBadInput(t *testing.T) {
	_, err := NewInitializeItem(1, "uri", "-3", "")
	assert.Error(t, err)
	_, err = NewInitializeItem(1, "uri", "10", "not-an-address")
	assert.Error(t, err)
}

func TestParseAddresses(t *testing.T) {
	addresses, err := ParseAddresses("0x00000000000000000000000000000000000000f1", "", "", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf1"), addresses.Factory)
	assert.Equal(t, common.Address{}, addresses.Estate)

	_, err = ParseAddresses("nope", "", "", "", "", "")
	assert.Error(t, err)
}

func newTestClient(t *testing.T, addresses Addresses) *Client {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	client, err := NewClient(nil, key, big.NewInt(80001), addresses, nil)
	require.NoError(t, err)
	return client
}

func TestTransactRequiresConfiguredContract(t *testing.T) {
	client := newTestClient(t, Addresses{})
	_, err := client.CreateScene(context.Background(), client.From(), "ipfs://Qm")

	var contractErr *ContractError
	require.ErrorAs(t, err, &contractErr)
	assert.Equal(t, "scene", contractErr.Contract)
	assert.Equal(t, "create", contractErr.Method)
	assert.Equal(t, int64(80001), client.ChainID())
}

func TestTransferLandValidatesRecipient(t *testing.T) {
	client := newTestClient(t, Addresses{})
	_, err := client.TransferLand(context.Background(), model.Land{Type: model.LandTypeParcel}, "bad")

	var contractErr *ContractError
	require.ErrorAs(t, err, &contractErr)
	assert.Equal(t, "transferFrom", contractErr.Method)
}

func TestParcelTokenIDFallsBackToCoordinates(t *testing.T) {
	assert.Equal(t, 0, big.NewInt(42).Cmp(parcelTokenID(model.Land{LandID: "42"})))
	encoded := model.EncodeLandID(model.Coord{X: 3, Y: 4})
	assert.Equal(t, 0, encoded.Cmp(parcelTokenID(model.Land{X: 3, Y: 4})))
}

func TestContractErrorUnwraps(t *testing.T) {
	err := &ContractError{Contract: "factory", Method: "create", TxHash: "0x1", Err: ErrReverted}
	assert.True(t, errors.Is(err, ErrReverted))
	assert.Equal(t, "factory.create (0x1): transaction reverted", err.Error())
}
