package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// InitializeItem is one tuple of the factory's create call.
type InitializeItem struct {
	MaxSupply   *big.Int
	TokenURI    string
	Price       *big.Int
	Beneficiary common.Address
}

// NewInitializeItem validates the string inputs of an item tuple.
func NewInitializeItem(maxSupply int64, tokenURI, price, beneficiary string) (InitializeItem, error) {
	amount, err := parseAmount(price)
	if err != nil {
		return InitializeItem{}, err
	}
	to, err := beneficiaryAddress(beneficiary)
	if err != nil {
		return InitializeItem{}, err
	}
	return InitializeItem{
		MaxSupply:   big.NewInt(maxSupply),
		TokenURI:    tokenURI,
		Price:       amount,
		Beneficiary: to,
	}, nil
}

// OnChainItem is the item record kept by a collection contract.
type OnChainItem struct {
	MaxSupply   *big.Int
	TotalSupply *big.Int
	TokenURI    string
	Price       *big.Int
	Beneficiary common.Address
}

// CreateCollection deploys a collection with all its items in one
// transaction on the factory.
func (c *Client) CreateCollection(ctx context.Context, name, symbol string, items []InitializeItem, baseURI string) (string, error) {
	return c.transact(ctx, "factory", c.addresses.Factory, factoryABI, "create", name, symbol, items, baseURI)
}

func (c *Client) SetMinter(ctx context.Context, collection, minter string, allowed bool) (string, error) {
	contract, err := parseAddress(collection)
	if err != nil {
		return "", &ContractError{Contract: "collection", Method: "setMinter", Err: err}
	}
	account, err := parseAddress(minter)
	if err != nil {
		return "", &ContractError{Contract: "collection", Method: "setMinter", Err: err}
	}
	return c.transact(ctx, "collection", contract, collectionABI, "setMinter", account, allowed)
}

// BatchCreate mints amount copies of an item to a recipient.
func (c *Client) BatchCreate(ctx context.Context, collection, to, tokenID string, amount int64) (string, error) {
	contract, err := parseAddress(collection)
	if err != nil {
		return "", &ContractError{Contract: "collection", Method: "batchCreate", Err: err}
	}
	recipient, err := parseAddress(to)
	if err != nil {
		return "", &ContractError{Contract: "collection", Method: "batchCreate", Err: err}
	}
	id, err := parseAmount(tokenID)
	if err != nil {
		return "", &ContractError{Contract: "collection", Method: "batchCreate", Err: err}
	}
	return c.transact(ctx, "collection", contract, collectionABI, "batchCreate", recipient, id, big.NewInt(amount))
}

func (c *Client) Item(ctx context.Context, collection, tokenID string) (OnChainItem, error) {
	contract, err := parseAddress(collection)
	if err != nil {
		return OnChainItem{}, &ContractError{Contract: "collection", Method: "items", Err: err}
	}
	id, err := parseAmount(tokenID)
	if err != nil {
		return OnChainItem{}, &ContractError{Contract: "collection", Method: "items", Err: err}
	}
	out, err := c.call(ctx, "collection", contract, collectionABI, "items", id)
	if err != nil {
		return OnChainItem{}, err
	}
	item, ok := abi.ConvertType(out[0], new(OnChainItem)).(*OnChainItem)
	if !ok {
		return OnChainItem{}, &ContractError{Contract: "collection", Method: "items", Err: fmt.Errorf("unexpected result %T", out[0])}
	}
	return *item, nil
}

// EditPriceAndBeneficiary reads the current item record and rewrites it
// with a new price and beneficiary.
func (c *Client) EditPriceAndBeneficiary(ctx context.Context, collection, tokenID, price, beneficiary string) (string, error) {
	current, err := c.Item(ctx, collection, tokenID)
	if err != nil {
		return "", err
	}
	amount, err := parseAmount(price)
	if err != nil {
		return "", &ContractError{Contract: "collection", Method: "editItems", Err: err}
	}
	to, err := beneficiaryAddress(beneficiary)
	if err != nil {
		return "", &ContractError{Contract: "collection", Method: "editItems", Err: err}
	}
	current.Price = amount
	current.Beneficiary = to

	id, _ := parseAmount(tokenID)
	contract := common.HexToAddress(collection)
	return c.transact(ctx, "collection", contract, collectionABI, "editItems", []*big.Int{id}, []OnChainItem{current})
}
