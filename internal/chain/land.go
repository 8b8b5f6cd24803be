package chain

import (
	"context"
	"math/big"

	"builder/internal/model"
)

// CreateEstate bundles parcels into a new estate.
func (c *Client) CreateEstate(ctx context.Context, coords []model.Coord, metadata string) (string, error) {
	return c.transact(ctx, "estate", c.addresses.Estate, estateABI, "createBundle", model.CoordsToLandIDs(coords), metadata)
}

func (c *Client) AddEstateParcels(ctx context.Context, estateID string, coords []model.Coord) (string, error) {
	id, err := parseAmount(estateID)
	if err != nil {
		return "", &ContractError{Contract: "estate", Method: "addItems", Err: err}
	}
	return c.transact(ctx, "estate", c.addresses.Estate, estateABI, "addItems", id, model.CoordsToLandIDs(coords))
}

func (c *Client) RemoveEstateParcels(ctx context.Context, estateID string, coords []model.Coord) (string, error) {
	id, err := parseAmount(estateID)
	if err != nil {
		return "", &ContractError{Contract: "estate", Method: "removeItems", Err: err}
	}
	return c.transact(ctx, "estate", c.addresses.Estate, estateABI, "removeItems", id, model.CoordsToLandIDs(coords))
}

// DissolveEstate releases every parcel of an estate.
func (c *Client) DissolveEstate(ctx context.Context, estateID string) (string, error) {
	id, err := parseAmount(estateID)
	if err != nil {
		return "", &ContractError{Contract: "estate", Method: "removeAllItems", Err: err}
	}
	return c.transact(ctx, "estate", c.addresses.Estate, estateABI, "removeAllItems", id)
}

// UpdateLandMetadata writes name and description metadata on the contract
// that owns the land.
func (c *Client) UpdateLandMetadata(ctx context.Context, land model.Land, metadata string) (string, error) {
	switch land.Type {
	case model.LandTypeParcel:
		return c.transact(ctx, "parcel", c.addresses.Parcel, parcelABI, "setMetadata", parcelTokenID(land), metadata)
	case model.LandTypeEstate:
		id, err := parseAmount(land.LandID)
		if err != nil {
			return "", &ContractError{Contract: "estate", Method: "updateMetadata", Err: err}
		}
		return c.transact(ctx, "estate", c.addresses.Estate, estateABI, "updateMetadata", id, metadata)
	default:
		return "", &ContractError{Contract: "land", Method: "updateMetadata", Err: unknownLandType(land.Type)}
	}
}

// TransferLand moves a parcel or an estate using the contract that matches
// its type.
func (c *Client) TransferLand(ctx context.Context, land model.Land, to string) (string, error) {
	recipient, err := parseAddress(to)
	if err != nil {
		return "", &ContractError{Contract: "land", Method: "transferFrom", Err: err}
	}
	from := c.opts.From
	switch land.Type {
	case model.LandTypeParcel:
		return c.transact(ctx, "parcel", c.addresses.Parcel, parcelABI, "transferFrom", from, recipient, parcelTokenID(land))
	case model.LandTypeEstate:
		id, err := parseAmount(land.LandID)
		if err != nil {
			return "", &ContractError{Contract: "estate", Method: "transferFrom", Err: err}
		}
		return c.transact(ctx, "estate", c.addresses.Estate, estateABI, "transferFrom", from, recipient, id)
	default:
		return "", &ContractError{Contract: "land", Method: "transferFrom", Err: unknownLandType(land.Type)}
	}
}

// parcelTokenID prefers the registry id reported by the land API and falls
// back to encoding the coordinate.
func parcelTokenID(land model.Land) *big.Int {
	if id, ok := new(big.Int).SetString(land.LandID, 10); ok {
		return id
	}
	return model.EncodeLandID(model.Coord{X: land.X, Y: land.Y})
}

type unknownLandType model.LandType

func (t unknownLandType) Error() string {
	return "unknown land type: " + string(t)
}
