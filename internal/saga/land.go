package saga

import (
	"context"
	"fmt"
	"strings"

	"builder/internal/model"
	"builder/internal/outcome"
)

// FetchLands loads the parcels and estates address owns or operates.
func (o *Orchestrator) FetchLands(ctx context.Context, address string) outcome.Outcome {
	address = strings.ToLower(address)
	lands, err := o.lands.FetchLand(ctx, address)
	if err != nil {
		return o.fail(ctx, outcome.KindFetchLands, address, err)
	}
	out := outcome.Success(outcome.KindFetchLands, address)
	out.Address = address
	out.Lands = lands
	return o.emit(ctx, out)
}

// CreateEstate bundles coords into a new estate.
func (o *Orchestrator) CreateEstate(ctx context.Context, name, description string, coords []model.Coord) outcome.Outcome {
	key := "estate:" + name
	if !model.IsValidText(name) || !model.IsValidText(description) {
		return o.fail(ctx, outcome.KindCreateEstate, key, model.NewValidationError("name", "Invalid estate name or description"))
	}
	txHash, err := o.chain.CreateEstate(ctx, coords, model.LandMetadata(name, description))
	if err != nil {
		return o.fail(ctx, outcome.KindCreateEstate, key, err)
	}
	out := outcome.Success(outcome.KindCreateEstate, key)
	out.ChainID = o.chainID()
	out.TxHash = txHash
	out.Coords = coordIDs(coords)
	return o.emit(ctx, out)
}

// EditEstate adds then removes parcels, one transaction and one outcome per
// step. The estate in each outcome reflects the parcels after that step.
func (o *Orchestrator) EditEstate(ctx context.Context, estate model.Land, toAdd, toRemove []model.Coord) outcome.Outcome {
	if estate.Type != model.LandTypeEstate {
		return o.fail(ctx, outcome.KindEditEstate, estate.ID, &model.StateConflictError{Message: fmt.Sprintf("land %s is not an estate", estate.ID)})
	}
	estateID := estate.LandID
	if estateID == "" {
		estateID = estate.ID
	}

	var last outcome.Outcome
	if len(toAdd) > 0 {
		txHash, err := o.chain.AddEstateParcels(ctx, estateID, toAdd)
		if err != nil {
			return o.fail(ctx, outcome.KindEditEstate, estate.ID, err)
		}
		estate = withParcels(estate, toAdd)
		last = o.emitEstate(ctx, estate, txHash, toAdd)
	}
	if len(toRemove) > 0 {
		txHash, err := o.chain.RemoveEstateParcels(ctx, estateID, toRemove)
		if err != nil {
			return o.fail(ctx, outcome.KindEditEstate, estate.ID, err)
		}
		estate = withoutParcels(estate, toRemove)
		last = o.emitEstate(ctx, estate, txHash, toRemove)
	}
	if last.Kind == "" {
		return o.fail(ctx, outcome.KindEditEstate, estate.ID, model.NewValidationError("parcels", "Nothing to change"))
	}
	return last
}

func (o *Orchestrator) emitEstate(ctx context.Context, estate model.Land, txHash string, coords []model.Coord) outcome.Outcome {
	out := outcome.Success(outcome.KindEditEstate, estate.ID)
	out.ChainID = o.chainID()
	out.TxHash = txHash
	out.Coords = coordIDs(coords)
	out.Lands = []model.Land{estate}
	return o.emit(ctx, out)
}

func withParcels(estate model.Land, coords []model.Coord) model.Land {
	parcels := append([]model.ParcelRef(nil), estate.Parcels...)
	for _, c := range coords {
		parcels = append(parcels, model.ParcelRef{ID: c.ID(), X: c.X, Y: c.Y})
	}
	estate.Parcels = parcels
	estate.Size = len(parcels)
	return estate
}

func withoutParcels(estate model.Land, coords []model.Coord) model.Land {
	drop := make(map[string]struct{}, len(coords))
	for _, c := range coords {
		drop[c.ID()] = struct{}{}
	}
	parcels := make([]model.ParcelRef, 0, len(estate.Parcels))
	for _, parcel := range estate.Parcels {
		if _, ok := drop[model.CoordsToID(parcel.X, parcel.Y)]; !ok {
			parcels = append(parcels, parcel)
		}
	}
	estate.Parcels = parcels
	estate.Size = len(parcels)
	return estate
}

// EditLand rewrites the name and description stored on chain.
func (o *Orchestrator) EditLand(ctx context.Context, land model.Land, name, description string) outcome.Outcome {
	if !model.IsValidText(name) || !model.IsValidText(description) {
		return o.fail(ctx, outcome.KindEditLand, land.ID, model.NewValidationError("name", "Invalid land name or description"))
	}
	txHash, err := o.chain.UpdateLandMetadata(ctx, land, model.LandMetadata(name, description))
	if err != nil {
		return o.fail(ctx, outcome.KindEditLand, land.ID, err)
	}
	land.Name = name
	land.Description = description

	out := outcome.Success(outcome.KindEditLand, land.ID)
	out.ChainID = o.chainID()
	out.TxHash = txHash
	out.Lands = []model.Land{land}
	return o.emit(ctx, out)
}

// TransferLand sends a parcel or an estate to another address.
func (o *Orchestrator) TransferLand(ctx context.Context, land model.Land, to string) outcome.Outcome {
	txHash, err := o.chain.TransferLand(ctx, land, to)
	if err != nil {
		return o.fail(ctx, outcome.KindTransferLand, land.ID, err)
	}
	out := outcome.Success(outcome.KindTransferLand, land.ID)
	out.ChainID = o.chainID()
	out.TxHash = txHash
	out.Address = strings.ToLower(to)
	out.Removed = []string{land.ID}
	return o.emit(ctx, out)
}

// DissolveEstate releases every parcel of an estate back to its owner.
func (o *Orchestrator) DissolveEstate(ctx context.Context, estate model.Land) outcome.Outcome {
	if estate.Type != model.LandTypeEstate {
		return o.fail(ctx, outcome.KindDissolveEstate, estate.ID, &model.StateConflictError{Message: fmt.Sprintf("land %s is not an estate", estate.ID)})
	}
	estateID := estate.LandID
	if estateID == "" {
		estateID = estate.ID
	}
	txHash, err := o.chain.DissolveEstate(ctx, estateID)
	if err != nil {
		return o.fail(ctx, outcome.KindDissolveEstate, estate.ID, err)
	}
	out := outcome.Success(outcome.KindDissolveEstate, estate.ID)
	out.ChainID = o.chainID()
	out.TxHash = txHash
	out.Removed = []string{estate.ID}
	out.Coords = estate.Coords()
	return o.emit(ctx, out)
}

// FetchAuthorizations reads each requested allowance or approval from chain.
func (o *Orchestrator) FetchAuthorizations(ctx context.Context, requested []model.Authorization) outcome.Outcome {
	key := "authorizations"
	fetched := make([]model.Authorization, 0, len(requested))
	for _, authorization := range requested {
		result, err := o.chain.FetchAuthorization(ctx, authorization)
		if err != nil {
			return o.fail(ctx, outcome.KindFetchAuthorizations, key, err)
		}
		fetched = append(fetched, result)
	}
	out := outcome.Success(outcome.KindFetchAuthorizations, key)
	out.ChainID = o.chainID()
	out.Authorizations = fetched
	return o.emit(ctx, out)
}

// LandCoords lists every pointer covered by lands.
func LandCoords(lands []model.Land) []string {
	seen := make(map[string]struct{})
	var coords []string
	for _, land := range lands {
		for _, id := range land.Coords() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			coords = append(coords, id)
		}
	}
	return coords
}

func coordIDs(coords []model.Coord) []string {
	ids := make([]string, 0, len(coords))
	for _, c := range coords {
		ids = append(ids, c.ID())
	}
	return ids
}
