package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"builder/internal/model"
)

// Coordinate accepts x/y values the land API sends either as numbers or as
// numeric strings.
type Coordinate int

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*c = 0
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid coordinate %s: %w", data, err)
	}
	*c = Coordinate(value)
	return nil
}

// FlexibleID accepts ids sent as numbers or strings.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	*f = FlexibleID(trimmed)
	return nil
}

type RemoteParcel struct {
	ID          FlexibleID `json:"id"`
	X           Coordinate `json:"x"`
	Y           Coordinate `json:"y"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Owner       string     `json:"owner"`
	EstateID    FlexibleID `json:"estateId"`
}

type RemoteEstate struct {
	ID          FlexibleID     `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Owner       string         `json:"owner"`
	Parcels     []RemoteParcel `json:"parcels"`
}

// RemoteRows is the paginated envelope returned by the land API.
type RemoteRows[T any] struct {
	Rows  []T `json:"rows"`
	Count int `json:"count"`
}

func FromRemoteParcel(remote RemoteParcel, role model.RoleType) model.Land {
	id := model.CoordsToID(int(remote.X), int(remote.Y))
	name := remote.Name
	if name == "" {
		name = "Parcel " + id
	}
	return model.Land{
		ID:          id,
		LandID:      string(remote.ID),
		Name:        name,
		Description: remote.Description,
		Type:        model.LandTypeParcel,
		Role:        role,
		X:           int(remote.X),
		Y:           int(remote.Y),
		Owner:       remote.Owner,
		Operators:   []string{},
	}
}

func FromRemoteEstate(remote RemoteEstate, role model.RoleType) model.Land {
	id := string(remote.ID)
	name := remote.Name
	if name == "" {
		name = "Estate " + id
	}
	parcels := make([]model.ParcelRef, 0, len(remote.Parcels))
	for _, parcel := range remote.Parcels {
		parcels = append(parcels, model.ParcelRef{
			ID: model.CoordsToID(int(parcel.X), int(parcel.Y)),
			X:  int(parcel.X),
			Y:  int(parcel.Y),
		})
	}
	return model.Land{
		ID:          id,
		LandID:      id,
		Name:        name,
		Description: remote.Description,
		Type:        model.LandTypeEstate,
		Role:        role,
		Parcels:     parcels,
		Size:        len(parcels),
		Owner:       remote.Owner,
		Operators:   []string{},
	}
}
