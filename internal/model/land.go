package model

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

type LandType string

const (
	LandTypeParcel LandType = "parcel"
	LandTypeEstate LandType = "estate"
)

type RoleType string

const (
	RoleOwner    RoleType = "owner"
	RoleOperator RoleType = "operator"
)

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ID renders the coordinate the way pointers and parcel ids are keyed: "x,y".
func (c Coord) ID() string {
	return CoordsToID(c.X, c.Y)
}

func CoordsToID(x, y int) string {
	return strconv.Itoa(x) + "," + strconv.Itoa(y)
}

// IDToCoords parses an "x,y" pointer.
func IDToCoords(id string) (Coord, error) {
	parts := strings.Split(id, ",")
	if len(parts) != 2 {
		return Coord{}, fmt.Errorf("invalid coordinate %q", id)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Coord{}, fmt.Errorf("invalid coordinate %q: %w", id, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Coord{}, fmt.Errorf("invalid coordinate %q: %w", id, err)
	}
	return Coord{X: x, Y: y}, nil
}

type ParcelRef struct {
	ID string `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
}

type Land struct {
	ID          string      `json:"id"`
	LandID      string      `json:"landId"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Type        LandType    `json:"type"`
	Role        RoleType    `json:"role"`
	X           int         `json:"x,omitempty"`
	Y           int         `json:"y,omitempty"`
	Parcels     []ParcelRef `json:"parcels,omitempty"`
	Size        int         `json:"size,omitempty"`
	Owner       string      `json:"owner"`
	Operators   []string    `json:"operators"`
}

// Coords lists the pointers a land covers: its own coordinate for a parcel,
// its member parcels for an estate.
func (l Land) Coords() []string {
	switch l.Type {
	case LandTypeParcel:
		return []string{CoordsToID(l.X, l.Y)}
	case LandTypeEstate:
		coords := make([]string, 0, len(l.Parcels))
		for _, parcel := range l.Parcels {
			coords = append(coords, CoordsToID(parcel.X, parcel.Y))
		}
		return coords
	default:
		return nil
	}
}

var (
	clearLow = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	twoTo128 = new(big.Int).Lsh(big.NewInt(1), 128)
)

// EncodeLandID packs a coordinate into the parcel registry's token id: the
// two's complement of x in the high 128 bits and of y in the low 128 bits.
func EncodeLandID(c Coord) *big.Int {
	x := toUint128(c.X)
	y := toUint128(c.Y)
	return new(big.Int).Or(new(big.Int).Lsh(x, 128), y)
}

func toUint128(v int) *big.Int {
	n := big.NewInt(int64(v))
	if n.Sign() < 0 {
		n.Add(n, twoTo128)
	}
	return n.And(n, clearLow)
}

// CoordsToLandIDs encodes every coordinate for estate contract calls.
func CoordsToLandIDs(coords []Coord) []*big.Int {
	ids := make([]*big.Int, 0, len(coords))
	for _, c := range coords {
		ids = append(ids, EncodeLandID(c))
	}
	return ids
}

// LandMetadata builds the CSV metadata string stored on parcel and estate
// contracts.
func LandMetadata(name, description string) string {
	escape := func(s string) string {
		return strings.ReplaceAll(s, `"`, `\"`)
	}
	return fmt.Sprintf(`0,"%s","%s",`, escape(name), escape(description))
}
