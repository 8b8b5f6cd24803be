package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"builder/internal/auth"
	"builder/internal/model"
	"builder/internal/transform"
)

const coordinateSchema = `{"oneOf": [{"type": "integer"}, {"type": "string", "pattern": "^-?[0-9]+$"}]}`

var parcelsSchema = jsonschema.MustCompileString("parcels.schema.json", `{
  "type": "object",
  "required": ["rows"],
  "properties": {
    "count": {"type": "integer"},
    "rows": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["x", "y"],
        "properties": {
          "id": {"type": ["string", "integer"]},
          "x": `+coordinateSchema+`,
          "y": `+coordinateSchema+`,
          "name": {"type": ["string", "null"]},
          "description": {"type": ["string", "null"]},
          "owner": {"type": ["string", "null"]},
          "estateId": {"type": ["string", "integer", "null"]}
        }
      }
    }
  }
}`)

var estatesSchema = jsonschema.MustCompileString("estates.schema.json", `{
  "type": "object",
  "required": ["rows"],
  "properties": {
    "count": {"type": "integer"},
    "rows": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "parcels"],
        "properties": {
          "id": {"type": ["string", "integer"]},
          "name": {"type": ["string", "null"]},
          "description": {"type": ["string", "null"]},
          "owner": {"type": ["string", "null"]},
          "parcels": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["x", "y"],
              "properties": {
                "x": `+coordinateSchema+`,
                "y": `+coordinateSchema+`
              }
            }
          }
        }
      }
    }
  }
}`)

// LandClient reads parcels and estates from the land API.
type LandClient struct {
	rest restClient
}

func NewLandClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *LandClient {
	return &LandClient{rest: newRESTClient(baseURL, httpClient, auth.Anonymous{}, logger)}
}

func (c *LandClient) FetchParcelsByOwner(ctx context.Context, owner string) ([]transform.RemoteParcel, error) {
	var page transform.RemoteRows[transform.RemoteParcel]
	query := url.Values{"owner": {owner}}
	if err := c.fetchValidated(ctx, "/parcels", query, parcelsSchema, &page); err != nil {
		return nil, err
	}
	return page.Rows, nil
}

func (c *LandClient) FetchEstatesByOwner(ctx context.Context, owner string) ([]transform.RemoteEstate, error) {
	var page transform.RemoteRows[transform.RemoteEstate]
	query := url.Values{"include": {"parcels"}, "owner": {owner}}
	if err := c.fetchValidated(ctx, "/estates", query, estatesSchema, &page); err != nil {
		return nil, err
	}
	return page.Rows, nil
}

// FetchLand lists everything owner holds: parcels outside any estate, then
// estates that still contain parcels.
func (c *LandClient) FetchLand(ctx context.Context, owner string) ([]model.Land, error) {
	address := strings.ToLower(owner)
	parcels, err := c.FetchParcelsByOwner(ctx, address)
	if err != nil {
		return nil, err
	}
	estates, err := c.FetchEstatesByOwner(ctx, address)
	if err != nil {
		return nil, err
	}

	lands := make([]model.Land, 0, len(parcels)+len(estates))
	for _, parcel := range parcels {
		if parcel.EstateID != "" {
			continue
		}
		lands = append(lands, transform.FromRemoteParcel(parcel, model.RoleOwner))
	}
	for _, estate := range estates {
		if len(estate.Parcels) == 0 {
			continue
		}
		lands = append(lands, transform.FromRemoteEstate(estate, model.RoleOwner))
	}
	return lands, nil
}

func (c *LandClient) fetchValidated(ctx context.Context, path string, query url.Values, schema *jsonschema.Schema, out any) error {
	var raw json.RawMessage
	if err := c.rest.do(ctx, request{method: http.MethodGet, path: path, query: query}, &raw); err != nil {
		return err
	}
	var document any
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&document); err != nil {
		return &TransportError{Status: http.StatusBadGateway, Message: fmt.Sprintf("decode %s: %v", path, err)}
	}
	if err := schema.Validate(document); err != nil {
		return &TransportError{Status: http.StatusBadGateway, Message: fmt.Sprintf("unexpected %s payload: %v", path, err)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Status: http.StatusBadGateway, Message: fmt.Sprintf("decode %s: %v", path, err)}
	}
	return nil
}
