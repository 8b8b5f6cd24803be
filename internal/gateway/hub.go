package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"builder/internal/auth"
	"builder/internal/model"
)

const (
	// PointerWindow caps how many coordinates go into one scene query.
	PointerWindow = 300
	// ScenePageLimit is the row limit requested per scene query.
	ScenePageLimit = 500
)

// HubClient talks to the hub: media uploads, metadata documents and scene
// lookups by pointer.
type HubClient struct {
	rest restClient
}

func NewHubClient(baseURL string, httpClient *http.Client, signer auth.Signer, logger *zap.Logger) *HubClient {
	return &HubClient{rest: newRESTClient(baseURL, httpClient, signer, logger)}
}

type uploadResult struct {
	Hash string `json:"hash"`
}

// UploadMedia stores one file and returns its content hash.
func (c *HubClient) UploadMedia(ctx context.Context, content []byte, filename string, progress ProgressFunc) (string, error) {
	req, err := multipartRequest(http.MethodPost, "/upload", []formPart{
		{field: "file", filename: filename, content: content},
	}, progress)
	if err != nil {
		return "", err
	}
	var results []uploadResult
	if err := c.rest.do(ctx, req, &results); err != nil {
		return "", err
	}
	if len(results) == 0 || results[0].Hash == "" {
		return "", &TransportError{Status: http.StatusBadGateway, Message: fmt.Sprintf("upload of %s returned no hash", filename)}
	}
	return results[0].Hash, nil
}

// ContentRef points a path inside a metadata document at an uploaded hash.
type ContentRef struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// CreateMetadata publishes a metadata document and returns its ipfs uri.
func (c *HubClient) CreateMetadata(ctx context.Context, document any) (string, error) {
	req, err := jsonRequest(http.MethodPost, "/metadata", document)
	if err != nil {
		return "", err
	}
	var resp struct {
		IPFSURI string `json:"ipfs_uri"`
	}
	if err := c.rest.do(ctx, req, &resp); err != nil {
		return "", err
	}
	if resp.IPFSURI == "" {
		return "", &TransportError{Status: http.StatusBadGateway, Message: "metadata response carried no ipfs_uri"}
	}
	return resp.IPFSURI, nil
}

type SceneFile struct {
	File string `json:"file"`
	Hash string `json:"hash"`
}

// Scene is a deployed scene row as the hub reports it.
type Scene struct {
	ID        string                 `json:"id"`
	Pointers  []string               `json:"pointers"`
	Contents  []SceneFile            `json:"contents"`
	Metadata  *model.SceneDefinition `json:"metadata"`
	Owner     string                 `json:"owner"`
	CreatedAt int64                  `json:"createdAt"`
}

type ScenePage struct {
	Rows  []Scene `json:"rows"`
	Count int     `json:"count"`
}

// FetchScenesByPointers looks up the scenes deployed on coords. The list is
// queried in windows of PointerWindow coordinates, one request at a time;
// rows are concatenated and Count is the last window's reported count.
func (c *HubClient) FetchScenesByPointers(ctx context.Context, coords []string) (ScenePage, error) {
	result := ScenePage{Rows: []Scene{}}
	for start := 0; start < len(coords); start += PointerWindow {
		end := min(start+PointerWindow, len(coords))
		query := url.Values{"limit": {strconv.Itoa(ScenePageLimit)}}
		for _, pointer := range coords[start:end] {
			query.Add("pointer", pointer)
		}
		var page ScenePage
		if err := c.rest.do(ctx, request{method: http.MethodGet, path: "/scenes", query: query}, &page); err != nil {
			return ScenePage{}, err
		}
		result.Rows = append(result.Rows, page.Rows...)
		result.Count = page.Count
	}
	return result, nil
}
