package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"builder/internal/auth"
	"builder/internal/model"
	"builder/internal/transform"
)

const listLimit = "1000"

// BuilderClient talks to the builder REST API.
type BuilderClient struct {
	rest       restClient
	contentURL string
}

// NewBuilderClient builds a client for baseURL. contentURL is the gateway
// content hashes are resolved against.
func NewBuilderClient(baseURL, contentURL string, httpClient *http.Client, signer auth.Signer, logger *zap.Logger) *BuilderClient {
	return &BuilderClient{
		rest:       newRESTClient(baseURL, httpClient, signer, logger),
		contentURL: strings.TrimRight(contentURL, "/"),
	}
}

func (c *BuilderClient) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.rest.do(ctx, request{method: http.MethodGet, path: path, query: query}, out)
}

func (c *BuilderClient) send(ctx context.Context, method, path string, payload, out any) error {
	req, err := jsonRequest(method, path, payload)
	if err != nil {
		return err
	}
	return c.rest.do(ctx, req, out)
}

func limitQuery(extra map[string]string) url.Values {
	query := url.Values{"limit": {listLimit}}
	for key, value := range extra {
		if value != "" {
			query.Set(key, value)
		}
	}
	return query
}

func (c *BuilderClient) FetchProjects(ctx context.Context) ([]model.Project, error) {
	var page rows[transform.RemoteProject]
	if err := c.get(ctx, "/projects", limitQuery(nil), &page); err != nil {
		return nil, err
	}
	return transform.FromRemoteProjects(page.Rows), nil
}

func (c *BuilderClient) FetchProject(ctx context.Context, id string) (model.Project, error) {
	var remote transform.RemoteProject
	if err := c.get(ctx, "/projects/"+url.PathEscape(id), nil, &remote); err != nil {
		return model.Project{}, err
	}
	return transform.FromRemoteProject(remote), nil
}

func (c *BuilderClient) SaveProject(ctx context.Context, project model.Project) error {
	return c.send(ctx, http.MethodPost, "/projects/"+url.PathEscape(project.ID), transform.ToRemoteProject(project), nil)
}

func (c *BuilderClient) DeleteProject(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/projects/"+url.PathEscape(id), nil, nil)
}

// UploadProjectMedia uploads the preview and the four directional shots of a
// project in a single multipart request.
func (c *BuilderClient) UploadProjectMedia(ctx context.Context, projectID string, media model.Media, progress ProgressFunc) error {
	req, err := multipartRequest(http.MethodPost, "/projects/"+url.PathEscape(projectID)+"/upload", []formPart{
		{field: "preview", filename: "preview.png", content: media.Preview},
		{field: "north", filename: "north.png", content: media.North},
		{field: "east", filename: "east.png", content: media.East},
		{field: "south", filename: "south.png", content: media.South},
		{field: "west", filename: "west.png", content: media.West},
	}, progress)
	if err != nil {
		return err
	}
	return c.rest.do(ctx, req, nil)
}

// PoolInfo is the optional metadata sent when a project joins the public pool.
type PoolInfo struct {
	Groups []string `json:"groups,omitempty"`
}

func (c *BuilderClient) DeployToPool(ctx context.Context, projectID string, info *PoolInfo) error {
	var payload any
	if info != nil {
		payload = info
	}
	return c.send(ctx, http.MethodPut, "/projects/"+url.PathEscape(projectID)+"/pool", payload, nil)
}

// PreviewURL is where the builder serves a project's uploaded preview.
func (c *BuilderClient) PreviewURL(projectID string) string {
	return c.rest.baseURL + "/projects/" + url.PathEscape(projectID) + "/media/preview.png"
}

// FetchAssetPacks returns the default packs followed by the ones owned by
// address, when given.
func (c *BuilderClient) FetchAssetPacks(ctx context.Context, address string) ([]model.AssetPack, error) {
	owners := []string{"default"}
	if address != "" {
		owners = append(owners, address)
	}
	var packs []model.AssetPack
	for _, owner := range owners {
		var page rows[transform.RemoteAssetPack]
		if err := c.get(ctx, "/asset-packs", limitQuery(map[string]string{"owner": owner}), &page); err != nil {
			return nil, err
		}
		packs = append(packs, transform.FromRemoteAssetPacks(page.Rows)...)
	}
	return packs, nil
}

func (c *BuilderClient) SaveAssetPack(ctx context.Context, pack model.AssetPack) error {
	return c.send(ctx, http.MethodPost, "/asset-packs/"+url.PathEscape(pack.ID), transform.ToRemoteAssetPack(pack), nil)
}

func (c *BuilderClient) DeleteAssetPack(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/asset-packs/"+url.PathEscape(id), nil, nil)
}

func (c *BuilderClient) FetchItems(ctx context.Context, owner string) ([]model.Item, error) {
	var page rows[transform.RemoteItem]
	if err := c.get(ctx, "/items", limitQuery(map[string]string{"owner": owner}), &page); err != nil {
		return nil, err
	}
	return transform.FromRemoteItems(page.Rows), nil
}

func (c *BuilderClient) FetchItem(ctx context.Context, id string) (model.Item, error) {
	var remote transform.RemoteItem
	if err := c.get(ctx, "/items/"+url.PathEscape(id), nil, &remote); err != nil {
		return model.Item{}, err
	}
	return transform.FromRemoteItem(remote), nil
}

func (c *BuilderClient) FetchCollectionItems(ctx context.Context, collectionID string) ([]model.Item, error) {
	var page rows[transform.RemoteItem]
	if err := c.get(ctx, "/items", limitQuery(map[string]string{"collection_id": collectionID}), &page); err != nil {
		return nil, err
	}
	return transform.FromRemoteItems(page.Rows), nil
}

func (c *BuilderClient) SaveItem(ctx context.Context, item model.Item) error {
	return c.send(ctx, http.MethodPost, "/items/"+url.PathEscape(item.ID), transform.ToRemoteItem(item), nil)
}

func (c *BuilderClient) DeleteItem(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/items/"+url.PathEscape(id), nil, nil)
}

func (c *BuilderClient) FetchCollections(ctx context.Context, owner string) ([]model.Collection, error) {
	var page rows[transform.RemoteCollection]
	if err := c.get(ctx, "/collections", limitQuery(map[string]string{"owner": owner}), &page); err != nil {
		return nil, err
	}
	return transform.FromRemoteCollections(page.Rows), nil
}

func (c *BuilderClient) FetchCollection(ctx context.Context, id string) (model.Collection, error) {
	var remote transform.RemoteCollection
	if err := c.get(ctx, "/collections/"+url.PathEscape(id), nil, &remote); err != nil {
		return model.Collection{}, err
	}
	return transform.FromRemoteCollection(remote), nil
}

// SaveCollection returns the collection as stored, with server generated
// fields such as the salt and contract address filled in.
func (c *BuilderClient) SaveCollection(ctx context.Context, collection model.Collection) (model.Collection, error) {
	var remote transform.RemoteCollection
	if err := c.send(ctx, http.MethodPost, "/collections/"+url.PathEscape(collection.ID), transform.ToRemoteCollection(collection), &remote); err != nil {
		return model.Collection{}, err
	}
	return transform.FromRemoteCollection(remote), nil
}

func (c *BuilderClient) DeleteCollection(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/collections/"+url.PathEscape(id), nil, nil)
}

type syncResponse struct {
	Collection    transform.RemoteCollection     `json:"collection"`
	Items         []transform.RemoteItem         `json:"items"`
	ItemCurations []transform.RemoteItemCuration `json:"itemCurations"`
}

// SyncCollection asks the server to read token ids back from the chain.
func (c *BuilderClient) SyncCollection(ctx context.Context, id string) (model.Collection, []model.Item, error) {
	var resp syncResponse
	if err := c.send(ctx, http.MethodPost, "/collections/"+url.PathEscape(id)+"/sync", nil, &resp); err != nil {
		return model.Collection{}, nil, err
	}
	return transform.FromRemoteCollection(resp.Collection), transform.FromRemoteItems(resp.Items), nil
}

// PublishCollection marks the given items of a collection as published on
// the server side.
func (c *BuilderClient) PublishCollection(ctx context.Context, id string, itemIDs []string) (model.Collection, []model.Item, []model.ItemCuration, error) {
	payload := map[string]any{"itemIds": itemIDs}
	var resp syncResponse
	if err := c.send(ctx, http.MethodPost, "/collections/"+url.PathEscape(id)+"/publish", payload, &resp); err != nil {
		return model.Collection{}, nil, nil, err
	}
	curations := make([]model.ItemCuration, 0, len(resp.ItemCurations))
	for _, curation := range resp.ItemCurations {
		curations = append(curations, transform.FromRemoteItemCuration(curation))
	}
	return transform.FromRemoteCollection(resp.Collection), transform.FromRemoteItems(resp.Items), curations, nil
}

// LockCollection freezes a collection for publication and returns the lock
// timestamp recorded by the server.
func (c *BuilderClient) LockCollection(ctx context.Context, id string) (time.Time, error) {
	var resp struct {
		LockedAt string `json:"locked_at"`
	}
	if err := c.send(ctx, http.MethodPost, "/collections/"+url.PathEscape(id)+"/lock", nil, &resp); err != nil {
		return time.Time{}, err
	}
	lockedAt, err := transform.ParseLockedAt(resp.LockedAt)
	if err != nil {
		return time.Time{}, &TransportError{Status: http.StatusBadGateway, Message: fmt.Sprintf("invalid locked_at %q", resp.LockedAt)}
	}
	return lockedAt, nil
}

func (c *BuilderClient) SaveTOS(ctx context.Context, collection model.Collection, email string) error {
	payload := map[string]string{"email": email, "collection_address": collection.ContractAddress}
	return c.send(ctx, http.MethodPost, "/collections/"+url.PathEscape(collection.ID)+"/tos", payload, nil)
}

func (c *BuilderClient) PushItemCuration(ctx context.Context, itemID string) (model.ItemCuration, error) {
	var remote transform.RemoteItemCuration
	if err := c.send(ctx, http.MethodPost, "/items/"+url.PathEscape(itemID)+"/curation", nil, &remote); err != nil {
		return model.ItemCuration{}, err
	}
	return transform.FromRemoteItemCuration(remote), nil
}

func (c *BuilderClient) FetchRarities(ctx context.Context) ([]model.RarityInfo, error) {
	var rarities []model.RarityInfo
	if err := c.get(ctx, "/rarities", nil, &rarities); err != nil {
		return nil, err
	}
	return rarities, nil
}

// ContentURL resolves a content hash, or an ipfs:// uri, against the content
// gateway.
func (c *BuilderClient) ContentURL(hash string) string {
	return c.contentURL + "/" + strings.TrimPrefix(hash, "ipfs://")
}

// FetchContent downloads a raw blob by hash. The content gateway does not use
// the JSON envelope.
func (c *BuilderClient) FetchContent(ctx context.Context, hash string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ContentURL(hash), nil)
	if err != nil {
		return nil, fmt.Errorf("build content request: %w", err)
	}
	resp, err := c.rest.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Message: fmt.Sprintf("read content %s: %v", hash, err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return body, nil
}
