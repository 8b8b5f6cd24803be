package app

import (
	"context"
	"net/http"
	"strings"

	"builder/internal/gateway"
	"builder/internal/model"
	"builder/internal/outcome"
	"builder/internal/rbac"
	"builder/internal/saga"
)

// accepted answers an intent that was handed to the runner. The settled
// outcome reaches the client through /api/state and /api/outcomes.
func accepted(w http.ResponseWriter, kind outcome.Kind, key string) {
	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": true,
		"kind":     kind,
		"key":      key,
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func invalidBody(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
}

func ownerOrDefault(requested, fallback string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return strings.ToLower(requested)
	}
	return fallback
}

func (s *HTTPServer) handleCollections(w http.ResponseWriter, r *http.Request, current Session, parts []string) {
	svc := s.service
	wf := svc.workflows

	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var collection model.Collection
		if err := decodeBody(r, &collection); err != nil {
			invalidBody(w, err)
			return
		}
		if collection.ID == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "id is required", nil)
			return
		}
		known, err := svc.authorizeCollection(current, collection.ID, rbac.ActionEdit)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		collection.Owner = known.Owner
		svc.dispatch(outcome.KindSaveCollection, collection.ID, func(ctx context.Context) {
			wf.SaveCollection(ctx, collection)
		})
		accepted(w, outcome.KindSaveCollection, collection.ID)
		return
	}

	if len(parts) == 1 && parts[0] == "fetch" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var body struct {
			Owner string `json:"owner"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		owner := ownerOrDefault(body.Owner, wf.Address())
		svc.dispatch(outcome.KindFetchCollections, owner, func(ctx context.Context) {
			wf.FetchCollections(ctx, owner)
		})
		accepted(w, outcome.KindFetchCollections, owner)
		return
	}

	collectionID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		collection, err := svc.authorizeCollection(current, collectionID, rbac.ActionDelete)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		svc.dispatch(outcome.KindDeleteCollection, collectionID, func(ctx context.Context) {
			wf.DeleteCollection(ctx, collection)
		})
		accepted(w, outcome.KindDeleteCollection, collectionID)
		return
	}

	if len(parts) != 2 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "fetch":
		svc.dispatch(outcome.KindFetchCollection, collectionID, func(ctx context.Context) {
			wf.FetchCollection(ctx, collectionID)
		})
		accepted(w, outcome.KindFetchCollection, collectionID)

	case "publish":
		collection, err := svc.authorizeCollection(current, collectionID, rbac.ActionPublish)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		var body struct {
			Items []model.Item `json:"items"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		items := body.Items
		if len(items) == 0 {
			items = svc.collectionItems(collectionID)
		}
		svc.dispatch(outcome.KindPublish, collectionID, func(ctx context.Context) {
			wf.PublishCollection(ctx, collection, items)
		})
		accepted(w, outcome.KindPublish, collectionID)

	case "minters":
		collection, err := svc.authorizeCollection(current, collectionID, rbac.ActionManageMinters)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		var body struct {
			Access []model.MinterAccess `json:"access"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		svc.dispatch(outcome.KindSetMinters, collectionID, func(ctx context.Context) {
			wf.SetMinters(ctx, collection, body.Access)
		})
		accepted(w, outcome.KindSetMinters, collectionID)

	case "mint":
		collection, err := svc.authorizeCollection(current, collectionID, rbac.ActionMint)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		var body struct {
			Mints []model.Mint `json:"mints"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		if len(body.Mints) == 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "mints are required", nil)
			return
		}
		svc.dispatch(outcome.KindMintItems, collectionID, func(ctx context.Context) {
			wf.MintItems(ctx, collection, body.Mints)
		})
		accepted(w, outcome.KindMintItems, collectionID)

	case "tos":
		collection, err := svc.authorizeCollection(current, collectionID, rbac.ActionPublish)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		var body struct {
			Email string `json:"email"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		if strings.TrimSpace(body.Email) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "email is required", nil)
			return
		}
		svc.dispatch(outcome.KindSaveTOS, collectionID, func(ctx context.Context) {
			wf.SaveTOS(ctx, collection, body.Email)
		})
		accepted(w, outcome.KindSaveTOS, collectionID)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

type itemFile struct {
	Item     model.Item        `json:"item"`
	Contents map[string][]byte `json:"contents"`
	FileName string            `json:"fileName"`
}

func (s *HTTPServer) handleItems(w http.ResponseWriter, r *http.Request, current Session, parts []string) {
	svc := s.service
	wf := svc.workflows

	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var body itemFile
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		item, err := s.prepareItem(current, body.Item)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		svc.dispatch(outcome.KindSaveItem, item.ID, func(ctx context.Context) {
			wf.SaveItem(ctx, item, body.Contents)
		})
		accepted(w, outcome.KindSaveItem, item.ID)
		return
	}

	if len(parts) == 1 && parts[0] == "fetch" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var body struct {
			Owner string `json:"owner"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		owner := ownerOrDefault(body.Owner, wf.Address())
		svc.dispatch(outcome.KindFetchItems, owner, func(ctx context.Context) {
			wf.FetchItems(ctx, owner)
		})
		accepted(w, outcome.KindFetchItems, owner)
		return
	}

	if len(parts) == 1 && parts[0] == "bulk" {
		switch r.Method {
		case http.MethodPost:
			var body struct {
				Files []itemFile `json:"files"`
			}
			if err := decodeBody(r, &body); err != nil {
				invalidBody(w, err)
				return
			}
			files := make([]saga.BuiltFile, 0, len(body.Files))
			for _, file := range body.Files {
				item, err := s.prepareItem(current, file.Item)
				if err != nil {
					s.writeMappedError(w, r, err)
					return
				}
				files = append(files, saga.BuiltFile{Item: item, NewContent: file.Contents, FileName: file.FileName})
			}
			svc.dispatch(outcome.KindSaveMultipleItems, saga.BulkKey, func(ctx context.Context) {
				wf.SaveMultipleItems(ctx, files)
			})
			accepted(w, outcome.KindSaveMultipleItems, saga.BulkKey)
		case http.MethodDelete:
			writeJSON(w, http.StatusOK, map[string]any{
				"cancelled": svc.cancel(outcome.KindSaveMultipleItems, saga.BulkKey),
			})
		default:
			methodNotAllowed(w)
		}
		return
	}

	itemID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		item, err := svc.authorizeItem(current, itemID, rbac.ActionDelete)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		svc.dispatch(outcome.KindDeleteItem, itemID, func(ctx context.Context) {
			wf.DeleteItem(ctx, item)
		})
		accepted(w, outcome.KindDeleteItem, itemID)
		return
	}

	if len(parts) == 2 && parts[1] == "download" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleDownload(w, r, current, itemID)
		return
	}

	if len(parts) != 2 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "fetch":
		svc.dispatch(outcome.KindFetchItem, itemID, func(ctx context.Context) {
			wf.FetchItem(ctx, itemID)
		})
		accepted(w, outcome.KindFetchItem, itemID)

	case "price":
		if _, err := svc.authorizeItem(current, itemID, rbac.ActionEdit); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		var body struct {
			Price       string `json:"price"`
			Beneficiary string `json:"beneficiary"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		svc.dispatch(outcome.KindSetPriceAndBeneficiary, itemID, func(ctx context.Context) {
			wf.SetPriceAndBeneficiary(ctx, itemID, body.Price, body.Beneficiary)
		})
		accepted(w, outcome.KindSetPriceAndBeneficiary, itemID)

	case "collection":
		item, err := svc.authorizeItem(current, itemID, rbac.ActionEdit)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		var body struct {
			CollectionID string `json:"collectionId"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		if body.CollectionID != "" {
			if _, err := svc.authorizeCollection(current, body.CollectionID, rbac.ActionEdit); err != nil {
				s.writeMappedError(w, r, err)
				return
			}
		}
		svc.dispatch(outcome.KindSetItemCollection, itemID, func(ctx context.Context) {
			wf.SetItemCollection(ctx, item, body.CollectionID)
		})
		accepted(w, outcome.KindSetItemCollection, itemID)

	case "curation":
		if _, err := svc.authorizeItem(current, itemID, rbac.ActionPublish); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		svc.dispatch(outcome.KindPushItemCuration, itemID, func(ctx context.Context) {
			wf.PushItemCuration(ctx, itemID)
		})
		accepted(w, outcome.KindPushItemCuration, itemID)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// prepareItem authorizes a save of item. The owner always comes from the
// stored item, or the caller for items it creates.
func (s *HTTPServer) prepareItem(current Session, item model.Item) (model.Item, error) {
	if item.ID == "" {
		return model.Item{}, model.NewValidationError("id", "id is required")
	}
	item.Owner = current.Address
	if known, ok := s.service.state.Item(item.ID); ok {
		if err := s.service.authorizeItemAccess(current, known, rbac.ActionEdit); err != nil {
			return model.Item{}, err
		}
		item.Owner = known.Owner
	}
	if item.CollectionID != "" {
		if _, err := s.service.authorizeCollection(current, item.CollectionID, rbac.ActionEdit); err != nil {
			return model.Item{}, err
		}
	}
	return item, nil
}

func (s *HTTPServer) handleDownload(w http.ResponseWriter, r *http.Request, current Session, itemID string) {
	if _, err := s.service.authorizeItem(current, itemID, rbac.ActionRead); err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	packed, out := s.service.workflows.DownloadItem(r.Context(), itemID)
	if !out.Completed() {
		writeError(w, http.StatusBadGateway, "DOWNLOAD_FAILED", out.Error, nil)
		return
	}
	name := "item.zip"
	if len(out.FileNames) > 0 {
		name = out.FileNames[0]
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(packed)
}

func (s *HTTPServer) handleRarities(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 1 || parts[0] != "fetch" || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	wf := s.service.workflows
	s.service.dispatch(outcome.KindFetchRarities, "rarities", func(ctx context.Context) {
		wf.FetchRarities(ctx)
	})
	accepted(w, outcome.KindFetchRarities, "rarities")
}

// handleDeployments serves /api/projects/* and /api/deployments/*. parts
// starts at the resource name.
func (s *HTTPServer) handleDeployments(w http.ResponseWriter, r *http.Request, current Session, parts []string) {
	svc := s.service
	wf := svc.workflows

	if r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "fetch" {
		if parts[0] == "projects" {
			svc.dispatch(outcome.KindFetchProjects, "", func(ctx context.Context) {
				wf.FetchProjects(ctx)
			})
			accepted(w, outcome.KindFetchProjects, "")
			return
		}
		var body struct {
			Coords []string `json:"coords"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		svc.dispatch(outcome.KindFetchDeployments, "", func(ctx context.Context) {
			wf.FetchDeployments(ctx, body.Coords)
		})
		accepted(w, outcome.KindFetchDeployments, "")
		return
	}

	if parts[0] != "deployments" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if err := svc.authorizeOperator(current); err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodPost:
		var req saga.DeployRequest
		if err := decodeBody(r, &req); err != nil {
			invalidBody(w, err)
			return
		}
		if req.ProjectID == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "projectId is required", nil)
			return
		}
		svc.dispatch(outcome.KindDeployToLand, req.ProjectID, func(ctx context.Context) {
			wf.DeployToLand(ctx, req)
		})
		accepted(w, outcome.KindDeployToLand, req.ProjectID)

	case len(parts) == 2 && parts[1] == "pool" && r.Method == http.MethodPost:
		var body struct {
			ProjectID string            `json:"projectId"`
			Info      *gateway.PoolInfo `json:"info"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		if body.ProjectID == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "projectId is required", nil)
			return
		}
		svc.dispatch(outcome.KindDeployToPool, body.ProjectID, func(ctx context.Context) {
			wf.DeployToPool(ctx, body.ProjectID, body.Info)
		})
		accepted(w, outcome.KindDeployToPool, body.ProjectID)

	case len(parts) == 2 && r.Method == http.MethodDelete:
		deploymentID := parts[1]
		svc.dispatch(outcome.KindClearDeployment, deploymentID, func(ctx context.Context) {
			wf.ClearDeployment(ctx, deploymentID)
		})
		accepted(w, outcome.KindClearDeployment, deploymentID)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// handleLands serves /api/lands/*, /api/estates and /api/authorizations/*.
// parts starts at the resource name.
func (s *HTTPServer) handleLands(w http.ResponseWriter, r *http.Request, current Session, parts []string) {
	svc := s.service
	wf := svc.workflows

	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	switch {
	case len(parts) == 2 && parts[0] == "lands" && parts[1] == "fetch":
		var body struct {
			Address string `json:"address"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		address := ownerOrDefault(body.Address, wf.Address())
		svc.dispatch(outcome.KindFetchLands, address, func(ctx context.Context) {
			wf.FetchLands(ctx, address)
		})
		accepted(w, outcome.KindFetchLands, address)
		return

	case len(parts) == 2 && parts[0] == "authorizations" && parts[1] == "fetch":
		var body struct {
			Authorizations []model.Authorization `json:"authorizations"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		svc.dispatch(outcome.KindFetchAuthorizations, "", func(ctx context.Context) {
			wf.FetchAuthorizations(ctx, body.Authorizations)
		})
		accepted(w, outcome.KindFetchAuthorizations, "")
		return

	case len(parts) == 1 && parts[0] == "estates":
		if err := svc.authorizeOperator(current); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		var body struct {
			Name        string        `json:"name"`
			Description string        `json:"description"`
			Coords      []model.Coord `json:"coords"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		if len(body.Coords) == 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "coords are required", nil)
			return
		}
		key := "estate:" + body.Name
		svc.dispatch(outcome.KindCreateEstate, key, func(ctx context.Context) {
			wf.CreateEstate(ctx, body.Name, body.Description, body.Coords)
		})
		accepted(w, outcome.KindCreateEstate, key)
		return
	}

	if len(parts) != 3 || parts[0] != "lands" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	land, err := svc.authorizeLand(current, parts[1])
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	switch parts[2] {
	case "estate":
		var body struct {
			Add    []model.Coord `json:"add"`
			Remove []model.Coord `json:"remove"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		svc.dispatch(outcome.KindEditEstate, land.ID, func(ctx context.Context) {
			wf.EditEstate(ctx, land, body.Add, body.Remove)
		})
		accepted(w, outcome.KindEditEstate, land.ID)

	case "metadata":
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		svc.dispatch(outcome.KindEditLand, land.ID, func(ctx context.Context) {
			wf.EditLand(ctx, land, body.Name, body.Description)
		})
		accepted(w, outcome.KindEditLand, land.ID)

	case "transfer":
		var body struct {
			To string `json:"to"`
		}
		if err := decodeBody(r, &body); err != nil {
			invalidBody(w, err)
			return
		}
		if strings.TrimSpace(body.To) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "to is required", nil)
			return
		}
		svc.dispatch(outcome.KindTransferLand, land.ID, func(ctx context.Context) {
			wf.TransferLand(ctx, land, body.To)
		})
		accepted(w, outcome.KindTransferLand, land.ID)

	case "dissolve":
		svc.dispatch(outcome.KindDissolveEstate, land.ID, func(ctx context.Context) {
			wf.DissolveEstate(ctx, land)
		})
		accepted(w, outcome.KindDissolveEstate, land.ID)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}
