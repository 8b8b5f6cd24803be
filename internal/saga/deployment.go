package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"builder/internal/content"
	"builder/internal/gateway"
	"builder/internal/model"
	"builder/internal/outcome"
)

const (
	SceneFile   = "scene.json"
	BuilderFile = "builder.json"

	sceneSourceVersion = 1
	untitledScene      = "Untitled Scene"
	// interactiveTextTitle is the placeholder title some scenes ship with.
	interactiveTextTitle = "interactive-text"
)

var (
	errInvalidProject    = errors.New("Unable to Publish: Invalid project")
	errInvalidDeployment = errors.New("Unable to Publish: Invalid deployment")
	errInvalidIdentity   = errors.New("Unable to Publish: Invalid identity")
	errPreviewCapture    = errors.New("Failed to capture scene preview")
)

// DeployRequest places a project on land. OverrideDeploymentID names a
// deployment the new one replaces.
type DeployRequest struct {
	ProjectID            string          `json:"projectId"`
	Placement            model.Placement `json:"placement"`
	OverrideDeploymentID string          `json:"overrideDeploymentId,omitempty"`
}

// SceneParcels lists the parcels a layout covers when placed at point. East
// and west rotations swap rows and columns.
func SceneParcels(point model.Coord, layout model.Layout, rotation model.Rotation) (string, []string) {
	cols, rows := max(layout.Cols, 1), max(layout.Rows, 1)
	if rotation == model.RotationEast || rotation == model.RotationWest {
		cols, rows = rows, cols
	}
	parcels := make([]string, 0, cols*rows)
	for x := 0; x < cols; x++ {
		for y := 0; y < rows; y++ {
			parcels = append(parcels, model.CoordsToID(point.X+x, point.Y+y))
		}
	}
	return point.ID(), parcels
}

// SceneDefinition builds the scene.json of a project placed on land.
func SceneDefinition(project model.Project, placement model.Placement, owner string, empty bool) model.SceneDefinition {
	rotation := placement.Rotation
	if rotation == "" {
		rotation = model.RotationNorth
	}
	layout := project.Layout
	base, parcels := SceneParcels(placement.Point, layout, rotation)
	return model.SceneDefinition{
		Display: model.SceneDisplay{Title: project.Title},
		Owner:   owner,
		Contact: model.SceneContact{Name: owner},
		Main:    "bin/game.js",
		Tags:    []string{},
		Scene:   model.SceneParcels{Base: base, Parcels: parcels},
		Source: &model.SceneSource{
			Version:   sceneSourceVersion,
			Origin:    "builder",
			ProjectID: project.ID,
			Point:     placement.Point,
			Rotation:  rotation,
			Layout:    &layout,
			IsEmpty:   empty,
		},
	}
}

// SceneFiles serializes the deployable files of a project.
func SceneFiles(project model.Project, definition model.SceneDefinition) (*content.FileSet, error) {
	files := content.NewFileSet()
	raw, err := json.Marshal(definition)
	if err != nil {
		return nil, fmt.Errorf("marshal scene definition: %w", err)
	}
	files.Add(SceneFile, raw)
	scene := project.Scene
	if len(scene) == 0 {
		scene = json.RawMessage(`{}`)
	}
	files.Add(BuilderFile, scene)
	return files, nil
}

// uploadScene uploads every distinct file once, publishes the content list
// and registers it on the scene contract. It returns the transaction hash.
func (o *Orchestrator) uploadScene(ctx context.Context, key string, files *content.FileSet, owner string) (string, error) {
	hashes := make(map[string]string, files.Len())
	unique := files.Unique()
	for i, file := range unique {
		hash, err := o.hub.UploadMedia(ctx, file.Data, file.Path, nil)
		if err != nil {
			return "", err
		}
		hashes[file.Digest] = hash
		o.progress(ctx, outcome.KindDeployProgress, key, model.ProgressStageUploadContent, (i+1)*100/len(unique))
	}

	refs := make([]gateway.ContentRef, 0, files.Len())
	for _, file := range files.Files() {
		refs = append(refs, gateway.ContentRef{Path: file.Path, Hash: hashes[file.Digest]})
	}
	uri, err := o.hub.CreateMetadata(ctx, map[string]any{"contents": refs})
	if err != nil {
		return "", err
	}
	return o.chain.CreateScene(ctx, owner, uri)
}

func (o *Orchestrator) progress(ctx context.Context, kind outcome.Kind, key string, stage model.ProgressStage, value int) {
	o.emit(ctx, outcome.Outcome{
		Kind:     kind,
		Status:   outcome.StatusProgress,
		Key:      key,
		Stage:    stage,
		Progress: value,
	})
}

// DeployToLand publishes a project's scene to the parcels under its
// placement.
func (o *Orchestrator) DeployToLand(ctx context.Context, req DeployRequest) outcome.Outcome {
	key := req.ProjectID
	failed := func(err error) outcome.Outcome {
		return o.fail(ctx, outcome.KindDeployToLand, key, firstLine(err))
	}

	project, ok := o.state.Project(req.ProjectID)
	if !ok {
		return failed(errInvalidProject)
	}
	owner := o.Address()
	if owner == "" {
		return failed(errInvalidIdentity)
	}

	previewURL := ""
	if o.cfg.Authenticated && o.recorder != nil {
		shots, err := o.recorder.Capture(ctx, project.ID)
		switch {
		case err != nil:
			o.logger.Warn("capture preview", zap.String("project", project.ID), zap.Error(err))
		case !shots.Complete():
			o.logger.Warn("incomplete preview capture", zap.String("project", project.ID))
		default:
			err := o.builder.UploadProjectMedia(ctx, project.ID, shots, func(loaded, total int64) {
				if total > 0 {
					o.progress(ctx, outcome.KindDeployProgress, key, model.ProgressStageUploadRecording, int(loaded*100/total))
				}
			})
			if err != nil {
				return failed(err)
			}
			previewURL = o.builder.PreviewURL(project.ID)
		}
	} else {
		o.logger.Warn("skipping preview upload", zap.String("project", project.ID))
	}

	definition := SceneDefinition(project, req.Placement, owner, false)
	definition.Display.NavmapThumbnail = previewURL
	files, err := SceneFiles(project, definition)
	if err != nil {
		return failed(err)
	}
	o.progress(ctx, outcome.KindDeployProgress, key, model.ProgressStageCreateFiles, 100)

	txHash, err := o.uploadScene(ctx, key, files, owner)
	if err != nil {
		return failed(err)
	}

	layout := project.Layout
	deployment := model.Deployment{
		ID:        txHash,
		Placement: model.Placement{Point: req.Placement.Point, Rotation: definition.Source.Rotation},
		Owner:     owner,
		Timestamp: o.now().UTC(),
		Layout:    &layout,
		Name:      project.Title,
		Thumbnail: previewURL,
		ProjectID: project.ID,
		Base:      definition.Scene.Base,
		Parcels:   definition.Scene.Parcels,
	}
	out := outcome.Success(outcome.KindDeployToLand, key)
	out.ChainID = o.chainID()
	out.TxHash = txHash
	out.Deployments = []model.Deployment{deployment}
	if req.OverrideDeploymentID != "" {
		out.Removed = []string{req.OverrideDeploymentID}
	}
	return o.emit(ctx, out)
}

// ClearDeployment deploys an empty scene over an existing deployment.
func (o *Orchestrator) ClearDeployment(ctx context.Context, deploymentID string) outcome.Outcome {
	failed := func(err error) outcome.Outcome {
		return o.fail(ctx, outcome.KindClearDeployment, deploymentID, firstLine(err))
	}
	deployment, ok := o.state.Deployment(deploymentID)
	if !ok {
		return failed(errInvalidDeployment)
	}
	owner := o.Address()
	if owner == "" {
		return failed(errInvalidIdentity)
	}

	empty := model.Project{ID: deployment.ProjectID, Title: untitledScene}
	if deployment.Layout != nil {
		empty.Layout = *deployment.Layout
	}
	definition := SceneDefinition(empty, deployment.Placement, owner, true)
	files, err := SceneFiles(empty, definition)
	if err != nil {
		return failed(err)
	}
	txHash, err := o.uploadScene(ctx, deploymentID, files, owner)
	if err != nil {
		return failed(err)
	}

	out := outcome.Success(outcome.KindClearDeployment, deploymentID)
	out.ChainID = o.chainID()
	out.TxHash = txHash
	out.Removed = []string{deploymentID}
	return o.emit(ctx, out)
}

// DeployToPool captures the project's media, uploads it and lists the
// project in the public pool.
func (o *Orchestrator) DeployToPool(ctx context.Context, projectID string, info *gateway.PoolInfo) outcome.Outcome {
	failed := func(err error) outcome.Outcome {
		return o.fail(ctx, outcome.KindDeployToPool, projectID, firstLine(err))
	}
	project, ok := o.state.Project(projectID)
	if !ok {
		return failed(errInvalidProject)
	}
	o.progress(ctx, outcome.KindDeployProgress, projectID, model.ProgressStageNone, 1)

	if o.recorder == nil {
		return failed(errPreviewCapture)
	}
	shots, err := o.recorder.Capture(ctx, project.ID)
	if err != nil || !shots.Complete() {
		if err != nil {
			o.logger.Warn("capture preview", zap.String("project", project.ID), zap.Error(err))
		}
		return failed(errPreviewCapture)
	}
	o.progress(ctx, outcome.KindDeployProgress, projectID, model.ProgressStageNone, 30)

	if err := o.builder.UploadProjectMedia(ctx, project.ID, shots, nil); err != nil {
		return failed(err)
	}
	o.progress(ctx, outcome.KindDeployProgress, projectID, model.ProgressStageNone, 60)
	o.progress(ctx, outcome.KindDeployProgress, projectID, model.ProgressStageNone, 90)

	if err := o.builder.DeployToPool(ctx, project.ID, info); err != nil {
		return failed(err)
	}
	o.progress(ctx, outcome.KindDeployProgress, projectID, model.ProgressStageNone, 100)

	out := outcome.Success(outcome.KindDeployToPool, projectID)
	out.Projects = []model.Project{project}
	return o.emit(ctx, out)
}

func (o *Orchestrator) FetchProjects(ctx context.Context) outcome.Outcome {
	projects, err := o.builder.FetchProjects(ctx)
	if err != nil {
		return o.fail(ctx, outcome.KindFetchProjects, "projects", err)
	}
	out := outcome.Success(outcome.KindFetchProjects, "projects")
	out.Projects = projects
	return o.emit(ctx, out)
}

// FetchDeployments reads the scenes deployed on coords. Rows apply in
// creation order so the newest scene wins each pointer; empty scenes clear
// it.
func (o *Orchestrator) FetchDeployments(ctx context.Context, coords []string) outcome.Outcome {
	var rows []gateway.Scene
	if len(coords) > 0 {
		page, err := o.hub.FetchScenesByPointers(ctx, coords)
		if err != nil {
			return o.fail(ctx, outcome.KindFetchDeployments, "deployments", err)
		}
		rows = page.Rows
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt < rows[j].CreatedAt })

	byPointer := make(map[string]model.Deployment)
	for _, row := range rows {
		if row.Metadata == nil || len(row.Pointers) == 0 {
			continue
		}
		pointer := row.Pointers[0]
		definition := row.Metadata
		if definition.Source != nil && definition.Source.IsEmpty {
			delete(byPointer, pointer)
			continue
		}
		byPointer[pointer] = o.deploymentFromScene(row)
	}

	pointers := make([]string, 0, len(byPointer))
	for pointer := range byPointer {
		pointers = append(pointers, pointer)
	}
	sort.Strings(pointers)
	deployments := make([]model.Deployment, 0, len(pointers))
	for _, pointer := range pointers {
		deployments = append(deployments, byPointer[pointer])
	}

	out := outcome.Success(outcome.KindFetchDeployments, "deployments")
	out.Coords = coords
	out.Deployments = deployments
	return o.emit(ctx, out)
}

func (o *Orchestrator) deploymentFromScene(row gateway.Scene) model.Deployment {
	definition := row.Metadata
	name := untitledScene
	if title := definition.Display.Title; title != "" && title != interactiveTextTitle {
		name = title
	}

	point, err := model.IDToCoords(row.Pointers[0])
	if err != nil {
		o.logger.Debug("scene pointer", zap.String("pointer", row.Pointers[0]), zap.Error(err))
	}
	placement := model.Placement{Point: point, Rotation: model.RotationNorth}
	deployment := model.Deployment{
		ID:        row.ID,
		Owner:     row.Owner,
		Timestamp: unixMillis(row.CreatedAt),
		Name:      name,
		Thumbnail: o.sceneThumbnail(row),
		Base:      definition.Scene.Base,
		Parcels:   append([]string(nil), definition.Scene.Parcels...),
	}
	if source := definition.Source; source != nil {
		if source.Rotation != "" {
			placement.Rotation = source.Rotation
		}
		deployment.ProjectID = source.ProjectID
		if source.Layout != nil {
			layout := *source.Layout
			deployment.Layout = &layout
		}
	}
	deployment.Placement = placement
	return deployment
}

// sceneThumbnail resolves the navmap thumbnail, which is either a url or a
// path into the scene's own content.
func (o *Orchestrator) sceneThumbnail(row gateway.Scene) string {
	thumbnail := row.Metadata.Display.NavmapThumbnail
	for _, file := range row.Contents {
		if file.File == thumbnail && file.Hash != "" {
			return o.builder.ContentURL(file.Hash)
		}
	}
	return thumbnail
}

func unixMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
