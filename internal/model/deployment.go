package model

import (
	"encoding/json"
	"time"
)

type Rotation string

const (
	RotationNorth Rotation = "north"
	RotationEast  Rotation = "east"
	RotationSouth Rotation = "south"
	RotationWest  Rotation = "west"
)

type Placement struct {
	Point    Coord    `json:"point"`
	Rotation Rotation `json:"rotation"`
}

type Layout struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

type Deployment struct {
	ID        string    `json:"id"`
	Placement Placement `json:"placement"`
	Owner     string    `json:"owner"`
	Timestamp time.Time `json:"timestamp"`
	Layout    *Layout   `json:"layout,omitempty"`
	Name      string    `json:"name"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	ProjectID string    `json:"projectId,omitempty"`
	Base      string    `json:"base"`
	Parcels   []string  `json:"parcels"`
}

// SceneDefinition is the scene.json document deployed with every scene.
type SceneDefinition struct {
	Display SceneDisplay `json:"display"`
	Owner   string       `json:"owner"`
	Contact SceneContact `json:"contact"`
	Main    string       `json:"main"`
	Tags    []string     `json:"tags"`
	Scene   SceneParcels `json:"scene"`
	Source  *SceneSource `json:"source,omitempty"`
}

type SceneDisplay struct {
	Title           string `json:"title"`
	Favicon         string `json:"favicon,omitempty"`
	NavmapThumbnail string `json:"navmapThumbnail,omitempty"`
}

type SceneContact struct {
	Name string `json:"name"`
}

type SceneParcels struct {
	Base    string   `json:"base"`
	Parcels []string `json:"parcels"`
}

// SceneSource records which builder project produced a deployment.
type SceneSource struct {
	Version   int      `json:"version"`
	Origin    string   `json:"origin"`
	ProjectID string   `json:"projectId,omitempty"`
	Point     Coord    `json:"point"`
	Rotation  Rotation `json:"rotation"`
	Layout    *Layout  `json:"layout,omitempty"`
	IsEmpty   bool     `json:"isEmpty,omitempty"`
}

type Project struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Thumbnail   string          `json:"thumbnail"`
	IsPublic    bool            `json:"isPublic"`
	SceneID     string          `json:"sceneId"`
	EthAddress  string          `json:"ethAddress"`
	Layout      Layout          `json:"layout"`
	Scene       json.RawMessage `json:"scene,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Media holds the captured scene previews uploaded before a deployment.
type Media struct {
	North   []byte
	East    []byte
	South   []byte
	West    []byte
	Preview []byte
}

func (m Media) Complete() bool {
	return len(m.North) > 0 && len(m.East) > 0 && len(m.South) > 0 && len(m.West) > 0 && len(m.Preview) > 0
}

type ProgressStage string

const (
	ProgressStageNone            ProgressStage = "none"
	ProgressStageUploadRecording ProgressStage = "upload_recording"
	ProgressStageCreateFiles     ProgressStage = "create_files"
	ProgressStageUploadContent   ProgressStage = "upload_content"
)

type AssetPack struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Thumbnail  string    `json:"thumbnail"`
	EthAddress string    `json:"ethAddress"`
	Assets     []Asset   `json:"assets"`
	CreatedAt  time.Time `json:"createdAt,omitzero"`
	UpdatedAt  time.Time `json:"updatedAt,omitzero"`
}

type Asset struct {
	ID          string            `json:"id"`
	LegacyID    string            `json:"legacyId,omitempty"`
	AssetPackID string            `json:"assetPackId"`
	Name        string            `json:"name"`
	Model       string            `json:"model"`
	Script      string            `json:"script,omitempty"`
	Thumbnail   string            `json:"thumbnail"`
	Tags        []string          `json:"tags"`
	Category    string            `json:"category"`
	Contents    map[string]string `json:"contents"`
	Metrics     Metrics           `json:"metrics"`
	Parameters  json.RawMessage   `json:"parameters,omitempty"`
	Actions     json.RawMessage   `json:"actions,omitempty"`
}
