// Package outcome defines the messages workflows report when they finish,
// fail, get cancelled or make progress, and the bus that delivers them.
package outcome

import (
	"time"

	"builder/internal/model"
)

type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusCancelled Status = "cancelled"
	StatusProgress  Status = "progress"
)

type Kind string

const (
	KindFetchCollections Kind = "collections.fetch"
	KindFetchCollection  Kind = "collection.fetch"
	KindSaveCollection   Kind = "collection.save"
	KindDeleteCollection Kind = "collection.delete"
	KindPublish          Kind = "collection.publish"
	KindSetMinters       Kind = "collection.set_minters"
	KindMintItems        Kind = "collection.mint"
	KindSyncTokenIDs     Kind = "collection.sync_token_ids"
	KindSaveTOS          Kind = "collection.save_tos"

	KindFetchItems             Kind = "items.fetch"
	KindFetchItem              Kind = "item.fetch"
	KindFetchCollectionItems   Kind = "collection.items.fetch"
	KindSaveItem               Kind = "item.save"
	KindSaveMultipleItems      Kind = "items.save_multiple"
	KindSaveMultipleProgress   Kind = "items.save_multiple.progress"
	KindSetPriceAndBeneficiary Kind = "item.set_price_and_beneficiary"
	KindDeleteItem             Kind = "item.delete"
	KindSetItemCollection      Kind = "item.set_collection"
	KindFetchRarities          Kind = "rarities.fetch"
	KindDownloadItem           Kind = "item.download"
	KindPushItemCuration       Kind = "item.curation.push"

	KindFetchProjects    Kind = "projects.fetch"
	KindDeployToLand     Kind = "deployment.deploy_to_land"
	KindDeployToPool     Kind = "deployment.deploy_to_pool"
	KindDeployProgress   Kind = "deployment.progress"
	KindClearDeployment  Kind = "deployment.clear"
	KindFetchDeployments Kind = "deployments.fetch"

	KindFetchLands     Kind = "lands.fetch"
	KindCreateEstate   Kind = "estate.create"
	KindEditEstate     Kind = "estate.edit"
	KindEditLand       Kind = "land.edit"
	KindTransferLand   Kind = "land.transfer"
	KindDissolveEstate Kind = "estate.dissolve"

	KindFetchAuthorizations Kind = "authorizations.fetch"
)

// Outcome is the only way workflow results reach the state store. Error
// carries a message string and nothing else.
type Outcome struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`
	// Key names the entity or request the outcome concerns.
	Key     string `json:"key,omitempty"`
	Address string `json:"address,omitempty"`
	Error   string `json:"error,omitempty"`
	ChainID int64  `json:"chainId,omitempty"`
	TxHash  string `json:"txHash,omitempty"`

	Collections    []model.Collection    `json:"collections,omitempty"`
	Items          []model.Item          `json:"items,omitempty"`
	Lands          []model.Land          `json:"lands,omitempty"`
	Deployments    []model.Deployment    `json:"deployments,omitempty"`
	Projects       []model.Project       `json:"projects,omitempty"`
	Authorizations []model.Authorization `json:"authorizations,omitempty"`
	Rarities       []model.RarityInfo    `json:"rarities,omitempty"`
	Curations      []model.ItemCuration  `json:"curations,omitempty"`
	Mints          []model.Mint          `json:"mints,omitempty"`
	Minters        []model.MinterAccess  `json:"minters,omitempty"`
	// Removed lists ids the outcome deletes. Which table they belong to
	// follows from Kind.
	Removed   []string            `json:"removed,omitempty"`
	Coords    []string            `json:"coords,omitempty"`
	FileNames []string            `json:"fileNames,omitempty"`
	Progress  int                 `json:"progress,omitempty"`
	Stage     model.ProgressStage `json:"stage,omitempty"`
	At        time.Time           `json:"at"`
}

// Completed reports whether the workflow succeeded.
func (o Outcome) Completed() bool {
	return o.Status == StatusSuccess
}

// Settled reports whether the workflow has finished, whatever the result.
func (o Outcome) Settled() bool {
	return o.Status != StatusProgress
}

func Success(kind Kind, key string) Outcome {
	return Outcome{Kind: kind, Status: StatusSuccess, Key: key}
}

// Failure builds a failure outcome carrying only the error's message.
func Failure(kind Kind, key string, err error) Outcome {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return Outcome{Kind: kind, Status: StatusFailure, Key: key, Error: message}
}
