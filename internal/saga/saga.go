package saga

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"builder/internal/chain"
	"builder/internal/gateway"
	"builder/internal/media"
	"builder/internal/model"
	"builder/internal/outcome"
)

// Builder is the subset of the builder REST API the workflows call.
type Builder interface {
	FetchProjects(ctx context.Context) ([]model.Project, error)
	UploadProjectMedia(ctx context.Context, projectID string, media model.Media, progress gateway.ProgressFunc) error
	DeployToPool(ctx context.Context, projectID string, info *gateway.PoolInfo) error
	PreviewURL(projectID string) string

	FetchItems(ctx context.Context, owner string) ([]model.Item, error)
	FetchItem(ctx context.Context, id string) (model.Item, error)
	FetchCollectionItems(ctx context.Context, collectionID string) ([]model.Item, error)
	SaveItem(ctx context.Context, item model.Item) error
	DeleteItem(ctx context.Context, id string) error
	PushItemCuration(ctx context.Context, itemID string) (model.ItemCuration, error)
	FetchRarities(ctx context.Context) ([]model.RarityInfo, error)

	FetchCollections(ctx context.Context, owner string) ([]model.Collection, error)
	FetchCollection(ctx context.Context, id string) (model.Collection, error)
	SaveCollection(ctx context.Context, collection model.Collection) (model.Collection, error)
	DeleteCollection(ctx context.Context, id string) error
	SyncCollection(ctx context.Context, id string) (model.Collection, []model.Item, error)
	LockCollection(ctx context.Context, id string) (time.Time, error)
	SaveTOS(ctx context.Context, collection model.Collection, email string) error

	ContentURL(hash string) string
}

// Hub stores media and metadata documents and answers scene lookups.
type Hub interface {
	UploadMedia(ctx context.Context, content []byte, filename string, progress gateway.ProgressFunc) (string, error)
	CreateMetadata(ctx context.Context, document any) (string, error)
	FetchScenesByPointers(ctx context.Context, coords []string) (gateway.ScenePage, error)
}

type LandSource interface {
	FetchLand(ctx context.Context, owner string) ([]model.Land, error)
}

// Chain sends the contract transactions. Every call returns the hash of a
// mined transaction.
type Chain interface {
	ChainID() int64
	From() string
	CreateCollection(ctx context.Context, name, symbol string, items []chain.InitializeItem, baseURI string) (string, error)
	SetMinter(ctx context.Context, collection, minter string, allowed bool) (string, error)
	BatchCreate(ctx context.Context, collection, to, tokenID string, amount int64) (string, error)
	EditPriceAndBeneficiary(ctx context.Context, collection, tokenID, price, beneficiary string) (string, error)
	CreateEstate(ctx context.Context, coords []model.Coord, metadata string) (string, error)
	AddEstateParcels(ctx context.Context, estateID string, coords []model.Coord) (string, error)
	RemoveEstateParcels(ctx context.Context, estateID string, coords []model.Coord) (string, error)
	DissolveEstate(ctx context.Context, estateID string) (string, error)
	UpdateLandMetadata(ctx context.Context, land model.Land, metadata string) (string, error)
	TransferLand(ctx context.Context, land model.Land, to string) (string, error)
	CreateScene(ctx context.Context, owner, uri string) (string, error)
	FetchAuthorization(ctx context.Context, authorization model.Authorization) (model.Authorization, error)
}

// Contents resolves content hashes to blobs.
type Contents interface {
	FetchAll(ctx context.Context, contents map[string]string) (map[string][]byte, error)
}

// State is the read side of the state store.
type State interface {
	Collection(id string) (model.Collection, bool)
	Collections() []model.Collection
	Item(id string) (model.Item, bool)
	Items() []model.Item
	CollectionItems(collectionID string) []model.Item
	Project(id string) (model.Project, bool)
	Deployment(id string) (model.Deployment, bool)
}

type Config struct {
	LockAttempts   int
	LockDelay      time.Duration
	SyncRetryDelay time.Duration
	// Authenticated enables the preview upload before a land deployment.
	Authenticated bool
}

func (c Config) withDefaults() Config {
	if c.LockAttempts <= 0 {
		c.LockAttempts = 10
	}
	if c.LockDelay <= 0 {
		c.LockDelay = 500 * time.Millisecond
	}
	if c.SyncRetryDelay <= 0 {
		c.SyncRetryDelay = 5 * time.Second
	}
	return c
}

type Deps struct {
	Builder  Builder
	Hub      Hub
	Lands    LandSource
	Chain    Chain
	Contents Contents
	Recorder media.Recorder
	State    State
	Bus      outcome.Publisher
	Runner   *Runner
	Logger   *zap.Logger
}

// Orchestrator owns every workflow. Exported workflow methods run on the
// calling goroutine, publish their outcomes and return the settled one.
type Orchestrator struct {
	builder  Builder
	hub      Hub
	lands    LandSource
	chain    Chain
	contents Contents
	recorder media.Recorder
	state    State
	bus      outcome.Publisher
	runner   *Runner
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(deps Deps, cfg Config) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runner := deps.Runner
	if runner == nil {
		runner = NewRunner(nil, logger)
	}
	if deps.Bus != nil {
		runner.ReportTo(deps.Bus)
	}
	return &Orchestrator{
		builder:  deps.Builder,
		hub:      deps.Hub,
		lands:    deps.Lands,
		chain:    deps.Chain,
		contents: deps.Contents,
		recorder: deps.Recorder,
		state:    deps.State,
		bus:      deps.Bus,
		runner:   runner,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func (o *Orchestrator) Runner() *Runner {
	return o.runner
}

// Address is the wallet the chain transactions are signed with.
func (o *Orchestrator) Address() string {
	if o.chain == nil {
		return ""
	}
	return strings.ToLower(o.chain.From())
}

// emit publishes out and returns it. Cancelled outcomes still get delivered
// after the workflow context is done.
func (o *Orchestrator) emit(ctx context.Context, out outcome.Outcome) outcome.Outcome {
	if out.At.IsZero() {
		out.At = o.now().UTC()
	}
	if o.bus != nil {
		o.bus.Publish(context.WithoutCancel(ctx), out)
	}
	return out
}

func (o *Orchestrator) fail(ctx context.Context, kind outcome.Kind, key string, err error) outcome.Outcome {
	return o.emit(ctx, outcome.Failure(kind, key, err))
}

func (o *Orchestrator) chainID() int64 {
	if o.chain == nil {
		return 0
	}
	return o.chain.ChainID()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// firstLine trims an error to its first line.
func firstLine(err error) error {
	if err == nil {
		return nil
	}
	message, _, _ := strings.Cut(err.Error(), "\n")
	return errors.New(message)
}

func cancelled(ctx context.Context) bool {
	return ctx.Err() != nil
}
