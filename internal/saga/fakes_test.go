package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"builder/internal/chain"
	"builder/internal/gateway"
	"builder/internal/model"
	"builder/internal/outcome"
	"builder/internal/store"
)

const testWallet = "0x00000000000000000000000000000000000000aa"

// callLog records the order remote calls were made in across fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.list() {
		if c == call {
			n++
		}
	}
	return n
}

type fakeBuilder struct {
	log *callLog
	mu  sync.Mutex

	serverItems     []model.Item
	saveCollection  func(model.Collection) (model.Collection, error)
	saveItem        func(model.Item) error
	lockFailures    int
	lockCalls       int
	lockTimes       []time.Time
	lockedAt        time.Time
	projects        []model.Project
	rarities        []model.RarityInfo
	collections     []model.Collection
	items           []model.Item
	syncFailures    int
	syncCalls       int
	syncCollection  model.Collection
	syncItems       []model.Item
	uploadMediaErr  error
	deployToPoolErr error
}

func (b *fakeBuilder) FetchProjects(context.Context) ([]model.Project, error) {
	b.log.add("builder.fetchProjects")
	return b.projects, nil
}

func (b *fakeBuilder) UploadProjectMedia(_ context.Context, id string, _ model.Media, progress gateway.ProgressFunc) error {
	b.log.add("builder.uploadMedia %s", id)
	if progress != nil {
		progress(5, 10)
		progress(10, 10)
	}
	return b.uploadMediaErr
}

func (b *fakeBuilder) DeployToPool(_ context.Context, id string, _ *gateway.PoolInfo) error {
	b.log.add("builder.deployToPool %s", id)
	return b.deployToPoolErr
}

func (b *fakeBuilder) PreviewURL(id string) string {
	return "https://builder.test/projects/" + id + "/preview"
}

func (b *fakeBuilder) FetchItems(_ context.Context, owner string) ([]model.Item, error) {
	b.log.add("builder.fetchItems %s", owner)
	return b.items, nil
}

func (b *fakeBuilder) FetchItem(_ context.Context, id string) (model.Item, error) {
	for _, item := range b.items {
		if item.ID == id {
			return item, nil
		}
	}
	return model.Item{}, &gateway.TransportError{Status: 404, Message: "not found"}
}

func (b *fakeBuilder) FetchCollectionItems(_ context.Context, id string) ([]model.Item, error) {
	b.log.add("builder.fetchCollectionItems %s", id)
	return b.serverItems, nil
}

func (b *fakeBuilder) SaveItem(_ context.Context, item model.Item) error {
	b.log.add("builder.saveItem %s", item.ID)
	if b.saveItem != nil {
		return b.saveItem(item)
	}
	return nil
}

func (b *fakeBuilder) DeleteItem(_ context.Context, id string) error {
	b.log.add("builder.deleteItem %s", id)
	return nil
}

func (b *fakeBuilder) PushItemCuration(_ context.Context, id string) (model.ItemCuration, error) {
	return model.ItemCuration{ID: "cur-" + id, ItemID: id, Status: "pending"}, nil
}

func (b *fakeBuilder) FetchRarities(context.Context) ([]model.RarityInfo, error) {
	return b.rarities, nil
}

func (b *fakeBuilder) FetchCollections(_ context.Context, owner string) ([]model.Collection, error) {
	b.log.add("builder.fetchCollections %s", owner)
	return b.collections, nil
}

func (b *fakeBuilder) FetchCollection(_ context.Context, id string) (model.Collection, error) {
	for _, c := range b.collections {
		if c.ID == id {
			return c, nil
		}
	}
	return model.Collection{}, &gateway.TransportError{Status: 404, Message: "not found"}
}

func (b *fakeBuilder) SaveCollection(_ context.Context, c model.Collection) (model.Collection, error) {
	b.log.add("builder.saveCollection %s", c.ID)
	if b.saveCollection != nil {
		return b.saveCollection(c)
	}
	return c, nil
}

func (b *fakeBuilder) DeleteCollection(_ context.Context, id string) error {
	b.log.add("builder.deleteCollection %s", id)
	return nil
}

func (b *fakeBuilder) SyncCollection(_ context.Context, id string) (model.Collection, []model.Item, error) {
	b.log.add("builder.sync %s", id)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.syncCalls++
	if b.syncCalls <= b.syncFailures {
		return model.Collection{}, nil, &gateway.TransportError{Status: 503, Message: "sync failed"}
	}
	return b.syncCollection, b.syncItems, nil
}

func (b *fakeBuilder) LockCollection(_ context.Context, id string) (time.Time, error) {
	b.log.add("builder.lock %s", id)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lockCalls++
	b.lockTimes = append(b.lockTimes, time.Now())
	if b.lockCalls <= b.lockFailures {
		return time.Time{}, &gateway.TransportError{Status: 500, Message: "lock failed"}
	}
	return b.lockedAt, nil
}

func (b *fakeBuilder) SaveTOS(_ context.Context, c model.Collection, email string) error {
	b.log.add("builder.tos %s %s", c.ID, email)
	return nil
}

func (b *fakeBuilder) ContentURL(hash string) string {
	return "https://builder.test/storage/contents/" + hash
}

type fakeHub struct {
	log       *callLog
	mu        sync.Mutex
	uploads   []string
	documents []any
	rows      []gateway.Scene
}

func (h *fakeHub) UploadMedia(_ context.Context, data []byte, name string, _ gateway.ProgressFunc) (string, error) {
	h.log.add("hub.upload %s", name)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uploads = append(h.uploads, name)
	return fmt.Sprintf("Qm%s%d", name, len(data)), nil
}

func (h *fakeHub) CreateMetadata(_ context.Context, doc any) (string, error) {
	h.log.add("hub.metadata")
	h.mu.Lock()
	defer h.mu.Unlock()
	h.documents = append(h.documents, doc)
	return fmt.Sprintf("ipfs://doc%d", len(h.documents)), nil
}

func (h *fakeHub) FetchScenesByPointers(_ context.Context, coords []string) (gateway.ScenePage, error) {
	h.log.add("hub.scenes %d", len(coords))
	return gateway.ScenePage{Rows: h.rows, Count: len(h.rows)}, nil
}

type fakeChain struct {
	log        *callLog
	mu         sync.Mutex
	createErr  error
	createArgs []chain.InitializeItem
	scenes     []string
	transfers  []model.Land
	txCount    int
}

func (c *fakeChain) tx() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txCount++
	return fmt.Sprintf("0xtx%d", c.txCount)
}

func (c *fakeChain) ChainID() int64 { return 11155111 }
func (c *fakeChain) From() string   { return testWallet }

func (c *fakeChain) CreateCollection(_ context.Context, name, _ string, items []chain.InitializeItem, _ string) (string, error) {
	c.log.add("chain.create %s", name)
	c.mu.Lock()
	c.createArgs = items
	c.mu.Unlock()
	if c.createErr != nil {
		return "", c.createErr
	}
	return c.tx(), nil
}

func (c *fakeChain) SetMinter(_ context.Context, _, minter string, allowed bool) (string, error) {
	c.log.add("chain.setMinter %s %t", minter, allowed)
	return c.tx(), nil
}

func (c *fakeChain) BatchCreate(_ context.Context, _, to, tokenID string, amount int64) (string, error) {
	c.log.add("chain.batchCreate %s %s %d", to, tokenID, amount)
	return c.tx(), nil
}

func (c *fakeChain) EditPriceAndBeneficiary(_ context.Context, _, tokenID, price, beneficiary string) (string, error) {
	c.log.add("chain.editItems %s %s %s", tokenID, price, beneficiary)
	return c.tx(), nil
}

func (c *fakeChain) CreateEstate(_ context.Context, coords []model.Coord, metadata string) (string, error) {
	c.log.add("chain.createBundle %d %s", len(coords), metadata)
	return c.tx(), nil
}

func (c *fakeChain) AddEstateParcels(_ context.Context, id string, coords []model.Coord) (string, error) {
	c.log.add("chain.addItems %s %d", id, len(coords))
	return c.tx(), nil
}

func (c *fakeChain) RemoveEstateParcels(_ context.Context, id string, coords []model.Coord) (string, error) {
	c.log.add("chain.removeItems %s %d", id, len(coords))
	return c.tx(), nil
}

func (c *fakeChain) DissolveEstate(_ context.Context, id string) (string, error) {
	c.log.add("chain.removeAllItems %s", id)
	return c.tx(), nil
}

func (c *fakeChain) UpdateLandMetadata(_ context.Context, land model.Land, metadata string) (string, error) {
	c.log.add("chain.metadata %s %s", land.Type, metadata)
	return c.tx(), nil
}

func (c *fakeChain) TransferLand(_ context.Context, land model.Land, to string) (string, error) {
	c.log.add("chain.transfer %s %s", land.Type, to)
	c.transfers = append(c.transfers, land)
	return c.tx(), nil
}

func (c *fakeChain) CreateScene(_ context.Context, owner, uri string) (string, error) {
	c.log.add("chain.scene %s %s", owner, uri)
	c.scenes = append(c.scenes, uri)
	return c.tx(), nil
}

func (c *fakeChain) FetchAuthorization(_ context.Context, a model.Authorization) (model.Authorization, error) {
	a.Granted = true
	a.ChainID = c.ChainID()
	return a, nil
}

type fakeLands struct {
	lands []model.Land
}

func (l *fakeLands) FetchLand(context.Context, string) ([]model.Land, error) {
	return l.lands, nil
}

type fakeContents struct {
	blobs map[string][]byte
}

func (c *fakeContents) FetchAll(_ context.Context, contents map[string]string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(contents))
	for path, hash := range contents {
		data, ok := c.blobs[hash]
		if !ok {
			return nil, errors.New("missing blob " + hash)
		}
		out[path] = data
	}
	return out, nil
}

type fakeRecorder struct {
	media model.Media
	err   error
}

func (r *fakeRecorder) Capture(context.Context, string) (model.Media, error) {
	return r.media, r.err
}

func completeMedia() model.Media {
	shot := []byte("png")
	return model.Media{North: shot, East: shot, South: shot, West: shot, Preview: shot}
}

// recorder collects every outcome published on the bus.
type recorder struct {
	mu       sync.Mutex
	outcomes []outcome.Outcome
}

func (r *recorder) handle(_ context.Context, o outcome.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recorder) ofKind(kind outcome.Kind) []outcome.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []outcome.Outcome
	for _, o := range r.outcomes {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}

type harness struct {
	log      *callLog
	builder  *fakeBuilder
	hub      *fakeHub
	chain    *fakeChain
	lands    *fakeLands
	contents *fakeContents
	recorder *fakeRecorder
	state    *store.State
	bus      *outcome.Bus
	seen     *recorder
	orch     *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := &callLog{}
	h := &harness{
		log:      log,
		builder:  &fakeBuilder{log: log, lockedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		hub:      &fakeHub{log: log},
		chain:    &fakeChain{log: log},
		lands:    &fakeLands{},
		contents: &fakeContents{blobs: map[string][]byte{}},
		recorder: &fakeRecorder{media: completeMedia()},
		state:    store.NewState(),
		bus:      outcome.NewBus(zap.NewNop()),
		seen:     &recorder{},
	}
	h.bus.SubscribeAll(h.state.Handle)
	h.bus.SubscribeAll(h.seen.handle)
	h.orch = New(Deps{
		Builder:  h.builder,
		Hub:      h.hub,
		Lands:    h.lands,
		Chain:    h.chain,
		Contents: h.contents,
		Recorder: h.recorder,
		State:    h.state,
		Bus:      h.bus,
		Logger:   zap.NewNop(),
	}, Config{LockAttempts: 10, LockDelay: time.Millisecond, SyncRetryDelay: time.Millisecond, Authenticated: true})
	h.orch.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.orch.Runner().Shutdown(ctx)
	})
	return h
}

// seed applies a successful outcome directly to state.
func (h *harness) seed(o outcome.Outcome) {
	o.Status = outcome.StatusSuccess
	h.state.Apply(o)
}
