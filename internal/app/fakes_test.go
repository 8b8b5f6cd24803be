package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"builder/internal/auth"
	"builder/internal/model"
	"builder/internal/outcome"
	"builder/internal/saga"
	"builder/internal/search"
	"builder/internal/session"
	"builder/internal/store"
	"builder/internal/util"
)

const (
	operatorAddress = "0x00000000000000000000000000000000000000aa"
	testChainID     = int64(11155111)
)

var testSecret = []byte("test-secret")

// fakeWorkflows implements the workflows the tests exercise. Calling any
// other method panics, which the runner recovers.
type fakeWorkflows struct {
	Workflows

	runner  *saga.Runner
	address string

	mu    sync.Mutex
	calls []string

	download    []byte
	downloadOut outcome.Outcome
}

func (f *fakeWorkflows) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeWorkflows) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeWorkflows) Runner() *saga.Runner { return f.runner }
func (f *fakeWorkflows) Address() string      { return f.address }

func (f *fakeWorkflows) Connect(address string) {
	f.record("connect " + address)
}

func (f *fakeWorkflows) SaveCollection(_ context.Context, collection model.Collection) outcome.Outcome {
	f.record("saveCollection " + collection.ID + " " + collection.Owner)
	return outcome.Outcome{Status: outcome.StatusSuccess}
}

func (f *fakeWorkflows) PublishCollection(_ context.Context, collection model.Collection, items []model.Item) outcome.Outcome {
	f.record("publish " + collection.ID + " " + strconv.Itoa(len(items)))
	return outcome.Outcome{Status: outcome.StatusSuccess}
}

func (f *fakeWorkflows) MintItems(_ context.Context, collection model.Collection, mints []model.Mint) outcome.Outcome {
	f.record("mint " + collection.ID + " " + strconv.Itoa(len(mints)))
	return outcome.Outcome{Status: outcome.StatusSuccess}
}

func (f *fakeWorkflows) SaveItem(_ context.Context, item model.Item, contents map[string][]byte) outcome.Outcome {
	f.record("saveItem " + item.ID + " " + item.Owner + " " + string(contents["model.glb"]))
	return outcome.Outcome{Status: outcome.StatusSuccess}
}

func (f *fakeWorkflows) SaveMultipleItems(ctx context.Context, files []saga.BuiltFile) outcome.Outcome {
	f.record("bulk " + strconv.Itoa(len(files)))
	<-ctx.Done()
	f.record("bulk cancelled")
	return outcome.Outcome{Status: outcome.StatusCancelled}
}

func (f *fakeWorkflows) DownloadItem(context.Context, string) ([]byte, outcome.Outcome) {
	return f.download, f.downloadOut
}

func (f *fakeWorkflows) DeployToLand(_ context.Context, req saga.DeployRequest) outcome.Outcome {
	f.record("deploy " + req.ProjectID + " " + req.Placement.Point.ID())
	return outcome.Outcome{Status: outcome.StatusSuccess}
}

func (f *fakeWorkflows) TransferLand(_ context.Context, land model.Land, to string) outcome.Outcome {
	f.record("transfer " + land.ID + " " + to)
	return outcome.Outcome{Status: outcome.StatusSuccess}
}

func (f *fakeWorkflows) FetchLands(_ context.Context, address string) outcome.Outcome {
	f.record("fetchLands " + address)
	return outcome.Outcome{Status: outcome.StatusSuccess}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	handler  http.Handler
	service  *Service
	state    *store.State
	wf       *fakeWorkflows
	sessions *session.RedisStore
	sink     *outcome.RedisSink
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	state := store.NewState()
	wf := &fakeWorkflows{runner: saga.NewRunner(nil, nil), address: operatorAddress}
	t.Cleanup(func() { _ = wf.runner.Shutdown(context.Background()) })

	sessions := session.NewRedisStoreWithClient(client)
	sink := outcome.NewRedisSinkWithClient(client, nil)
	service := New(Deps{
		State:     state,
		Workflows: wf,
		Search:    search.NewService(nil, search.NewMemory(state), nil),
		Sessions:  sessions,
		History:   sink,
		Checks:    map[string]Pinger{"redis": sessions},
	}, Options{JWTSecret: testSecret, ChainID: testChainID})

	return &testServer{
		handler:  NewHTTPServer(service, "*", nil).Handler(),
		service:  service,
		state:    state,
		wf:       wf,
		sessions: sessions,
		sink:     sink,
	}
}

// token opens a session for address without a wallet signature.
func (ts *testServer) token(t *testing.T, address string) string {
	t.Helper()
	jti := util.NewID("ses")
	token, err := auth.IssueToken(testSecret, address, testChainID, jti, time.Hour)
	require.NoError(t, err)
	require.NoError(t, ts.sessions.Save(context.Background(), jti, address, testChainID, time.Now().Add(time.Hour)))
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) seed(o outcome.Outcome) {
	o.Status = outcome.StatusSuccess
	ts.state.Apply(o)
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload), rr.Body.String())
	return payload
}
