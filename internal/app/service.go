package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"builder/internal/auth"
	"builder/internal/gateway"
	"builder/internal/model"
	"builder/internal/outcome"
	"builder/internal/saga"
	"builder/internal/search"
	"builder/internal/session"
	"builder/internal/store"
	"builder/internal/util"
)

type Session struct {
	Token     string
	Address   string
	ChainID   int64
	JTI       string
	ExpiresAt time.Time
}

// Workflows is the orchestrator surface the intent API drives.
type Workflows interface {
	Runner() *saga.Runner
	Address() string
	Connect(address string)

	FetchCollections(ctx context.Context, owner string) outcome.Outcome
	FetchCollection(ctx context.Context, id string) outcome.Outcome
	SaveCollection(ctx context.Context, collection model.Collection) outcome.Outcome
	DeleteCollection(ctx context.Context, collection model.Collection) outcome.Outcome
	PublishCollection(ctx context.Context, collection model.Collection, items []model.Item) outcome.Outcome
	SetMinters(ctx context.Context, collection model.Collection, access []model.MinterAccess) outcome.Outcome
	MintItems(ctx context.Context, collection model.Collection, mints []model.Mint) outcome.Outcome
	SaveTOS(ctx context.Context, collection model.Collection, email string) outcome.Outcome

	FetchItems(ctx context.Context, owner string) outcome.Outcome
	FetchItem(ctx context.Context, id string) outcome.Outcome
	SaveItem(ctx context.Context, item model.Item, contents map[string][]byte) outcome.Outcome
	SaveMultipleItems(ctx context.Context, files []saga.BuiltFile) outcome.Outcome
	SetPriceAndBeneficiary(ctx context.Context, itemID, price, beneficiary string) outcome.Outcome
	DeleteItem(ctx context.Context, item model.Item) outcome.Outcome
	SetItemCollection(ctx context.Context, item model.Item, collectionID string) outcome.Outcome
	FetchRarities(ctx context.Context) outcome.Outcome
	PushItemCuration(ctx context.Context, itemID string) outcome.Outcome
	DownloadItem(ctx context.Context, itemID string) ([]byte, outcome.Outcome)

	FetchProjects(ctx context.Context) outcome.Outcome
	DeployToLand(ctx context.Context, req saga.DeployRequest) outcome.Outcome
	DeployToPool(ctx context.Context, projectID string, info *gateway.PoolInfo) outcome.Outcome
	ClearDeployment(ctx context.Context, deploymentID string) outcome.Outcome
	FetchDeployments(ctx context.Context, coords []string) outcome.Outcome

	FetchLands(ctx context.Context, address string) outcome.Outcome
	CreateEstate(ctx context.Context, name, description string, coords []model.Coord) outcome.Outcome
	EditEstate(ctx context.Context, estate model.Land, toAdd, toRemove []model.Coord) outcome.Outcome
	EditLand(ctx context.Context, land model.Land, name, description string) outcome.Outcome
	TransferLand(ctx context.Context, land model.Land, to string) outcome.Outcome
	DissolveEstate(ctx context.Context, estate model.Land) outcome.Outcome
	FetchAuthorizations(ctx context.Context, requested []model.Authorization) outcome.Outcome
}

type sessionStore interface {
	Save(ctx context.Context, tokenID, address string, chainID int64, expiresAt time.Time) error
	Lookup(ctx context.Context, tokenID string) (session.Data, error)
	Revoke(ctx context.Context, tokenID string) error
}

type outcomeHistory interface {
	Recent(ctx context.Context, limit int) ([]outcome.Outcome, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	JWTSecret  []byte
	SessionTTL time.Duration
	LoginSkew  time.Duration
	ChainID    int64
}

type Deps struct {
	State     *store.State
	Workflows Workflows
	Search    *search.Service
	// Sessions is optional. Without it tokens are not revocable.
	Sessions sessionStore
	// History is optional. Without it /api/outcomes answers 503.
	History outcomeHistory
	// Checks are pinged by /api/ready, keyed by the name reported back.
	Checks map[string]Pinger
	Logger *zap.Logger
}

type Service struct {
	opts      Options
	state     *store.State
	workflows Workflows
	search    *search.Service
	sessions  sessionStore
	history   outcomeHistory
	checks    map[string]Pinger
	logger    *zap.Logger
	now       func() time.Time
}

func New(deps Deps, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.LoginSkew <= 0 {
		opts.LoginSkew = 5 * time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		opts:      opts,
		state:     deps.State,
		workflows: deps.Workflows,
		search:    deps.Search,
		sessions:  deps.Sessions,
		history:   deps.History,
		checks:    deps.Checks,
		logger:    logger,
		now:       time.Now,
	}
}

// Login opens a session for a wallet that signed auth.LoginMessage.
func (s *Service) Login(ctx context.Context, address string, timestamp int64, signature string) (Session, error) {
	address = strings.TrimSpace(address)
	if address == "" || signature == "" {
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "address and signature are required", nil)
	}
	if err := auth.VerifyLogin(address, time.UnixMilli(timestamp), signature, s.now(), s.opts.LoginSkew); err != nil {
		s.logger.Info("login rejected", zap.String("address", address), zap.Error(err))
		return Session{}, domainError(http.StatusUnauthorized, "BAD_SIGNATURE", "Signature does not match address", nil)
	}

	jti := util.NewID("ses")
	token, err := auth.IssueToken(s.opts.JWTSecret, address, s.opts.ChainID, jti, s.opts.SessionTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue session token: %w", err)
	}
	expiresAt := s.now().Add(s.opts.SessionTTL)
	if s.sessions != nil {
		if err := s.sessions.Save(ctx, jti, address, s.opts.ChainID, expiresAt); err != nil {
			return Session{}, err
		}
	}
	return Session{
		Token:     token,
		Address:   strings.ToLower(address),
		ChainID:   s.opts.ChainID,
		JTI:       jti,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken(s.opts.JWTSecret, token)
	if err != nil {
		return Session{}, err
	}
	if s.sessions != nil {
		if _, err := s.sessions.Lookup(ctx, claims.ID); err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return Session{}, auth.ErrExpiredToken
			}
			return Session{}, err
		}
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return Session{
		Token:     token,
		Address:   claims.Address,
		ChainID:   claims.ChainID,
		JTI:       claims.ID,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) Logout(ctx context.Context, current Session) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.Revoke(ctx, current.JTI)
}

// Ready pings every configured check and returns the failures by name.
func (s *Service) Ready(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	for name, check := range s.checks {
		if check == nil {
			continue
		}
		if err := check.Ping(ctx); err != nil {
			failures[name] = err
		}
	}
	return failures
}

func (s *Service) CheckNames() []string {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	return names
}

func (s *Service) Snapshot() store.Snapshot {
	return s.state.Snapshot()
}

func (s *Service) Version() uint64 {
	return s.state.Version()
}

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func (s *Service) Outcomes(ctx context.Context, limit int) ([]outcome.Outcome, error) {
	if s.history == nil {
		return nil, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "Outcome history not configured", nil)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.history.Recent(ctx, limit)
}

// Failure returns the last failure message recorded for a workflow key.
func (s *Service) Failure(key string) string {
	return s.state.Failure(key)
}
