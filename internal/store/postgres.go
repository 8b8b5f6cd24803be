package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"builder/internal/model"
)

const (
	entityCollection    = "collection"
	entityItem          = "item"
	entityLand          = "land"
	entityDeployment    = "deployment"
	entityProject       = "project"
	entityAuthorization = "authorization"
	entityRarity        = "rarity"
	entityCuration      = "curation"
)

// PostgresStore persists State snapshots as one JSONB row per entity.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type entityRow struct {
	kind string
	id   string
	body any
}

func snapshotRows(snapshot Snapshot) []entityRow {
	var rows []entityRow
	for _, collection := range snapshot.Collections {
		rows = append(rows, entityRow{entityCollection, collection.ID, collection})
	}
	for _, item := range snapshot.Items {
		rows = append(rows, entityRow{entityItem, item.ID, item})
	}
	for _, land := range snapshot.Lands {
		rows = append(rows, entityRow{entityLand, land.ID, land})
	}
	for _, deployment := range snapshot.Deployments {
		rows = append(rows, entityRow{entityDeployment, deployment.ID, deployment})
	}
	for _, project := range snapshot.Projects {
		rows = append(rows, entityRow{entityProject, project.ID, project})
	}
	for _, authorization := range snapshot.Authorizations {
		rows = append(rows, entityRow{entityAuthorization, authorization.Key(), authorization})
	}
	for _, rarity := range snapshot.Rarities {
		rows = append(rows, entityRow{entityRarity, rarity.ID, rarity})
	}
	for _, curation := range snapshot.Curations {
		rows = append(rows, entityRow{entityCuration, curation.ItemID, curation})
	}
	return rows
}

// SaveSnapshot replaces the stored entities with snapshot in one transaction.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, snapshot Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entities`); err != nil {
		return fmt.Errorf("clear entities: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM failures`); err != nil {
		return fmt.Errorf("clear failures: %w", err)
	}

	for _, row := range snapshotRows(snapshot) {
		body, err := json.Marshal(row.body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", row.kind, row.id, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entities (kind, id, body, updated_at)
			VALUES ($1, $2, $3::jsonb, NOW())
		`, row.kind, row.id, string(body)); err != nil {
			return fmt.Errorf("insert %s %s: %w", row.kind, row.id, err)
		}
	}

	for key, message := range snapshot.Failures {
		if _, err := tx.ExecContext(ctx, `INSERT INTO failures (key, message) VALUES ($1, $2)`, key, message); err != nil {
			return fmt.Errorf("insert failure %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads every stored entity back into a Snapshot.
func (s *PostgresStore) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, id, body FROM entities ORDER BY kind, id`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var snapshot Snapshot
	for rows.Next() {
		var kind, id string
		var body []byte
		if err := rows.Scan(&kind, &id, &body); err != nil {
			return Snapshot{}, fmt.Errorf("scan entity: %w", err)
		}
		if err := decodeEntity(&snapshot, kind, body); err != nil {
			return Snapshot{}, fmt.Errorf("decode %s %s: %w", kind, id, err)
		}
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterate entities: %w", err)
	}

	failureRows, err := s.db.QueryContext(ctx, `SELECT key, message FROM failures`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query failures: %w", err)
	}
	defer failureRows.Close()
	snapshot.Failures = map[string]string{}
	for failureRows.Next() {
		var key, message string
		if err := failureRows.Scan(&key, &message); err != nil {
			return Snapshot{}, fmt.Errorf("scan failure: %w", err)
		}
		snapshot.Failures[key] = message
	}
	if err := failureRows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterate failures: %w", err)
	}
	return snapshot, nil
}

func decodeEntity(snapshot *Snapshot, kind string, body []byte) error {
	switch kind {
	case entityCollection:
		var v model.Collection
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snapshot.Collections = append(snapshot.Collections, v)
	case entityItem:
		var v model.Item
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snapshot.Items = append(snapshot.Items, v)
	case entityLand:
		var v model.Land
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snapshot.Lands = append(snapshot.Lands, v)
	case entityDeployment:
		var v model.Deployment
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snapshot.Deployments = append(snapshot.Deployments, v)
	case entityProject:
		var v model.Project
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snapshot.Projects = append(snapshot.Projects, v)
	case entityAuthorization:
		var v model.Authorization
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snapshot.Authorizations = append(snapshot.Authorizations, v)
	case entityRarity:
		var v model.RarityInfo
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snapshot.Rarities = append(snapshot.Rarities, v)
	case entityCuration:
		var v model.ItemCuration
		if err := json.Unmarshal(body, &v); err != nil {
			return err
		}
		snapshot.Curations = append(snapshot.Curations, v)
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	return nil
}

// SnapshotStore is what Persister writes to.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error
}

// Persister writes State to a SnapshotStore whenever its version moves.
type Persister struct {
	state    *State
	store    SnapshotStore
	interval time.Duration
	logger   *zap.Logger
	saved    uint64
}

func NewPersister(state *State, store SnapshotStore, interval time.Duration, logger *zap.Logger) *Persister {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{state: state, store: store, interval: interval, logger: logger}
}

// Flush saves the state if it changed since the last save.
func (p *Persister) Flush(ctx context.Context) error {
	version := p.state.Version()
	if version == p.saved {
		return nil
	}
	if err := p.store.SaveSnapshot(ctx, p.state.Snapshot()); err != nil {
		return err
	}
	p.saved = version
	return nil
}

// Run flushes on every tick until ctx ends, then flushes once more.
func (p *Persister) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.Flush(flushCtx); err != nil {
				p.logger.Warn("final state flush", zap.Error(err))
			}
			cancel()
			return
		case <-ticker.C:
			if err := p.Flush(ctx); err != nil {
				p.logger.Warn("state flush", zap.Error(err))
			}
		}
	}
}
