package store

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"builder/internal/model"
)

func openTestDB(t *testing.T) (*sql.DB, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	return db, ctx
}

func TestMigrationsRoundTripPostgres(t *testing.T) {
	db, ctx := openTestDB(t)

	if err := ApplyMigrations(ctx, db, Migrations()); err != nil {
		t.Fatalf("apply up migrations (pass 1): %v", err)
	}

	if err := applyDownMigrations(ctx, db, Migrations()); err != nil {
		t.Fatalf("apply down migrations: %v", err)
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		t.Fatalf("clear schema_migrations: %v", err)
	}

	if err := ApplyMigrations(ctx, db, Migrations()); err != nil {
		t.Fatalf("apply up migrations (pass 2): %v", err)
	}
}

func TestSnapshotRoundTripPostgres(t *testing.T) {
	db, ctx := openTestDB(t)
	if err := ApplyMigrations(ctx, db, Migrations()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	pg := NewPostgresStore(db)

	want := Snapshot{
		Collections: []model.Collection{{ID: "c1", Name: "Hats", Minters: []string{}, Managers: []string{}}},
		Items:       []model.Item{{ID: "i1", Name: "Cap", CollectionID: "c1", Contents: map[string]string{"a.glb": "Qm1"}}},
		Lands:       []model.Land{{ID: "1,2", Type: model.LandTypeParcel, X: 1, Y: 2, Operators: []string{}}},
		Failures:    map[string]string{"c2": "boom"},
	}
	if err := pg.SaveSnapshot(ctx, want); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	// A second save replaces rather than appends.
	if err := pg.SaveSnapshot(ctx, want); err != nil {
		t.Fatalf("save snapshot again: %v", err)
	}

	got, err := pg.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if len(got.Collections) != 1 || got.Collections[0].Name != "Hats" {
		t.Fatalf("collections = %+v", got.Collections)
	}
	if len(got.Items) != 1 || got.Items[0].Contents["a.glb"] != "Qm1" {
		t.Fatalf("items = %+v", got.Items)
	}
	if len(got.Lands) != 1 || got.Lands[0].X != 1 {
		t.Fatalf("lands = %+v", got.Lands)
	}
	if got.Failures["c2"] != "boom" {
		t.Fatalf("failures = %+v", got.Failures)
	}
}

func resetPublicSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	return err
}

func applyDownMigrations(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	downs, err := migrationFiles(fsys, ".down.sql")
	if err != nil {
		return err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(downs)))

	for _, down := range downs {
		sqlBytes, err := fs.ReadFile(fsys, down)
		if err != nil {
			return err
		}
		sqlText := strings.TrimSpace(string(sqlBytes))
		if sqlText == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			return err
		}
	}

	return nil
}
