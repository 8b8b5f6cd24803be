package store

import (
	"encoding/json"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"builder/internal/model"
)

func TestMigrationsPairEveryUpWithADown(t *testing.T) {
	ups, err := migrationFiles(Migrations(), ".up.sql")
	require.NoError(t, err)
	downs, err := migrationFiles(Migrations(), ".down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	require.Len(t, downs, len(ups))
	for i, up := range ups {
		assert.Equal(t, strings.TrimSuffix(up, ".up.sql"), strings.TrimSuffix(downs[i], ".down.sql"))
	}
	assert.Equal(t, "0001_entities.up.sql", ups[0])
}

func TestMigrationsCreateSnapshotTables(t *testing.T) {
	cases := map[string]struct {
		table   string
		columns []string
	}{
		"0001_entities": {table: "entities", columns: []string{"kind TEXT NOT NULL", "body JSONB NOT NULL", "PRIMARY KEY (kind, id)"}},
		"0002_failures": {table: "failures", columns: []string{"key TEXT PRIMARY KEY", "message TEXT NOT NULL"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			up, err := fs.ReadFile(Migrations(), name+".up.sql")
			require.NoError(t, err)
			assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS "+tc.table)
			for _, column := range tc.columns {
				assert.Contains(t, string(up), column)
			}

			down, err := fs.ReadFile(Migrations(), name+".down.sql")
			require.NoError(t, err)
			assert.Contains(t, string(down), "DROP TABLE IF EXISTS "+tc.table)
		})
	}
}

func TestEntityRowsDecodeBackIntoSnapshot(t *testing.T) {
	snapshot := Snapshot{
		Collections:    []model.Collection{{ID: "c1", Name: "Hats"}},
		Items:          []model.Item{{ID: "i1", CollectionID: "c1"}},
		Lands:          []model.Land{{ID: "1,2", Type: model.LandTypeParcel}},
		Deployments:    []model.Deployment{{ID: "d1"}},
		Projects:       []model.Project{{ID: "p1"}},
		Authorizations: []model.Authorization{{Address: "0xabc", ContractAddress: "0xmana", AuthorizedAddress: "0xdef"}},
		Rarities:       []model.RarityInfo{{ID: "epic", Name: "Epic"}},
		Curations:      []model.ItemCuration{{ID: "cur1", ItemID: "i1"}},
	}

	rows := snapshotRows(snapshot)
	require.Len(t, rows, 8)

	var decoded Snapshot
	kinds := map[string]bool{}
	for _, row := range rows {
		require.NotEmpty(t, row.id, row.kind)
		body, err := json.Marshal(row.body)
		require.NoError(t, err)
		require.NoError(t, decodeEntity(&decoded, row.kind, body))
		kinds[row.kind] = true
	}
	assert.Len(t, kinds, 8)
	assert.Equal(t, snapshot.Collections[0].ID, decoded.Collections[0].ID)
	assert.Equal(t, "i1", decoded.Curations[0].ItemID)
	assert.Equal(t, "0xdef", decoded.Authorizations[0].AuthorizedAddress)

	assert.Error(t, decodeEntity(&decoded, "thread", []byte(`{}`)))
}
