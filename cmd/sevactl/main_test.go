package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/sevasetu/internal/directory"
	"github.com/MrSnakeDoc/sevasetu/internal/domain"
	"github.com/MrSnakeDoc/sevasetu/internal/portaldb"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSuppliersUpdate(t *testing.T) {
	for _, name := range []string{"suppliers.json", "suppliers.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data", name)
			out, err := run(t, "", "suppliers", "update", "--file", path)
			require.NoError(t, err)
			assert.Contains(t, out, "total        21 suppliers")

			f, err := directory.NewLoader(path).Load()
			require.NoError(t, err)
			assert.Equal(t, 21, f.Total())
		})
	}
}

func TestSuppliersCheckEmbedded(t *testing.T) {
	out, err := run(t, "", "suppliers", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Portal Redirections: ✅ PASS")
	assert.Contains(t, out, "Supplier Diversity:  ✅ PASS")
	assert.NotContains(t, out, "Not found")
}

func TestSuppliersCheckFailsOnGUVNLHeavyDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suppliers.yaml")
	require.NoError(t, directory.Write(path, directory.File{
		"electricity": {
			{ID: "pgvcl", Name: "PGVCL", PortalURL: "https://portal.guvnl.in", NameChangeURL: "https://portal.guvnl.in/login.php"},
			{ID: "dgvcl", Name: "DGVCL", PortalURL: "https://portal.guvnl.in", NameChangeURL: "https://portal.guvnl.in/login.php"},
		},
	}))

	out, err := run(t, "", "suppliers", "check", "--file", path)
	assert.True(t, errors.Is(err, errCheckFailed))
	assert.Contains(t, out, "Supplier Diversity:  ❌ FAIL")
	assert.Contains(t, out, "gujarat-gas: Not found")
}

func TestProbeTargetsDeduplicates(t *testing.T) {
	targets := probeTargets([]domain.Supplier{
		{ID: "b", PortalURL: "https://b.example", NameChangeURL: "https://b.example"},
		{ID: "a", PortalURL: "https://a.example", OfflineFormURL: "https://a.example/form"},
	})
	require.Len(t, targets, 3)
	assert.Equal(t, "a", targets[0].SupplierID)
	assert.Equal(t, "b", targets[2].SupplierID)
}

func createDB(t *testing.T, dsn string) {
	t.Helper()
	db, err := portaldb.Open(context.Background(), dsn)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestDBPurgeRequiresConfirmation(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "portal.db")
	createDB(t, dsn)

	out, err := run(t, "no\n", "db", "purge-users", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "Operation cancelled")

	out, err = run(t, "YES\n", "db", "purge-users", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "ALL USER DATA DELETED")
}

func TestDBReset(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "portal.db")

	out, err := run(t, "", "db", "reset", "--dsn", dsn, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "DATABASE RESET COMPLETE")

	_, err = os.Stat(dsn)
	assert.NoError(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "sevactl "))
}
