package portaldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seed(t *testing.T, d *DB) {
	t.Helper()
	ctx := context.Background()
	stmts := []string{
		`INSERT INTO users (id, full_name, mobile, password_hash) VALUES (1, 'Asha Patel', '9876543210', 'x'), (2, 'Ravi Shah', '9123456780', 'y')`,
		`INSERT INTO documents (user_id, kind, path) VALUES (1, 'aadhaar', '/docs/1.pdf')`,
		`INSERT INTO electricity_accounts (user_id, supplier_id, consumer_number) VALUES (1, 'dgvcl', '123')`,
		`INSERT INTO gas_accounts (user_id, supplier_id, customer_id) VALUES (2, 'gujarat-gas', '456')`,
		`INSERT INTO applications (user_id, supplier_id, application_type) VALUES (1, 'dgvcl', 'name_change'), (2, 'gujarat-gas', 'address_change')`,
	}
	for _, s := range stmts {
		_, err := d.db.ExecContext(ctx, s)
		require.NoError(t, err)
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	d := openTest(t)
	c, err := d.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{}, c)
}

func TestPurgeUsers(t *testing.T) {
	d := openTest(t)
	seed(t, d)
	ctx := context.Background()

	before, err := d.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Users: 2, Documents: 1, Applications: 2, Accounts: 2}, before)

	deleted, err := d.PurgeUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, deleted)

	after, err := d.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, after)
}

func TestReset(t *testing.T) {
	d := openTest(t)
	seed(t, d)
	ctx := context.Background()

	_, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS scratch (x INTEGER)`)
	require.NoError(t, err)

	require.NoError(t, d.Reset(ctx))

	c, err := d.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, c)

	// tables outside the portal schema are left alone
	_, err = d.db.ExecContext(ctx, `INSERT INTO scratch (x) VALUES (1)`)
	assert.NoError(t, err)
}

func TestForeignKeysEnforced(t *testing.T) {
	d := openTest(t)
	_, err := d.db.ExecContext(context.Background(),
		`INSERT INTO documents (user_id, kind, path) VALUES (99, 'pan', '/x')`)
	assert.Error(t, err)
}
