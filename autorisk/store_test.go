package autorisk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rustyeddy/margin/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	s := NewFileStore(filepath.Join(t.TempDir(), "autorisk.yaml"))
	cfg, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestFileStore_SaveLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "autorisk.yaml")
	s := NewFileStore(path)

	want := Config{Enabled: true, StopLossPercent: 1.5, TakeProfitPercent: 4.25}
	require.NoError(t, s.Save(ctx, want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), Key)
	assert.Contains(t, string(data), "stopLossPercent")

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// No temp files are left next to the document.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_Corrupt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"not yaml", "{{{ nope"},
		{"scalar document", "hello"},
		{"wrong types", Key + ":\n  enabled: sometimes\n"},
		{"out of range", Key + ":\n  enabled: true\n  stopLossPercent: -4\n  takeProfitPercent: 6\n"},
		{"null value", Key + ":\n"},
		{"nan stop", Key + ":\n  enabled: true\n  stopLossPercent: .nan\n  takeProfitPercent: 6\n"},
		{"infinite take", Key + ":\n  enabled: true\n  stopLossPercent: 3\n  takeProfitPercent: .inf\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "autorisk.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			cfg, err := NewFileStore(path).Load(context.Background())
			assert.ErrorIs(t, err, risk.ErrPersistenceCorrupt)
			assert.Equal(t, Default(), cfg)
		})
	}
}

func TestFileStore_PartialValueKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "autorisk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(Key+":\n  enabled: true\n  takeProfitPercent: 9\n"), 0o644))

	cfg, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Config{Enabled: true, StopLossPercent: 3, TakeProfitPercent: 9}, cfg)
}

func TestFileStore_OtherKeysIgnored(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "autorisk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: dark\n"), 0o644))

	cfg, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSQLiteStore_SaveLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	want := Config{Enabled: true, StopLossPercent: 2, TakeProfitPercent: 8}
	require.NoError(t, s.Save(ctx, want))
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM settings`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_Corrupt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)`, Key, `{"enabled": tru`)
	require.NoError(t, err)

	cfg, err := s.Load(ctx)
	assert.ErrorIs(t, err, risk.ErrPersistenceCorrupt)
	assert.Equal(t, Default(), cfg)
}

func TestSQLiteStore_PartialValueKeepsDefaults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)`, Key, `{"enabled": true}`)
	require.NoError(t, err)

	cfg, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Config{Enabled: true, StopLossPercent: 3, TakeProfitPercent: 6}, cfg)
}

func TestSQLiteStore_NullValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)`, Key, `null`)
	require.NoError(t, err)

	cfg, err := s.Load(ctx)
	assert.ErrorIs(t, err, risk.ErrPersistenceCorrupt)
	assert.Equal(t, Default(), cfg)
}
