package tpx3

import (
	"path/filepath"
	"testing"

	sqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calibrationDB(t *testing.T, rows [][3]any) *sqlx.DB {
	t.Helper()
	db, err := OpenDatabase("sqlite", filepath.Join(t.TempDir(), "calibration.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.MustExec("CREATE TABLE DeadPixels (DetectorID TEXT, PixelX INTEGER, PixelY INTEGER)")
	for _, r := range rows {
		db.MustExec(db.Rebind("INSERT INTO DeadPixels (DetectorID, PixelX, PixelY) VALUES (?, ?, ?)"), r[0], r[1], r[2])
	}
	return db
}

func TestLoadKnownDeadPixels(t *testing.T) {
	t.Parallel()

	db := calibrationDB(t, [][3]any{
		{"chipA", 4, 9},
		{"chipA", 1, 2},
		{"chipB", 0, 0},
		{"chipA", 7, 2},
	})

	keys, err := LoadKnownDeadPixels(db, "chipA", res16)
	require.NoError(t, err)
	assert.Equal(t, []PixelKey{res16.Key(1, 2), res16.Key(7, 2), res16.Key(4, 9)}, keys)

	none, err := LoadKnownDeadPixels(db, "chipC", res16)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLoadKnownDeadPixelsOutsideDetector(t *testing.T) {
	t.Parallel()

	db := calibrationDB(t, [][3]any{{"chipA", 16, 3}})

	_, err := LoadKnownDeadPixels(db, "chipA", res16)
	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "DeadPixels", configErr.Field)
}

func TestConnectFromConfigurationSqlite(t *testing.T) {
	t.Parallel()

	config := testConfiguration()
	config.NoDB = false
	config.DBDriver = "sqlite"
	config.DBPath = filepath.Join(t.TempDir(), "known.db")

	db, err := ConnectFromConfiguration(config)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, "sqlite", db.DriverName())
}
