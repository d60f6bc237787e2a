package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/stumelius/cranio-sub000/internal/db"
)

func TestDBCoreStoresWarningsAndErrors(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer database.Close()

	session, err := database.InsertSession("0.1.0")
	require.NoError(t, err)

	core := NewDBCore(database)
	log := zap.New(core)
	log.Error("dropped, no session bound yet")

	core.SetSession(session.SessionID)
	log.Info("ignored")
	log.Warn("low torque")
	log.Error("gauge unreachable")

	rows, err := database.Query("SELECT level, message FROM fact_log ORDER BY log_id")
	require.NoError(t, err)
	defer rows.Close()

	var got [][2]string
	for rows.Next() {
		var level, message string
		require.NoError(t, rows.Scan(&level, &message))
		got = append(got, [2]string{level, message})
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, [][2]string{{"warn", "low torque"}, {"error", "gauge unreachable"}}, got)
}

func TestAttachKeepsOriginalCore(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer database.Close()

	session, err := database.InsertSession("0.1.0")
	require.NoError(t, err)

	core := NewDBCore(database)
	core.SetSession(session.SessionID)
	log := Attach(zaptest.NewLogger(t), core)
	log.Error("gauge unreachable")

	var n int
	require.NoError(t, database.QueryRow("SELECT COUNT(*) FROM fact_log").Scan(&n))
	assert.Equal(t, 1, n)
}
