// Package logging builds the application logger and mirrors warnings
// and errors into the session database.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stumelius/cranio-sub000/internal/db"
)

// New returns the application logger. Development mode uses a console
// encoder at debug level.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// DBCore is a zap core that writes warn and error entries into
// fact_log, keyed to the active session. Entries logged before a
// session is bound are dropped, and persistence failures are swallowed;
// logging must never take the application down.
type DBCore struct {
	zapcore.LevelEnabler
	database *db.DB

	mu        sync.Mutex
	sessionID string
}

// NewDBCore returns a core that stores entries at warn level and above.
// Call SetSession once the session row exists.
func NewDBCore(database *db.DB) *DBCore {
	return &DBCore{LevelEnabler: zap.WarnLevel, database: database}
}

// SetSession binds subsequent entries to the given session.
func (c *DBCore) SetSession(sessionID string) {
	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()
}

func (c *DBCore) With(fields []zapcore.Field) zapcore.Core { return c }

func (c *DBCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *DBCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()
	if sessionID == "" {
		return nil
	}
	return c.database.InsertLog(db.Log{
		SessionID: sessionID,
		CreatedAt: ent.Time.UTC(),
		Logger:    ent.LoggerName,
		Level:     ent.Level.String(),
		Trace:     ent.Stack,
		Message:   ent.Message,
	})
}

func (c *DBCore) Sync() error { return nil }

// Attach tees the warn-and-above output of log into core.
func Attach(log *zap.Logger, core *DBCore) *zap.Logger {
	return log.WithOptions(zap.WrapCore(func(wrapped zapcore.Core) zapcore.Core {
		return zapcore.NewTee(wrapped, core)
	}))
}
