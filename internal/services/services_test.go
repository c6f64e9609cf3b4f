package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"server-tracker/internal/config"
	"server-tracker/internal/database"
	"server-tracker/internal/models"
	"server-tracker/internal/whm"
)

// newTestDB opens a fresh in-memory database with the full schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// one connection so every statement sees the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func newTestServer(t *testing.T, db *gorm.DB, name, serverType string, token *string) *models.Server {
	t.Helper()

	server := &models.Server{
		Name:       name,
		Address:    name + ".example.com",
		Port:       2087,
		ServerType: serverType,
		Token:      token,
	}
	require.NoError(t, db.Create(server).Error)
	return server
}

func tokenPtr(s string) *string { return &s }

// fakeConnector is a scriptable Connector. When block is set, Accounts
// parks until the channel is closed.
type fakeConnector struct {
	mu sync.Mutex

	accounts    []whm.RawAccount
	accountsErr error
	disk        *whm.DiskUsage
	diskErr     error
	backups     *whm.BackupConfig
	backupsErr  error
	php         string
	phpErr      error
	block       chan struct{}

	calls int
}

func (f *fakeConnector) countCall() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeConnector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeConnector) Accounts(context.Context) ([]whm.RawAccount, error) {
	f.countCall()
	if f.block != nil {
		<-f.block
	}
	if f.accountsErr != nil {
		return nil, f.accountsErr
	}
	return f.accounts, nil
}

func (f *fakeConnector) DiskUsage(context.Context) (*whm.DiskUsage, error) {
	f.countCall()
	if f.diskErr != nil {
		return nil, f.diskErr
	}
	if f.disk == nil {
		return nil, whm.ErrUnavailable
	}
	return f.disk, nil
}

func (f *fakeConnector) BackupConfig(context.Context) (*whm.BackupConfig, error) {
	f.countCall()
	if f.backupsErr != nil {
		return nil, f.backupsErr
	}
	if f.backups == nil {
		return nil, whm.ErrUnavailable
	}
	return f.backups, nil
}

func (f *fakeConnector) PHPVersion(context.Context) (string, error) {
	f.countCall()
	if f.phpErr != nil {
		return "", f.phpErr
	}
	return f.php, nil
}

// fakeNotifier records the subjects it was asked to deliver
type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeNotifier) Send(server *models.Server, subject, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, subject)
	return f.err
}

func (f *fakeNotifier) subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.sent...)
}

// staticFactory hands the same fake to every server
func staticFactory(conn Connector) ConnectorFactory {
	return func(*models.Server) Connector { return conn }
}

func newTestTracker(db *gorm.DB, conn Connector, ignore ...string) *TrackerService {
	cfg := &config.TrackerConfig{IgnoreUsernames: ignore}
	return NewTrackerService(db, staticFactory(conn), nil, cfg)
}
