package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"server-tracker/internal/config"
	"server-tracker/internal/models"
	"server-tracker/internal/whm"
)

var (
	// ErrPersistence wraps local storage failures so callers can tell them
	// apart from remote failures.
	ErrPersistence = errors.New("tracker: persistence failure")

	// ErrRefreshNotAllowed means the server is a reseller or has no token.
	ErrRefreshNotAllowed = errors.New("tracker: server is not eligible for refresh")
)

// Connector is the per-server remote API surface the tracker consumes.
// *whm.Client satisfies it; tests substitute fakes.
type Connector interface {
	Accounts(ctx context.Context) ([]whm.RawAccount, error)
	DiskUsage(ctx context.Context) (*whm.DiskUsage, error)
	BackupConfig(ctx context.Context) (*whm.BackupConfig, error)
	PHPVersion(ctx context.Context) (string, error)
}

// ConnectorFactory builds a Connector for one server
type ConnectorFactory func(server *models.Server) Connector

// ReconcileResult summarizes one account reconciliation pass
type ReconcileResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// TrackerService keeps locally persisted server data in sync with the
// remote control panels
type TrackerService struct {
	db            *gorm.DB
	connect       ConnectorFactory
	notifyService *NotifyService
	cfg           *config.TrackerConfig

	// refreshes for the same server are collapsed onto one in-flight call
	// so two reconciliations never run concurrently for one server
	flight singleflight.Group
}

// NewTrackerService creates a new tracker service
func NewTrackerService(db *gorm.DB, connect ConnectorFactory, notifyService *NotifyService, cfg *config.TrackerConfig) *TrackerService {
	return &TrackerService{
		db:            db,
		connect:       connect,
		notifyService: notifyService,
		cfg:           cfg,
	}
}

// RefreshAll refreshes every eligible server. Servers are processed in name
// order; each server gets two independent units (details, accounts) and a
// failure in one unit never blocks the others.
func (t *TrackerService) RefreshAll() error {
	var servers []models.Server
	if err := t.db.Where("server_type <> ?", models.ServerTypeReseller).
		Order("name").
		Find(&servers).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	log.Printf("Refreshing %d servers...", len(servers))

	var wg sync.WaitGroup
	for i := range servers {
		server := &servers[i]

		if server.MissingToken() {
			log.Printf("Skipping server %s: no API token configured", server.Name)
			continue
		}

		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := t.FetchServerDetails(server); err != nil {
				log.Printf("Error fetching details for server %s: %v", server.Name, err)
				t.reportFailure(server, "details", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := t.FetchServerAccounts(server); err != nil {
				log.Printf("Error fetching accounts for server %s: %v", server.Name, err)
				t.reportFailure(server, "accounts", err)
			}
		}()
	}
	wg.Wait()

	return nil
}

// RefreshServer refreshes a single server on demand
func (t *TrackerService) RefreshServer(serverID uint) error {
	var server models.Server
	if err := t.db.First(&server, serverID).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if !server.CanRefreshData() {
		return fmt.Errorf("%w: %s", ErrRefreshNotAllowed, server.Name)
	}

	return errors.Join(
		t.FetchServerDetails(&server),
		t.FetchServerAccounts(&server),
	)
}

// FetchServerAccounts fetches the remote account list and reconciles it
// against the local records. The accounts timestamp is only advanced when
// the whole unit succeeds.
func (t *TrackerService) FetchServerAccounts(server *models.Server) error {
	_, err, _ := t.flight.Do(fmt.Sprintf("accounts:%d", server.ID), func() (interface{}, error) {
		accounts, err := t.connect(server).Accounts(context.Background())
		if err != nil {
			return nil, err
		}

		return t.ProcessAccounts(server, accounts)
	})
	return err
}

// FetchServerDetails fetches disk usage, backup schedule and PHP version
// and records them as server settings. All values and the details timestamp
// are written in one transaction.
func (t *TrackerService) FetchServerDetails(server *models.Server) error {
	_, err, _ := t.flight.Do(fmt.Sprintf("details:%d", server.ID), func() (interface{}, error) {
		ctx := context.Background()
		conn := t.connect(server)

		diskUsage, err := conn.DiskUsage(ctx)
		if err != nil {
			return nil, err
		}

		backups, err := conn.BackupConfig(ctx)
		if err != nil {
			return nil, err
		}

		// Older panels don't expose the PHP version call; treat it as optional
		phpVersion, err := conn.PHPVersion(ctx)
		if err != nil {
			log.Printf("PHP version unavailable for server %s: %v", server.Name, err)
			phpVersion = ""
		}

		values := map[string]string{
			models.SettingDiskUsed:        strconv.FormatInt(diskUsage.Used, 10),
			models.SettingDiskAvailable:   strconv.FormatInt(diskUsage.Available, 10),
			models.SettingDiskTotal:       strconv.FormatInt(diskUsage.Total, 10),
			models.SettingDiskPercentage:  strconv.Itoa(diskUsage.Percentage),
			models.SettingBackupEnabled:   strconv.FormatBool(backups.Enabled),
			models.SettingBackupDays:      backups.Days,
			models.SettingBackupRetention: strconv.Itoa(backups.Retention),
		}
		if phpVersion != "" {
			values[models.SettingPHPVersion] = phpVersion
		}

		err = t.db.Transaction(func(tx *gorm.DB) error {
			for name, value := range values {
				if err := applySetting(tx, server.ID, name, value); err != nil {
					return err
				}
			}

			now := time.Now()
			if err := tx.Model(&models.Server{}).Where("id = ?", server.ID).
				Update("details_last_updated", now).Error; err != nil {
				return err
			}
			server.DetailsLastUpdated = &now
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}

		return nil, nil
	})
	return err
}

// ProcessAccounts reconciles a fetched account list against the server's
// local records: new usernames are created, known ones updated in place and
// local accounts absent from the list deleted. Usernames on the ignore list
// are excluded entirely, in both directions. The whole pass and the
// accounts timestamp commit atomically.
func (t *TrackerService) ProcessAccounts(server *models.Server, accounts []whm.RawAccount) (*ReconcileResult, error) {
	ignored := t.ignoredUsernames()
	result := &ReconcileResult{}

	incoming := make([]models.Account, 0, len(accounts))
	seen := make(map[string]bool, len(accounts))
	for _, raw := range accounts {
		if raw.User == "" || ignored[raw.User] || seen[raw.User] {
			continue
		}
		seen[raw.User] = true
		incoming = append(incoming, normalizeAccount(server.ID, raw))
	}

	err := t.db.Transaction(func(tx *gorm.DB) error {
		for i := range incoming {
			account := &incoming[i]

			var existing models.Account
			err := tx.Where("server_id = ? AND user = ?", server.ID, account.User).
				First(&existing).Error
			switch {
			case err == nil:
				if !accountChanged(&existing, account) {
					continue
				}
				if err := tx.Model(&existing).Updates(mutableFields(account)).Error; err != nil {
					return err
				}
				result.Updated++
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(account).Error; err != nil {
					return err
				}
				result.Created++
			default:
				return err
			}
		}

		// Stale pass: anything local that the filtered fetch no longer
		// mentions goes away, unless its username is ignored.
		var locals []models.Account
		if err := tx.Where("server_id = ?", server.ID).Find(&locals).Error; err != nil {
			return err
		}
		for i := range locals {
			local := &locals[i]
			if seen[local.User] || ignored[local.User] {
				continue
			}
			if err := tx.Delete(local).Error; err != nil {
				return err
			}
			result.Deleted++
		}

		now := time.Now()
		if err := tx.Model(&models.Server{}).Where("id = ?", server.ID).
			Update("accounts_last_updated", now).Error; err != nil {
			return err
		}
		server.AccountsLastUpdated = &now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	log.Printf("Reconciled accounts for server %s: %d created, %d updated, %d deleted",
		server.Name, result.Created, result.Updated, result.Deleted)

	return result, nil
}

// ReportStaleData alerts on refreshable servers whose data has not updated
// within the configured window. Servers that were never refreshed are
// skipped; those already surface through refresh-failure alerts.
func (t *TrackerService) ReportStaleData() error {
	window := t.cfg.StaleAfterDuration()
	if window <= 0 || t.notifyService == nil {
		return nil
	}

	var servers []models.Server
	if err := t.db.Where("server_type <> ? AND token IS NOT NULL", models.ServerTypeReseller).
		Find(&servers).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	now := time.Now()
	for i := range servers {
		server := &servers[i]
		if age := staleAge(now, server.DetailsLastUpdated, window); age > 0 {
			t.notifyService.NotifyStaleData(server, "details", age)
		}
		if age := staleAge(now, server.AccountsLastUpdated, window); age > 0 {
			t.notifyService.NotifyStaleData(server, "accounts", age)
		}
	}

	return nil
}

// staleAge returns the timestamp's age when it exceeds the window, or zero
// when the data is fresh or was never recorded
func staleAge(now time.Time, ts *time.Time, window time.Duration) time.Duration {
	if ts == nil {
		return 0
	}
	if age := now.Sub(*ts); age > window {
		return age
	}
	return 0
}

// DeleteServer removes a server together with everything it owns. The
// cascade is explicit so it holds on storage engines without foreign key
// enforcement.
func (t *TrackerService) DeleteServer(serverID uint) error {
	err := t.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("server_id = ?", serverID).Delete(&models.Account{}).Error; err != nil {
			return err
		}
		if err := tx.Where("server_id = ?", serverID).Delete(&models.ServerSetting{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Server{}, serverID).Error
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (t *TrackerService) ignoredUsernames() map[string]bool {
	ignored := make(map[string]bool, len(t.cfg.IgnoreUsernames))
	for _, username := range t.cfg.IgnoreUsernames {
		ignored[username] = true
	}
	return ignored
}

func (t *TrackerService) reportFailure(server *models.Server, unit string, err error) {
	if t.notifyService == nil {
		return
	}
	t.notifyService.NotifyRefreshFailure(server, unit, err)
}

// normalizeAccount maps a raw remote record into the local account shape
func normalizeAccount(serverID uint, raw whm.RawAccount) models.Account {
	var suspendTime *time.Time
	if raw.SuspendTime != 0 {
		ts := time.Unix(raw.SuspendTime, 0)
		suspendTime = &ts
	}

	return models.Account{
		ServerID:      serverID,
		User:          raw.User,
		Domain:        raw.Domain,
		IP:            raw.IP,
		Backup:        raw.Backup,
		Suspended:     raw.Suspended,
		SuspendReason: raw.SuspendReason,
		SuspendTime:   suspendTime,
		SetupDate:     parseStartDate(raw.StartDate),
		DiskUsed:      raw.DiskUsed,
		DiskLimit:     raw.DiskLimit,
		Plan:          raw.Plan,
	}
}

// parseStartDate tries the date formats WHM has used across versions
func parseStartDate(dateStr string) time.Time {
	formats := []string{
		"02 Jan 06 15:04", // listaccts startdate
		"2006-01-02 15:04:05",
		"2006-01-02",
		time.RFC3339,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t
		}
	}

	return time.Time{}
}

// accountChanged reports whether any mutable field differs. It keeps a
// repeat reconciliation of identical data from touching rows at all.
func accountChanged(existing, incoming *models.Account) bool {
	if existing.Domain != incoming.Domain ||
		existing.IP != incoming.IP ||
		existing.Backup != incoming.Backup ||
		existing.Suspended != incoming.Suspended ||
		existing.SuspendReason != incoming.SuspendReason ||
		existing.Plan != incoming.Plan ||
		existing.DiskUsed != incoming.DiskUsed ||
		existing.DiskLimit != incoming.DiskLimit ||
		!existing.SetupDate.Equal(incoming.SetupDate) {
		return true
	}

	switch {
	case existing.SuspendTime == nil && incoming.SuspendTime == nil:
		return false
	case existing.SuspendTime == nil || incoming.SuspendTime == nil:
		return true
	}
	return !existing.SuspendTime.Equal(*incoming.SuspendTime)
}

// mutableFields lists the columns a reconciliation update may touch
func mutableFields(account *models.Account) map[string]interface{} {
	return map[string]interface{}{
		"domain":         account.Domain,
		"ip":             account.IP,
		"backup":         account.Backup,
		"suspended":      account.Suspended,
		"suspend_reason": account.SuspendReason,
		"suspend_time":   account.SuspendTime,
		"setup_date":     account.SetupDate,
		"disk_used":      account.DiskUsed,
		"disk_limit":     account.DiskLimit,
		"plan":           account.Plan,
	}
}
