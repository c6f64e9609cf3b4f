package whm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient points a client at an httptest server
func newTestClient(t *testing.T, serverURL string, opts Options) *Client {
	t.Helper()

	parsed, err := url.Parse(serverURL)
	require.NoError(t, err)

	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	opts.Protocol = "http"
	return NewClient(parsed.Hostname(), port, "test-token", opts)
}

func TestAccounts(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/json-api/listaccts", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("api.version"))

		// Mixed field types the way WHM actually sends them
		w.Write([]byte(`{
			"metadata": {"command": "listaccts", "result": 1, "reason": "OK"},
			"data": {"acct": [
				{
					"user": "abc", "domain": "abc.com", "ip": "10.0.0.1",
					"backup": 1, "suspended": 0, "suspendreason": "not suspended",
					"suspendtime": 0, "startdate": "15 Jan 20 11:13",
					"diskused": "12M", "disklimit": "unlimited", "plan": "default"
				},
				{
					"user": "xyz", "domain": "xyz.com", "ip": "10.0.0.2",
					"backup": 0, "suspended": 1, "suspendreason": "abuse",
					"suspendtime": 1600000000, "startdate": "02 Feb 21 09:00",
					"diskused": 2048, "disklimit": "512M", "plan": "gold"
				},
				{"domain": "no-user.example.com"}
			]}
		}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Options{Username: "root"})

	accounts, err := client.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "whm root:test-token", gotAuth)

	// The record without a username is skipped, not fatal
	require.Len(t, accounts, 2)

	abc := accounts[0]
	assert.Equal(t, "abc", abc.User)
	assert.Equal(t, "abc.com", abc.Domain)
	assert.True(t, abc.Backup)
	assert.False(t, abc.Suspended)
	assert.Equal(t, int64(0), abc.SuspendTime)
	assert.Equal(t, int64(12*1024), abc.DiskUsed)
	assert.Equal(t, int64(0), abc.DiskLimit) // unlimited
	assert.Equal(t, "15 Jan 20 11:13", abc.StartDate)

	xyz := accounts[1]
	assert.True(t, xyz.Suspended)
	assert.Equal(t, "abuse", xyz.SuspendReason)
	assert.Equal(t, int64(1600000000), xyz.SuspendTime)
	assert.Equal(t, int64(2048), xyz.DiskUsed)
	assert.Equal(t, int64(512*1024), xyz.DiskLimit)
}

func TestDiskUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json-api/getdiskusage", r.URL.Path)
		w.Write([]byte(`{
			"metadata": {"result": 1},
			"data": {"used": 1048576, "available": "2097152", "total": 3145728, "percentage": 33}
		}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Options{})

	usage, err := client.DiskUsage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1048576), usage.Used)
	assert.Equal(t, int64(3145728), usage.Total)
	assert.Equal(t, 33, usage.Percentage)
}

func TestBackupConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json-api/backup_config_get", r.URL.Path)
		w.Write([]byte(`{
			"metadata": {"result": 1},
			"data": {"backup_config": {
				"backupenable": 1, "backupdays": "0,3,6", "backup_daily_retention": 5
			}}
		}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Options{})

	backups, err := client.BackupConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, backups.Enabled)
	assert.Equal(t, "0,3,6", backups.Days)
	assert.Equal(t, 5, backups.Retention)
}

func TestPHPVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"metadata": {"result": 1}, "data": {"version": "ea-php74"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Options{})

	version, err := client.PHPVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ea-php74", version)
}

func TestAuthRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Options{})

	_, err := client.Accounts(context.Background())
	assert.ErrorIs(t, err, ErrAuthRejected)
}

func TestAuthRejectedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"metadata": {"result": 0, "reason": "Access denied: invalid token"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Options{})

	_, err := client.Accounts(context.Background())
	assert.ErrorIs(t, err, ErrAuthRejected)
}

func TestUnavailableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Options{})

	_, err := client.Accounts(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`this is not json`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Options{})

	_, err := client.Accounts(context.Background())
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Options{Timeout: 20 * time.Millisecond})

	_, err := client.Accounts(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestConnectionRefused(t *testing.T) {
	// Grab a port nothing listens on
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := newTestClient(t, srv.URL, Options{})

	_, err := client.Accounts(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestParseLooseInt(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1024", 1024},
		{"12M", 12 * 1024},
		{"2G", 2 * 1024 * 1024},
		{"100K", 100},
		{"unlimited", 0},
		{"", 0},
		{"3.5", 3},
		{"garbage", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLooseInt(tt.in), "input %q", tt.in)
	}
}
