package whm

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RawAccount is one account record as reported by the listaccts call.
// SuspendTime is a unix timestamp; zero means the account was never
// suspended. StartDate is left unparsed because WHM reports it in several
// formats depending on version.
type RawAccount struct {
	User          string
	Domain        string
	IP            string
	Backup        bool
	Suspended     bool
	SuspendReason string
	SuspendTime   int64
	StartDate     string
	DiskUsed      int64
	DiskLimit     int64
	Plan          string
}

// DiskUsage is the server-wide disk summary, in kilobytes
type DiskUsage struct {
	Used       int64
	Available  int64
	Total      int64
	Percentage int
}

// BackupConfig is the server's backup schedule
type BackupConfig struct {
	Enabled   bool
	Days      string // numeric weekday codes, e.g. "0,3,6"
	Retention int
}

// Options holds the connection parameters shared by every client
type Options struct {
	Protocol      string // http/https
	Username      string // user the API token belongs to, usually root
	Timeout       time.Duration
	SkipTLSVerify bool
}

// Client talks to one WHM server's JSON API
type Client struct {
	baseURL  string
	username string
	token    string
	client   *http.Client
}

// NewClient creates a client for a single server
func NewClient(address string, port int, token string, opts Options) *Client {
	protocol := opts.Protocol
	if protocol == "" {
		protocol = "https"
	}
	username := opts.Username
	if username == "" {
		username = "root"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	if opts.SkipTLSVerify {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		baseURL:  fmt.Sprintf("%s://%s:%d", protocol, address, port),
		username: username,
		token:    token,
		client:   client,
	}
}

// Accounts fetches the full account list. Records missing a username are
// skipped rather than failing the whole call.
func (c *Client) Accounts(ctx context.Context) ([]RawAccount, error) {
	var data struct {
		Acct []map[string]interface{} `json:"acct"`
	}

	if err := c.get(ctx, "listaccts", nil, &data); err != nil {
		return nil, err
	}

	accounts := make([]RawAccount, 0, len(data.Acct))
	for _, raw := range data.Acct {
		user := stringField(raw, "user")
		if user == "" {
			continue
		}

		accounts = append(accounts, RawAccount{
			User:          user,
			Domain:        stringField(raw, "domain"),
			IP:            stringField(raw, "ip"),
			Backup:        boolField(raw, "backup"),
			Suspended:     boolField(raw, "suspended"),
			SuspendReason: stringField(raw, "suspendreason"),
			SuspendTime:   intField(raw, "suspendtime"),
			StartDate:     stringField(raw, "startdate"),
			DiskUsed:      intField(raw, "diskused"),
			DiskLimit:     intField(raw, "disklimit"),
			Plan:          stringField(raw, "plan"),
		})
	}

	return accounts, nil
}

// DiskUsage fetches the server-wide disk summary
func (c *Client) DiskUsage(ctx context.Context) (*DiskUsage, error) {
	var data struct {
		Used       json.Number `json:"used"`
		Available  json.Number `json:"available"`
		Total      json.Number `json:"total"`
		Percentage json.Number `json:"percentage"`
	}

	if err := c.get(ctx, "getdiskusage", nil, &data); err != nil {
		return nil, err
	}

	percentage, _ := data.Percentage.Int64()

	return &DiskUsage{
		Used:       numberValue(data.Used),
		Available:  numberValue(data.Available),
		Total:      numberValue(data.Total),
		Percentage: int(percentage),
	}, nil
}

// BackupConfig fetches the server's backup schedule
func (c *Client) BackupConfig(ctx context.Context) (*BackupConfig, error) {
	var data struct {
		BackupConfig map[string]interface{} `json:"backup_config"`
	}

	if err := c.get(ctx, "backup_config_get", nil, &data); err != nil {
		return nil, err
	}

	if data.BackupConfig == nil {
		return nil, fmt.Errorf("%w: missing backup_config", ErrMalformed)
	}

	return &BackupConfig{
		Enabled:   boolField(data.BackupConfig, "backupenable"),
		Days:      stringField(data.BackupConfig, "backupdays"),
		Retention: int(intField(data.BackupConfig, "backup_daily_retention")),
	}, nil
}

// PHPVersion fetches the system default PHP package, e.g. "ea-php74"
func (c *Client) PHPVersion(ctx context.Context) (string, error) {
	var data struct {
		Version string `json:"version"`
	}

	if err := c.get(ctx, "php_get_system_default_version", nil, &data); err != nil {
		return "", err
	}

	return data.Version, nil
}

// get performs one JSON API call and decodes the data section of the
// response envelope into out
func (c *Client) get(ctx context.Context, function string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api.version", "1")

	endpoint := fmt.Sprintf("%s/json-api/%s?%s", c.baseURL, function, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("whm %s:%s", c.username, c.token))

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthRejected, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	// WHM wraps every response in a metadata/data envelope
	var envelope struct {
		Metadata struct {
			Result json.Number `json:"result"`
			Reason string      `json:"reason"`
		} `json:"metadata"`
		Data json.RawMessage `json:"data"`
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if result, _ := envelope.Metadata.Result.Int64(); result != 1 {
		reason := envelope.Metadata.Reason
		if strings.Contains(strings.ToLower(reason), "access denied") ||
			strings.Contains(strings.ToLower(reason), "token") {
			return fmt.Errorf("%w: %s", ErrAuthRejected, reason)
		}
		return fmt.Errorf("%w: %s", ErrUnavailable, reason)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	return nil
}

// classifyTransportError maps a transport failure onto the error taxonomy
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// WHM is loose about field types: numbers arrive as strings, quota fields
// carry unit suffixes like "512M", flags arrive as 0/1 in either form. The
// field helpers below absorb that.

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func intField(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case float64:
		return int64(v)
	case string:
		return parseLooseInt(v)
	}
	return 0
}

func boolField(m map[string]interface{}, key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n != 0
	case float64:
		return v != 0
	case string:
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return false
}

// parseLooseInt handles values such as "1024", "512M" and "unlimited"
func parseLooseInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "unlimited") {
		return 0
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "M"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "K"):
		s = strings.TrimSuffix(s, "K")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f) * multiplier
}

func numberValue(n json.Number) int64 {
	if v, err := n.Int64(); err == nil {
		return v
	}
	if f, err := n.Float64(); err == nil {
		return int64(f)
	}
	return 0
}
