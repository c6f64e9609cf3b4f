package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Disk severity labels returned by DiskSeverity
const (
	SeverityOK       = "ok"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
	SeverityFull     = "full"
)

// DiskThresholds holds the configured percentage tiers for disk severity
type DiskThresholds struct {
	Warning  int
	Critical int
	Full     int
}

var backupDayNames = strings.NewReplacer(
	"0", "Sun",
	"1", "Mon",
	"2", "Tue",
	"3", "Wed",
	"4", "Thu",
	"5", "Fri",
	"6", "Sat",
)

// FormatBackupDays renders a stored backup day list such as "0,3,6" as
// "Sun,Wed,Sat", keeping the original separators. An empty value means
// backups never run.
func FormatBackupDays(days string) string {
	if days == "" {
		return "None"
	}
	return backupDayNames.Replace(days)
}

// FormatFileSize renders a size reported in kilobytes as a human-readable
// string. Values are rounded to two decimals with trailing zeroes stripped,
// so 2.50 becomes "2.5" and 2.00 becomes "2".
func FormatFileSize(kb int64) string {
	switch {
	case kb >= 1<<30:
		return trimTrailingZeroes(fmt.Sprintf("%.2f", float64(kb)/float64(1<<30))) + " TB"
	case kb >= 1<<20:
		return trimTrailingZeroes(fmt.Sprintf("%.2f", float64(kb)/float64(1<<20))) + " GB"
	case kb >= 1<<10:
		return trimTrailingZeroes(fmt.Sprintf("%.2f", float64(kb)/float64(1<<10))) + " MB"
	}
	return strconv.FormatInt(kb, 10) + " KB"
}

func trimTrailingZeroes(number string) string {
	if strings.Contains(number, ".") {
		number = strings.TrimRight(number, "0")
	}
	return strings.TrimRight(number, ".")
}

var phpVersionNames = map[string]string{
	"ea-php54": "PHP 5.4",
	"ea-php55": "PHP 5.5",
	"ea-php56": "PHP 5.6",
	"ea-php70": "PHP 7.0",
	"ea-php71": "PHP 7.1",
	"ea-php72": "PHP 7.2",
	"ea-php73": "PHP 7.3",
	"ea-php74": "PHP 7.4",
	"ea-php80": "PHP 8.0",
	"ea-php81": "PHP 8.1",
	"ea-php82": "PHP 8.2",
	"ea-php83": "PHP 8.3",
}

// FormatPHPVersion maps an EasyApache package name like "ea-php74" to a
// display label
func FormatPHPVersion(pkg string) string {
	if name, ok := phpVersionNames[pkg]; ok {
		return name
	}
	return "Unknown"
}

// formatDiskSetting renders a stored disk setting, which may be absent when
// the server has never been refreshed
func formatDiskSetting(value string) string {
	if value == "" {
		return "Unknown"
	}
	kb, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return "Unknown"
	}
	return FormatFileSize(kb)
}

func parseSettingInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

// severityForPercent classifies a usage percentage against the configured
// tiers. Tiers are checked highest first so overlapping values resolve to
// the most severe label.
func severityForPercent(percent int, t DiskThresholds) string {
	switch {
	case t.Full > 0 && percent >= t.Full:
		return SeverityFull
	case t.Critical > 0 && percent >= t.Critical:
		return SeverityCritical
	case t.Warning > 0 && percent >= t.Warning:
		return SeverityWarning
	}
	return SeverityOK
}
