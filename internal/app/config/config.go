// Package config provides read-only access to engine configuration,
// abstracting the configuration source (JSON, ENV, defaults) from the
// rest of the app layer.
package config

import "time"

// Config is the read-only configuration surface every command consumes.
// The concrete loader (in internal/infra/config) merges setting.json,
// FLE_* environment variables, and defaults before handing out a
// Config; nothing downstream re-reads the environment directly.
type Config interface {
	Home() string // Base directory for engine state (FLE_HOME)

	DBPath() string // SQLite database path (FLE_DB_PATH)

	RemoteBucket() string        // S3 bucket backing the remote store (FLE_REMOTE_BUCKET)
	RemoteRegion() string        // AWS region (FLE_REMOTE_REGION)
	RemoteEndpoint() string      // Optional custom S3 endpoint, for test doubles (FLE_REMOTE_ENDPOINT)
	RemoteRawPrefix() string     // Key prefix for transient raw files (FLE_REMOTE_RAW_PREFIX)
	RemoteStorePrefix() string   // Key prefix for persistent store-documents (FLE_REMOTE_STORE_PREFIX)
	RemoteRateLimitRPS() float64 // Shared rate limiter tokens/sec (FLE_REMOTE_RATE_LIMIT_RPS)

	Concurrency() int // Bounded worker pool size for batch uploads (FLE_CONCURRENCY)

	PollInterval() time.Duration  // Interval between PollOperation calls (FLE_POLL_INTERVAL_MS)
	PollSoftDeadline() time.Duration // Falls back to FindStoreDocForRaw after this (FLE_POLL_SOFT_DEADLINE_S)
	PollHardDeadline() time.Duration // Gives up and fails the file after this (FLE_POLL_HARD_DEADLINE_S)

	StuckThreshold() time.Duration // Verifier's no-stuck-transitions threshold (FLE_VERIFY_STUCK_THRESHOLD_MIN)
	SearchQuery() string           // Verifier's canonical semantic query (FLE_VERIFY_SEARCH_QUERY)
	TolerancePath() string         // Verifier's per-category tolerance YAML (FLE_VERIFY_TOLERANCE_PATH)

	StderrLevel() string // Log level for stderr output (FLE_STDERR_LEVEL)

	// ConfigSource and SettingPath describe provenance, printed by the
	// migrate/doctor command for operator diagnosis.
	ConfigSource() string
	SettingPath() string
}

// AppConfig is the concrete, immutable Config implementation produced by
// the loader once every source has been merged.
type AppConfig struct {
	home   string
	dbPath string

	remoteBucket       string
	remoteRegion       string
	remoteEndpoint     string
	remoteRawPrefix    string
	remoteStorePrefix  string
	remoteRateLimitRPS float64

	concurrency int

	pollIntervalMS     int
	pollSoftDeadlineS  int
	pollHardDeadlineS  int

	stuckThresholdMin int
	searchQuery       string
	tolerancePath     string

	stderrLevel string

	configSource string
	settingPath  string
}

func (c *AppConfig) Home() string   { return c.home }
func (c *AppConfig) DBPath() string { return c.dbPath }

func (c *AppConfig) RemoteBucket() string      { return c.remoteBucket }
func (c *AppConfig) RemoteRegion() string      { return c.remoteRegion }
func (c *AppConfig) RemoteEndpoint() string    { return c.remoteEndpoint }
func (c *AppConfig) RemoteRawPrefix() string   { return c.remoteRawPrefix }
func (c *AppConfig) RemoteStorePrefix() string { return c.remoteStorePrefix }
func (c *AppConfig) RemoteRateLimitRPS() float64 { return c.remoteRateLimitRPS }

func (c *AppConfig) Concurrency() int { return c.concurrency }

func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.pollIntervalMS) * time.Millisecond
}
func (c *AppConfig) PollSoftDeadline() time.Duration {
	return time.Duration(c.pollSoftDeadlineS) * time.Second
}
func (c *AppConfig) PollHardDeadline() time.Duration {
	return time.Duration(c.pollHardDeadlineS) * time.Second
}

func (c *AppConfig) StuckThreshold() time.Duration {
	return time.Duration(c.stuckThresholdMin) * time.Minute
}
func (c *AppConfig) SearchQuery() string   { return c.searchQuery }
func (c *AppConfig) TolerancePath() string { return c.tolerancePath }

func (c *AppConfig) StderrLevel() string { return c.stderrLevel }

func (c *AppConfig) ConfigSource() string { return c.configSource }
func (c *AppConfig) SettingPath() string  { return c.settingPath }

// NewAppConfig builds an AppConfig from already-merged values. Called by
// the infra loader after JSON/env/default merging; nothing else
// constructs an AppConfig directly.
func NewAppConfig(
	home, dbPath string,
	remoteBucket, remoteRegion, remoteEndpoint, remoteRawPrefix, remoteStorePrefix string,
	remoteRateLimitRPS float64,
	concurrency int,
	pollIntervalMS, pollSoftDeadlineS, pollHardDeadlineS int,
	stuckThresholdMin int,
	searchQuery, tolerancePath string,
	stderrLevel string,
	configSource, settingPath string,
) *AppConfig {
	return &AppConfig{
		home:               home,
		dbPath:             dbPath,
		remoteBucket:       remoteBucket,
		remoteRegion:       remoteRegion,
		remoteEndpoint:     remoteEndpoint,
		remoteRawPrefix:    remoteRawPrefix,
		remoteStorePrefix:  remoteStorePrefix,
		remoteRateLimitRPS: remoteRateLimitRPS,
		concurrency:        concurrency,
		pollIntervalMS:     pollIntervalMS,
		pollSoftDeadlineS:  pollSoftDeadlineS,
		pollHardDeadlineS:  pollHardDeadlineS,
		stuckThresholdMin:  stuckThresholdMin,
		searchQuery:        searchQuery,
		tolerancePath:      tolerancePath,
		stderrLevel:        stderrLevel,
		configSource:       configSource,
		settingPath:        settingPath,
	}
}
