// Package config loads engine configuration from setting.json and FLE_*
// environment variables (environment values override JSON values), fills
// whatever is still unset with defaults, and hands back an immutable
// config.AppConfig.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/agilenature/filelifecycle/internal/app/config"
)

// RawSettings mirrors setting.json. Pointer fields distinguish "absent"
// from "set to the zero value" across the merge.
type RawSettings struct {
	Home   *string `json:"home"`
	DBPath *string `json:"db_path"`

	RemoteBucket       *string  `json:"remote_bucket"`
	RemoteRegion       *string  `json:"remote_region"`
	RemoteEndpoint     *string  `json:"remote_endpoint"`
	RemoteRawPrefix    *string  `json:"remote_raw_prefix"`
	RemoteStorePrefix  *string  `json:"remote_store_prefix"`
	RemoteRateLimitRPS *float64 `json:"remote_rate_limit_rps"`

	Concurrency *int `json:"concurrency"`

	PollIntervalMS    *int `json:"poll_interval_ms"`
	PollSoftDeadlineS *int `json:"poll_soft_deadline_s"`
	PollHardDeadlineS *int `json:"poll_hard_deadline_s"`

	StuckThresholdMin *int    `json:"stuck_threshold_min"`
	SearchQuery       *string `json:"search_query"`
	TolerancePath     *string `json:"tolerance_path"`

	StderrLevel *string `json:"stderr_level"`
}

// LoadSettings loads configuration from multiple sources with the
// following priority: 1. setting.json (if present under baseDir),
// 2. FLE_* environment variables (override JSON), 3. defaults (fill
// whatever remains unset).
func LoadSettings(baseDir string) (*config.AppConfig, error) {
	settings := &RawSettings{}
	configSource := "default"
	settingPath := ""

	jsonPath := filepath.Join(baseDir, "setting.json")
	if data, err := os.ReadFile(jsonPath); err == nil {
		if err := json.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", jsonPath, err)
		}
		configSource = "json"
		settingPath = jsonPath
	}

	overrideFromEnv(settings, &configSource)
	applyDefaults(settings)

	return buildAppConfig(settings, configSource, settingPath), nil
}

func overrideFromEnv(settings *RawSettings, configSource *string) {
	setString := func(env string, dst **string) {
		if v := os.Getenv(env); v != "" {
			*dst = &v
			if *configSource == "default" {
				*configSource = "env"
			}
		}
	}
	setInt := func(env string, dst **int) {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = &n
				if *configSource == "default" {
					*configSource = "env"
				}
			}
		}
	}
	setFloat := func(env string, dst **float64) {
		if v := os.Getenv(env); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = &f
				if *configSource == "default" {
					*configSource = "env"
				}
			}
		}
	}

	setString("FLE_HOME", &settings.Home)
	setString("FLE_DB_PATH", &settings.DBPath)

	setString("FLE_REMOTE_BUCKET", &settings.RemoteBucket)
	setString("FLE_REMOTE_REGION", &settings.RemoteRegion)
	setString("FLE_REMOTE_ENDPOINT", &settings.RemoteEndpoint)
	setString("FLE_REMOTE_RAW_PREFIX", &settings.RemoteRawPrefix)
	setString("FLE_REMOTE_STORE_PREFIX", &settings.RemoteStorePrefix)
	setFloat("FLE_REMOTE_RATE_LIMIT_RPS", &settings.RemoteRateLimitRPS)

	setInt("FLE_CONCURRENCY", &settings.Concurrency)

	setInt("FLE_POLL_INTERVAL_MS", &settings.PollIntervalMS)
	setInt("FLE_POLL_SOFT_DEADLINE_S", &settings.PollSoftDeadlineS)
	setInt("FLE_POLL_HARD_DEADLINE_S", &settings.PollHardDeadlineS)

	setInt("FLE_VERIFY_STUCK_THRESHOLD_MIN", &settings.StuckThresholdMin)
	setString("FLE_VERIFY_SEARCH_QUERY", &settings.SearchQuery)
	setString("FLE_VERIFY_TOLERANCE_PATH", &settings.TolerancePath)

	setString("FLE_STDERR_LEVEL", &settings.StderrLevel)
}

func applyDefaults(s *RawSettings) {
	strDefault := func(dst **string, v string) {
		if *dst == nil {
			*dst = &v
		}
	}
	intDefault := func(dst **int, v int) {
		if *dst == nil {
			*dst = &v
		}
	}
	floatDefault := func(dst **float64, v float64) {
		if *dst == nil {
			*dst = &v
		}
	}

	strDefault(&s.Home, ".filelifecycle")
	strDefault(&s.DBPath, ".filelifecycle/fle.db")

	strDefault(&s.RemoteBucket, "")
	strDefault(&s.RemoteRegion, "us-east-1")
	strDefault(&s.RemoteEndpoint, "")
	strDefault(&s.RemoteRawPrefix, "raw/")
	strDefault(&s.RemoteStorePrefix, "store/")
	floatDefault(&s.RemoteRateLimitRPS, 5.0)

	intDefault(&s.Concurrency, 8)

	intDefault(&s.PollIntervalMS, 500)
	intDefault(&s.PollSoftDeadlineS, 30)
	intDefault(&s.PollHardDeadlineS, 300)

	intDefault(&s.StuckThresholdMin, 30)
	strDefault(&s.SearchQuery, "")
	strDefault(&s.TolerancePath, "")

	strDefault(&s.StderrLevel, "info")
}

func buildAppConfig(s *RawSettings, configSource, settingPath string) *config.AppConfig {
	return config.NewAppConfig(
		*s.Home,
		*s.DBPath,
		*s.RemoteBucket, *s.RemoteRegion, *s.RemoteEndpoint, *s.RemoteRawPrefix, *s.RemoteStorePrefix,
		*s.RemoteRateLimitRPS,
		*s.Concurrency,
		*s.PollIntervalMS, *s.PollSoftDeadlineS, *s.PollHardDeadlineS,
		*s.StuckThresholdMin,
		*s.SearchQuery, *s.TolerancePath,
		*s.StderrLevel,
		configSource, settingPath,
	)
}
