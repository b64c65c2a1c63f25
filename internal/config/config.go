// Package config loads and validates the cloudback configuration file. The
// rest of the program only ever sees the typed, validated Config.
package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"gopkg.in/ini.v1"
)

// Backend selects which object-store implementation ships the archives.
type Backend string

const (
	BackendRclone Backend = "rclone"
	BackendS3     Backend = "s3"
)

// TrackedObject is one local file configured for periodic backup. It is
// encoded in the config as one "path;intervalDays;remoteFolder" line.
type TrackedObject struct {
	LocalPath    string
	IntervalDays int
	RemoteFolder string
}

// Telegram holds the operator-alert credentials. Both fields empty means
// alerting is disabled.
type Telegram struct {
	BotToken string
	ChatID   string
}

func (t Telegram) Configured() bool {
	return t.BotToken != "" && t.ChatID != ""
}

type S3Config struct {
	Bucket           string
	Region           string
	Prefix           string
	Endpoint         string
	StorageClass     types.StorageClass
	MaxRetryAttempts int
}

type Config struct {
	Backend  Backend
	Remote   string // rclone remote name
	BaseDir  string
	Encrypt  string // optional age public key for artifact encryption
	Telegram Telegram
	S3       S3Config
	Objects  []TrackedObject
}

// Load reads an INI config file into a validated Config.
func Load(filename string) (*Config, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		UnparseableSections: []string{"backup"},
	}, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cloud := file.Section("cloud")
	cfg := &Config{
		Backend: Backend(cloud.Key("backend").MustString(string(BackendRclone))),
		Remote:  cloud.Key("remote").String(),
		BaseDir: cloud.Key("base_dir").String(),
		Encrypt: cloud.Key("encrypt").String(),
	}

	cfg.Telegram, err = parseTelegram(cloud.Key("telegram").String())
	if err != nil {
		return nil, err
	}

	s3 := file.Section("s3")
	cfg.S3 = S3Config{
		Bucket:           s3.Key("bucket").String(),
		Region:           s3.Key("region").String(),
		Prefix:           s3.Key("prefix").String(),
		Endpoint:         s3.Key("endpoint").String(),
		StorageClass:     types.StorageClass(s3.Key("storage_class").String()),
		MaxRetryAttempts: s3.Key("max_retry_attempts").MustInt(0),
	}

	cfg.Objects, err = parseObjects(file.Section("backup").Body())
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// parseTelegram splits "token:chatId" credentials at the last colon, since
// bot tokens themselves contain a colon.
func parseTelegram(raw string) (Telegram, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Telegram{}, nil
	}

	i := strings.LastIndex(raw, ":")
	if i <= 0 || i == len(raw)-1 {
		return Telegram{}, fmt.Errorf("telegram credentials must be in token:chatId form")
	}
	return Telegram{BotToken: raw[:i], ChatID: raw[i+1:]}, nil
}

// parseObjects reads the raw [backup] section body, one tracked object per
// line.
func parseObjects(body string) ([]TrackedObject, error) {
	var objects []TrackedObject
	for n, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		fields := strings.Split(line, ";")
		if len(fields) != 3 {
			return nil, fmt.Errorf("backup line %d: expected path;intervalDays;remoteFolder, got %q", n+1, line)
		}

		interval, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("backup line %d: interval days: %w", n+1, err)
		}

		objects = append(objects, TrackedObject{
			LocalPath:    strings.TrimSpace(fields[0]),
			IntervalDays: interval,
			RemoteFolder: strings.TrimSpace(fields[2]),
		})
	}
	return objects, nil
}

func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir is required")
	}
	switch c.Backend {
	case BackendRclone:
		if c.Remote == "" {
			return fmt.Errorf("remote is required for the rclone backend")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required for the s3 backend")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("s3.region is required for the s3 backend")
		}
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendRclone, BackendS3, c.Backend)
	}
	if c.Encrypt != "" && !strings.HasPrefix(c.Encrypt, "age1") {
		return fmt.Errorf("encrypt must be an age public key starting with 'age1'")
	}
	if len(c.Objects) == 0 {
		return fmt.Errorf("at least one tracked object is required")
	}
	for i, obj := range c.Objects {
		if obj.LocalPath == "" {
			return fmt.Errorf("backup[%d].path is required", i)
		}
		if obj.IntervalDays < 0 {
			return fmt.Errorf("backup[%d].intervalDays must be non-negative", i)
		}
		if obj.RemoteFolder == "" {
			return fmt.Errorf("backup[%d].remoteFolder is required", i)
		}
	}
	return nil
}

// StateDir holds one last-run file per tracked object, plus the run lock.
func (c *Config) StateDir() string {
	return filepath.Join(c.BaseDir, "state")
}

// ScratchDir holds archive artifacts for the duration of one run.
func (c *Config) ScratchDir() string {
	return filepath.Join(c.BaseDir, "scratch")
}

func (c *Config) LogDir() string {
	return filepath.Join(c.BaseDir, "logs")
}

func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir(), "cloudback.lock")
}

func (c *Config) S3RetryAttempts() int {
	if c.S3.MaxRetryAttempts > 0 {
		return c.S3.MaxRetryAttempts
	}
	return 3
}
