package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cloudback.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRcloneConfig(t *testing.T) {
	path := writeConfig(t, `
[cloud]
remote = gdrive
base_dir = /var/lib/cloudback
telegram = 123456:AAtoken-part:987654
encrypt = age1ql3z7hjy54pw3hyww5ayyfg7zqgvc7w3j2elw8zmrj2kg5sfn9aqmcac8p

[backup]
# comment lines and blanks are skipped
/var/lib/app/app.db;7;Backups/App

/etc/gitea/gitea.db;1;Backups/Gitea
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendRclone, cfg.Backend)
	assert.Equal(t, "gdrive", cfg.Remote)
	assert.Equal(t, "/var/lib/cloudback", cfg.BaseDir)
	assert.Equal(t, "123456:AAtoken-part", cfg.Telegram.BotToken)
	assert.Equal(t, "987654", cfg.Telegram.ChatID)
	assert.True(t, cfg.Telegram.Configured())

	require.Len(t, cfg.Objects, 2)
	assert.Equal(t, TrackedObject{
		LocalPath:    "/var/lib/app/app.db",
		IntervalDays: 7,
		RemoteFolder: "Backups/App",
	}, cfg.Objects[0])
	assert.Equal(t, TrackedObject{
		LocalPath:    "/etc/gitea/gitea.db",
		IntervalDays: 1,
		RemoteFolder: "Backups/Gitea",
	}, cfg.Objects[1])
}

func TestLoadS3Config(t *testing.T) {
	path := writeConfig(t, `
[cloud]
backend = s3
base_dir = /var/lib/cloudback

[s3]
bucket = my-backups
region = us-east-1
prefix = cloudback
endpoint = http://localhost:9000
storage_class = STANDARD_IA
max_retry_attempts = 5

[backup]
/var/lib/app/app.db;7;Backups/App
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendS3, cfg.Backend)
	assert.Equal(t, "my-backups", cfg.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
	assert.Equal(t, "cloudback", cfg.S3.Prefix)
	assert.Equal(t, "http://localhost:9000", cfg.S3.Endpoint)
	assert.Equal(t, "STANDARD_IA", string(cfg.S3.StorageClass))
	assert.Equal(t, 5, cfg.S3RetryAttempts())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.ini"))
	assert.Error(t, err)
}

func TestLoadAlertingOptional(t *testing.T) {
	path := writeConfig(t, `
[cloud]
remote = gdrive
base_dir = /var/lib/cloudback

[backup]
/var/lib/app/app.db;7;Backups/App
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Telegram.Configured())
}

func TestParseTelegram(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Telegram
		wantErr bool
	}{
		{
			name: "token with embedded colon splits at the last colon",
			raw:  "123456:AAbot-token:-100987",
			want: Telegram{BotToken: "123456:AAbot-token", ChatID: "-100987"},
		},
		{
			name: "plain token:chatId",
			raw:  "token:42",
			want: Telegram{BotToken: "token", ChatID: "42"},
		},
		{
			name: "empty disables alerting",
			raw:  "",
			want: Telegram{},
		},
		{
			name:    "no colon",
			raw:     "justatoken",
			wantErr: true,
		},
		{
			name:    "missing chat id",
			raw:     "token:",
			wantErr: true,
		},
		{
			name:    "missing token",
			raw:     ":42",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTelegram(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseObjectsErrors(t *testing.T) {
	t.Run("wrong field count", func(t *testing.T) {
		_, err := parseObjects("/var/lib/app.db;7")
		assert.ErrorContains(t, err, "backup line 1")
	})

	t.Run("interval not a number", func(t *testing.T) {
		_, err := parseObjects("/var/lib/app.db;weekly;Backups/App")
		assert.ErrorContains(t, err, "interval days")
	})

	t.Run("error reports the right line", func(t *testing.T) {
		_, err := parseObjects("/ok.db;1;Backups/A\nbroken line")
		assert.ErrorContains(t, err, "backup line 2")
	})
}

func TestValidate(t *testing.T) {
	validConfig := func() *Config {
		return &Config{
			Backend: BackendRclone,
			Remote:  "gdrive",
			BaseDir: "/var/lib/cloudback",
			Objects: []TrackedObject{
				{LocalPath: "/var/lib/app.db", IntervalDays: 7, RemoteFolder: "Backups/App"},
			},
		}
	}

	t.Run("valid rclone config", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("valid s3 config", func(t *testing.T) {
		cfg := validConfig()
		cfg.Backend = BackendS3
		cfg.Remote = ""
		cfg.S3 = S3Config{Bucket: "b", Region: "us-east-1"}
		require.NoError(t, cfg.Validate())
	})

	t.Run("empty base_dir", func(t *testing.T) {
		cfg := validConfig()
		cfg.BaseDir = ""
		assert.ErrorContains(t, cfg.Validate(), "base_dir is required")
	})

	t.Run("rclone backend without remote", func(t *testing.T) {
		cfg := validConfig()
		cfg.Remote = ""
		assert.ErrorContains(t, cfg.Validate(), "remote is required")
	})

	t.Run("s3 backend without bucket", func(t *testing.T) {
		cfg := validConfig()
		cfg.Backend = BackendS3
		cfg.S3 = S3Config{Region: "us-east-1"}
		assert.ErrorContains(t, cfg.Validate(), "s3.bucket is required")
	})

	t.Run("s3 backend without region", func(t *testing.T) {
		cfg := validConfig()
		cfg.Backend = BackendS3
		cfg.S3 = S3Config{Bucket: "b"}
		assert.ErrorContains(t, cfg.Validate(), "s3.region is required")
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := validConfig()
		cfg.Backend = "ftp"
		assert.ErrorContains(t, cfg.Validate(), "backend must be")
	})

	t.Run("invalid encrypt key prefix", func(t *testing.T) {
		cfg := validConfig()
		cfg.Encrypt = "ssh-rsa AAAA"
		assert.ErrorContains(t, cfg.Validate(), "age public key")
	})

	t.Run("no tracked objects", func(t *testing.T) {
		cfg := validConfig()
		cfg.Objects = nil
		assert.ErrorContains(t, cfg.Validate(), "at least one tracked object")
	})

	t.Run("object missing path", func(t *testing.T) {
		cfg := validConfig()
		cfg.Objects = append(cfg.Objects, TrackedObject{IntervalDays: 1, RemoteFolder: "X"})
		assert.ErrorContains(t, cfg.Validate(), "backup[1].path is required")
	})

	t.Run("object with negative interval", func(t *testing.T) {
		cfg := validConfig()
		cfg.Objects[0].IntervalDays = -1
		assert.ErrorContains(t, cfg.Validate(), "backup[0].intervalDays")
	})

	t.Run("object missing remote folder", func(t *testing.T) {
		cfg := validConfig()
		cfg.Objects[0].RemoteFolder = ""
		assert.ErrorContains(t, cfg.Validate(), "backup[0].remoteFolder is required")
	})
}

func TestDerivedDirs(t *testing.T) {
	cfg := &Config{BaseDir: "/var/lib/cloudback"}

	assert.Equal(t, "/var/lib/cloudback/state", cfg.StateDir())
	assert.Equal(t, "/var/lib/cloudback/scratch", cfg.ScratchDir())
	assert.Equal(t, "/var/lib/cloudback/logs", cfg.LogDir())
	assert.Equal(t, "/var/lib/cloudback/state/cloudback.lock", cfg.LockPath())
}

func TestS3RetryAttempts(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 3, cfg.S3RetryAttempts())

	cfg.S3.MaxRetryAttempts = 7
	assert.Equal(t, 7, cfg.S3RetryAttempts())
}
