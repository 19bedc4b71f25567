package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ObjectStore.Bucket != "bmrm" {
		t.Errorf("expected default bucket bmrm, got %s", cfg.ObjectStore.Bucket)
	}
	if cfg.ObjectStore.BackupRetentionDays != 30 {
		t.Errorf("expected 30 day backup retention, got %d", cfg.ObjectStore.BackupRetentionDays)
	}
	if cfg.Mail.Mode != MailModeSMTP {
		t.Errorf("expected smtp mail mode by default, got %s", cfg.Mail.Mode)
	}
	if len(cfg.CHEFS.Fields) == 0 {
		t.Error("expected default CHEFS export fields")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing portal url",
			modify:  func(c *Config) { c.AGO.PortalURL = "" },
			wantErr: true,
		},
		{
			name:    "zero token expiry",
			modify:  func(c *Config) { c.AGO.TokenExpiry = 0 },
			wantErr: true,
		},
		{
			name:    "negative retention",
			modify:  func(c *Config) { c.ObjectStore.BackupRetentionDays = -1 },
			wantErr: true,
		},
		{
			name:    "unknown mail mode",
			modify:  func(c *Config) { c.Mail.Mode = "pigeon" },
			wantErr: true,
		},
		{
			name:    "smtp mode without host",
			modify:  func(c *Config) { c.Mail.SMTPHost = "" },
			wantErr: true,
		},
		{
			name: "ses mode without region",
			modify: func(c *Config) {
				c.Mail.Mode = MailModeSES
				c.Mail.SES.Region = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "wildsync.yaml")

	content := `
ago:
  portal_url: "https://maps.example.test"
  username: "svc-wildlife"
  items:
    badger_sightings: "abc123"
object_store:
  host: "objects.example.test"
  bucket: "wildlife"
schedule:
  entries:
    badger-backup: "0 6 * * *"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.AGO.PortalURL != "https://maps.example.test" {
		t.Errorf("portal_url = %s", cfg.AGO.PortalURL)
	}
	if cfg.AGO.Items.BadgerSightings != "abc123" {
		t.Errorf("badger_sightings item = %s", cfg.AGO.Items.BadgerSightings)
	}
	if cfg.ObjectStore.Bucket != "wildlife" {
		t.Errorf("bucket = %s", cfg.ObjectStore.Bucket)
	}
	// file values overlay defaults without clearing them
	if cfg.ObjectStore.PhotoPrefix != "badger_sightings_photos" {
		t.Errorf("photo_prefix default lost: %s", cfg.ObjectStore.PhotoPrefix)
	}
	if cfg.Schedule.Entries["badger-backup"] != "0 6 * * *" {
		t.Errorf("schedule entry = %s", cfg.Schedule.Entries["badger-backup"])
	}
}

func TestLoaderEnvOverlay(t *testing.T) {
	t.Setenv("AGO_USER", "env-user")
	t.Setenv("AGO_PASS", "env-pass")
	t.Setenv("OBJ_STORE_HOST", "objects.env.test")
	t.Setenv("BADGER_S3_BUCKET", "env-bucket")
	t.Setenv("CHEFS_VERSION_ID_12", "v12")
	t.Setenv("CHEFS_VERSION_ID_13", "v13")

	loader := NewLoader(slog.Default())
	cfg, err := loader.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AGO.Username != "env-user" {
		t.Errorf("username = %s", cfg.AGO.Username)
	}
	if cfg.ObjectStore.Host != "objects.env.test" {
		t.Errorf("host = %s", cfg.ObjectStore.Host)
	}
	if cfg.ObjectStore.Bucket != "env-bucket" {
		t.Errorf("bucket = %s", cfg.ObjectStore.Bucket)
	}
	if len(cfg.CHEFS.VersionIDs) != 2 || cfg.CHEFS.VersionIDs[0] != "v12" {
		t.Errorf("version ids = %v", cfg.CHEFS.VersionIDs)
	}
}
