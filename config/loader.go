package config

import (
	"log/slog"
	"os"
)

// ConfigFile is the default name of the config file searched for in the
// working directory.
const ConfigFile = "wildsync.yaml"

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Defaults
// 2. Config file (explicit path, or wildsync.yaml in the working directory)
// 3. Environment variables (the CI secret names the pipelines have always used)
func (l *Loader) Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		if _, err := os.Stat(ConfigFile); err == nil {
			path = ConfigFile
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = fileConfig
		l.logger.Debug("Loaded config file", slog.String("path", path))
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv overlays environment variables onto the config. The variable names
// match the secret names injected by the original scheduled jobs, so a
// deployment can run entirely from the environment with no config file.
func (c *Config) applyEnv() {
	setFromEnv(&c.AGO.Username, "AGO_USER")
	setFromEnv(&c.AGO.Password, "AGO_PASS")
	setFromEnv(&c.AGO.PortalURL, "MAPHUB_URL")

	setFromEnv(&c.AGO.Items.BadgerSightings, "BADGER_SIGHTINGS_AGO_ITEM")
	setFromEnv(&c.AGO.Items.SimpcwSightings, "SIMPCW_BADGER_SIGHTINGS_AGO_ITEM")
	setFromEnv(&c.AGO.Items.Culvert, "BADGER_CULVERT_ITEM_ID")
	setFromEnv(&c.AGO.Items.CulvertRequest, "REQUEST_BADGER_DATA_ITEM_ID")
	setFromEnv(&c.AGO.Items.CameraCheck, "BADGER_CAM_CHECK_ID")
	setFromEnv(&c.AGO.Items.HairSnag, "HAIR_SNAG_ID")

	setFromEnv(&c.CHEFS.APIKey, "CHEFS_API_KEY")
	setFromEnv(&c.CHEFS.BaseURL, "CHEFS_BASE_URL")
	setFromEnv(&c.CHEFS.FormID, "CHEFS_FORM_ID")
	if v12, ok := os.LookupEnv("CHEFS_VERSION_ID_12"); ok {
		if v13, ok := os.LookupEnv("CHEFS_VERSION_ID_13"); ok {
			c.CHEFS.VersionIDs = []string{v12, v13}
		}
	}

	setFromEnv(&c.ObjectStore.AccessKey, "OBJ_STORE_USER")
	setFromEnv(&c.ObjectStore.SecretKey, "OBJ_STORE_API_KEY")
	setFromEnv(&c.ObjectStore.Host, "OBJ_STORE_HOST")
	setFromEnv(&c.ObjectStore.Bucket, "BADGER_S3_BUCKET")
}

func setFromEnv(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
