// Package config provides configuration loading and management for wildsync.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete wildsync configuration.
type Config struct {
	AGO         AGOConfig         `yaml:"ago"`
	CHEFS       CHEFSConfig       `yaml:"chefs"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Mail        MailConfig        `yaml:"mail"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// AGOConfig configures the ArcGIS Online connection and the feature layer
// items the pipelines operate on.
type AGOConfig struct {
	// PortalURL is the MapHub portal URL (env: MAPHUB_URL)
	PortalURL string `yaml:"portal_url"`
	// Username is the AGO account (env: AGO_USER)
	Username string `yaml:"username"`
	// Password is the AGO account password (env: AGO_PASS)
	Password string `yaml:"password"`
	// TokenExpiry is the requested lifetime of generated tokens
	TokenExpiry time.Duration `yaml:"token_expiry"`

	Items AGOItems `yaml:"items"`
}

// AGOItems names the AGO item IDs used by the pipelines. Each pipeline
// validates the IDs it needs at run time.
type AGOItems struct {
	// BadgerSightings is the Survey123 badger sightings layer (env: BADGER_SIGHTINGS_AGO_ITEM)
	BadgerSightings string `yaml:"badger_sightings"`
	// SimpcwSightings is the Simpcw-filtered sightings view (env: SIMPCW_BADGER_SIGHTINGS_AGO_ITEM)
	SimpcwSightings string `yaml:"simpcw_sightings"`
	// SightingsEditing is the editing copy of the sightings layer
	SightingsEditing string `yaml:"sightings_editing"`
	// SightingsRaw is the raw submissions layer feeding the editing copy
	SightingsRaw string `yaml:"sightings_raw"`
	// Culvert is the culvert location layer with its assessment table (env: BADGER_CULVERT_ITEM_ID)
	Culvert string `yaml:"culvert"`
	// CulvertRequest is the data-request survey layer (env: REQUEST_BADGER_DATA_ITEM_ID)
	CulvertRequest string `yaml:"culvert_request"`
	// CameraCheck is the camera point layer with its check table (env: BADGER_CAM_CHECK_ID)
	CameraCheck string `yaml:"camera_check"`
	// HairSnag is the fisher hair snag cubby layer (env: HAIR_SNAG_ID)
	HairSnag string `yaml:"hair_snag"`
}

// CHEFSConfig configures access to the CHEFS form submission API.
type CHEFSConfig struct {
	// BaseURL is the forms API root (env: CHEFS_BASE_URL)
	BaseURL string `yaml:"base_url"`
	// FormID identifies the badger sightings form (env: CHEFS_FORM_ID)
	FormID string `yaml:"form_id"`
	// APIKey authenticates as the form (env: CHEFS_API_KEY)
	APIKey string `yaml:"api_key"`
	// VersionIDs are the published form versions to export, newest last
	// (env: CHEFS_VERSION_ID_12, CHEFS_VERSION_ID_13)
	VersionIDs []string `yaml:"version_ids"`
	// Fields restricts the export to the named submission fields
	Fields []string `yaml:"fields"`
}

// ObjectStoreConfig configures the S3-compatible object store.
type ObjectStoreConfig struct {
	// Host is the object store endpoint without scheme (env: OBJ_STORE_HOST)
	Host string `yaml:"host"`
	// AccessKey is the access key ID (env: OBJ_STORE_USER)
	AccessKey string `yaml:"access_key"`
	// SecretKey is the secret access key (env: OBJ_STORE_API_KEY)
	SecretKey string `yaml:"secret_key"`
	// Secure toggles TLS
	Secure bool `yaml:"secure"`
	// Bucket is the wildlife data bucket (env: BADGER_S3_BUCKET)
	Bucket string `yaml:"bucket"`
	// PhotoPrefix is where sighting photos are archived
	PhotoPrefix string `yaml:"photo_prefix"`
	// BackupPrefix is where GeoJSON layer backups are written
	BackupPrefix string `yaml:"backup_prefix"`
	// BackupRetentionDays is how long layer backups are kept
	BackupRetentionDays int `yaml:"backup_retention_days"`
}

// MailMode selects the mail delivery backend.
type MailMode string

const (
	MailModeSMTP MailMode = "smtp"
	MailModeSES  MailMode = "ses"
)

// MailConfig configures outbound notification email.
type MailConfig struct {
	// Mode selects smtp or ses delivery
	Mode MailMode `yaml:"mode"`
	// From is the sender address on all notifications
	From string `yaml:"from"`
	// AdminAddress receives fallback error notifications
	AdminAddress string `yaml:"admin_address"`
	// SMTPHost is the relay host[:port] for smtp mode
	SMTPHost string `yaml:"smtp_host"`
	// SES configures ses mode
	SES SESConfig `yaml:"ses"`
}

// SESConfig holds AWS SES credentials for ses mail mode.
type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// ScheduleConfig maps pipeline names to cron expressions for scheduled mode.
type ScheduleConfig struct {
	// Entries maps a registered pipeline name to a cron spec
	Entries map[string]string `yaml:"entries"`
}

// MetricsConfig configures metric publication for batch runs.
type MetricsConfig struct {
	// PushgatewayURL enables pushing run metrics when non-empty
	PushgatewayURL string `yaml:"pushgateway_url"`
	// JobName is the pushgateway job label
	JobName string `yaml:"job_name"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		AGO: AGOConfig{
			PortalURL:   "https://governmentofbc.maps.arcgis.com",
			TokenExpiry: 2 * time.Hour,
		},
		CHEFS: CHEFSConfig{
			BaseURL: "https://submit.digital.gov.bc.ca/app/api/v1/forms",
			Fields:  defaultCHEFSFields(),
		},
		ObjectStore: ObjectStoreConfig{
			Secure:              true,
			Bucket:              "bmrm",
			PhotoPrefix:         "badger_sightings_photos",
			BackupPrefix:        "backup_data",
			BackupRetentionDays: 30,
		},
		Mail: MailConfig{
			Mode:     MailModeSMTP,
			SMTPHost: "apps.smtp.gov.bc.ca:25",
		},
		Schedule: ScheduleConfig{
			Entries: map[string]string{},
		},
		Metrics: MetricsConfig{
			JobName: "wildsync",
		},
	}
}

// defaultCHEFSFields lists the badger sighting submission fields requested
// from the CHEFS export endpoint.
func defaultCHEFSFields() []string {
	return []string{
		"confirmationId", "createdAt", "first_name", "last_name", "email",
		"sighting_date", "sighting_type", "sighting_type_other",
		"number_badgers", "badger_status", "in_conflict", "road_location",
		"obs_type", "family_at_burrow", "location_type", "ground_squirrels",
		"additional_info", "upload_image", "image_permission", "unique_id",
		"sighting_location", "latitude", "longitude", "point_accuracy",
		"referral_source", "social_media_source", "referral_source_other",
	}
}

// Validate checks that the configuration is internally consistent. Pipelines
// validate their own item IDs; only globally required settings are checked
// here.
func (c *Config) Validate() error {
	if c.AGO.PortalURL == "" {
		return fmt.Errorf("ago.portal_url is required")
	}
	if c.AGO.TokenExpiry <= 0 {
		return fmt.Errorf("ago.token_expiry must be positive")
	}
	if c.ObjectStore.BackupRetentionDays < 0 {
		return fmt.Errorf("object_store.backup_retention_days must not be negative")
	}
	switch c.Mail.Mode {
	case MailModeSMTP, MailModeSES:
	default:
		return fmt.Errorf("mail.mode must be %q or %q, got %q", MailModeSMTP, MailModeSES, c.Mail.Mode)
	}
	if c.Mail.Mode == MailModeSMTP && c.Mail.SMTPHost == "" {
		return fmt.Errorf("mail.smtp_host is required in smtp mode")
	}
	if c.Mail.Mode == MailModeSES && c.Mail.SES.Region == "" {
		return fmt.Errorf("mail.ses.region is required in ses mode")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}
