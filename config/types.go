package config

import "time"

type AppConfig struct {
	DBDriver   string        `yaml:"db_driver" env:"TRUTHLINK_DB_DRIVER" env-default:"sqlite"`
	DBPath     string        `yaml:"db_path" env:"TRUTHLINK_DB_PATH" env-default:"data/truthlink.db"`
	DBURL      string        `yaml:"db_url" env:"TRUTHLINK_DB_URL"`
	ListenAddr string        `yaml:"listen_addr" env:"TRUTHLINK_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"TRUTHLINK_SESSION_TTL" env-default:"12h"`
	AppEnv     string        `yaml:"app_env" env:"TRUTHLINK_APP_ENV"`
	CSRFKey    string        `yaml:"csrf_key" env:"TRUTHLINK_CSRF_KEY"`
	Pepper     string        `yaml:"pepper" env:"TRUTHLINK_PEPPER"`
	TLSEnabled bool          `yaml:"tls_enabled" env:"TRUTHLINK_TLS_ENABLED" env-default:"false"`
	TLSCert    string        `yaml:"tls_cert" env:"TRUTHLINK_TLS_CERT"`
	TLSKey     string        `yaml:"tls_key" env:"TRUTHLINK_TLS_KEY"`

	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Security  SecurityConfig  `yaml:"security"`
	Geocoding GeocodingConfig `yaml:"geocoding"`
	Evidence  EvidenceConfig  `yaml:"evidence"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

func (c *AppConfig) EffectiveSessionTTL() time.Duration {
	if c == nil || c.SessionTTL <= 0 {
		return 12 * time.Hour
	}
	return c.SessionTTL
}

// BootstrapConfig seeds the first investigator account. Password empty
// means a random one is generated and printed once at startup.
type BootstrapConfig struct {
	AdminUsername string `yaml:"admin_username" env:"TRUTHLINK_ADMIN_USERNAME" env-default:"admin"`
	AdminPassword string `yaml:"admin_password" env:"TRUTHLINK_ADMIN_PASSWORD"`
}

type SecurityConfig struct {
	TrustedProxies  []string `yaml:"trusted_proxies" env:"TRUTHLINK_SECURITY_TRUSTED_PROXIES" env-separator:","`
	LoginBurst      int      `yaml:"login_burst" env:"TRUTHLINK_SECURITY_LOGIN_BURST" env-default:"5"`
	SubmitBurst     int      `yaml:"submit_burst" env:"TRUTHLINK_SECURITY_SUBMIT_BURST" env-default:"10"`
	MaxUploadBytes  int64    `yaml:"max_upload_bytes" env:"TRUTHLINK_SECURITY_MAX_UPLOAD_BYTES" env-default:"10485760"`
	MaxPayloadBytes int64    `yaml:"max_payload_bytes" env:"TRUTHLINK_SECURITY_MAX_PAYLOAD_BYTES" env-default:"65536"`
}

type GeocodingConfig struct {
	BaseURL      string `yaml:"base_url" env:"TRUTHLINK_GEOCODING_BASE_URL" env-default:"https://api.maptiler.com/geocoding"`
	APIKey       string `yaml:"api_key" env:"TRUTHLINK_GEOCODING_API_KEY"`
	TimeoutSec   int    `yaml:"timeout_sec" env:"TRUTHLINK_GEOCODING_TIMEOUT" env-default:"2"`
	SuggestLimit int    `yaml:"suggest_limit" env:"TRUTHLINK_GEOCODING_SUGGEST_LIMIT" env-default:"5"`
}

// EvidenceConfig selects where uploaded evidence blobs live. The core
// only ever stores opaque references.
type EvidenceConfig struct {
	Provider string   `yaml:"provider" env:"TRUTHLINK_EVIDENCE_PROVIDER" env-default:"local"`
	LocalDir string   `yaml:"local_dir" env:"TRUTHLINK_EVIDENCE_LOCAL_DIR" env-default:"data/evidence"`
	S3       S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint        string `yaml:"endpoint" env:"TRUTHLINK_EVIDENCE_S3_ENDPOINT"`
	Region          string `yaml:"region" env:"TRUTHLINK_EVIDENCE_S3_REGION" env-default:"auto"`
	Bucket          string `yaml:"bucket" env:"TRUTHLINK_EVIDENCE_S3_BUCKET"`
	AccessKeyID     string `yaml:"access_key_id" env:"TRUTHLINK_EVIDENCE_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"TRUTHLINK_EVIDENCE_S3_SECRET_ACCESS_KEY"`
}

type MetricsConfig struct {
	Username string `yaml:"username" env:"TRUTHLINK_METRICS_USERNAME"`
	Password string `yaml:"password" env:"TRUTHLINK_METRICS_PASSWORD"`
}

type SchedulerConfig struct {
	Enabled          bool   `yaml:"enabled" env:"TRUTHLINK_SCHEDULER_ENABLED" env-default:"true"`
	SessionPurgeSpec string `yaml:"session_purge_spec" env:"TRUTHLINK_SCHEDULER_SESSION_PURGE_SPEC" env-default:"@every 10m"`
}
