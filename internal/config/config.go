package config

import (
	"time"
)

// Default configuration values.
const (
	defaultServiceName    = "intake"
	defaultServiceVersion = "1.0.0"
	defaultServicePort    = 8080
	defaultDBHost         = "localhost"
	defaultDBPort         = 5432
	defaultDBUser         = "postgres"
	defaultDBName         = "civicwatch"
	defaultDBSSLMode      = "disable"
	defaultDBMaxConns     = 25
	defaultDBMaxIdleConns = 5
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"

	defaultMLBaseURL = "http://localhost:5001"
	// The remote scorer regularly takes 8-17s per call; a shorter timeout
	// caused silent fallback to heuristics on healthy responses.
	defaultMLTimeout             = 35 * time.Second
	defaultSimilarityThreshold   = 0.7
	defaultDedupRadiusMeters     = 250.0
	defaultDedupWindow           = 72 * time.Hour
	defaultDedupCandidateLimit   = 5
	defaultDedupTextWeight       = 0.45
	defaultDedupDistanceWeight   = 0.20
	defaultDedupTimeWeight       = 0.20
	defaultDedupCategoryWeight   = 0.10
	defaultDedupReporterWeight   = 0.05
	defaultDedupMLBlend          = 0.9
	defaultDedupOtherMatchScore  = 0.3
	defaultHighConfidenceScore   = 0.55
	defaultToxicityThreshold     = 0.5
	defaultAutoFlagRiskThreshold = 0.75

	defaultConfidenceBase = 0.4
	defaultConfidenceStep = 0.1
	defaultConfidenceCap  = 0.95

	defaultRiskBaseLow          = 0.2
	defaultRiskBaseMedium       = 0.4
	defaultRiskBaseHigh         = 0.7
	defaultRiskBaseCritical     = 0.9
	defaultHighRiskKeywordStep  = 0.05
	defaultHighRiskKeywordCap   = 0.30
	defaultUrgencyKeywordStep   = 0.04
	defaultUrgencyKeywordCap    = 0.15
	defaultDuplicateStep        = 0.05
	defaultDuplicateCap         = 0.20
	defaultDangerousCategory    = 0.10
	defaultDeathTermBonus       = 0.04
	defaultDeEscalationStep     = 0.06
	defaultDeEscalationCap      = 0.12
	defaultSeverityCriticalFrom = 0.60
	defaultSeverityHighFrom     = 0.40
	defaultSeverityMediumFrom   = 0.25

	defaultReclassifyRatePerMin = 10
	defaultReclassifyBatchSize  = 200
)

// Config holds all configuration for the intake service.
type Config struct {
	Service        ServiceConfig        `yaml:"service"`
	Database       DatabaseConfig       `yaml:"database"`
	ML             MLConfig             `yaml:"ml"`
	Dedup          DedupConfig          `yaml:"dedup"`
	Classification ClassificationConfig `yaml:"classification"`
	Risk           RiskConfig           `yaml:"risk"`
	Toxicity       ToxicityConfig       `yaml:"toxicity"`
	Flagging       FlaggingConfig       `yaml:"flagging"`
	Reclassify     ReclassifyConfig     `yaml:"reclassify"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"INTAKE_PORT" yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"   yaml:"debug"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `env:"POSTGRES_HOST"     yaml:"host"`
	Port            int           `env:"POSTGRES_PORT"     yaml:"port"`
	User            string        `env:"POSTGRES_USER"     yaml:"user"`
	Password        string        `env:"POSTGRES_PASSWORD" yaml:"password"`
	Database        string        `env:"POSTGRES_DB"       yaml:"database"`
	SSLMode         string        `env:"POSTGRES_SSLMODE"  yaml:"sslmode"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxIdleConns    int           `yaml:"max_idle_connections"`
	ConnMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// MLConfig holds ML scorer adapter configuration.
type MLConfig struct {
	Enabled             bool          `env:"ML_ENABLED"     yaml:"enabled"`
	BaseURL             string        `env:"ML_SERVICE_URL" yaml:"base_url"`
	Timeout             time.Duration `env:"ML_TIMEOUT"     yaml:"timeout"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
}

// DedupConfig holds duplicate detection configuration. The weights and
// the high-confidence threshold are design defaults without empirical
// calibration; tune them against moderator verdicts.
type DedupConfig struct {
	RadiusMeters    float64       `yaml:"radius_meters"`
	Window          time.Duration `yaml:"window"`
	CandidateLimit  int           `yaml:"candidate_limit"`
	TextWeight      float64       `yaml:"text_weight"`
	DistanceWeight  float64       `yaml:"distance_weight"`
	TimeWeight      float64       `yaml:"time_weight"`
	CategoryWeight  float64       `yaml:"category_weight"`
	ReporterWeight  float64       `yaml:"reporter_weight"`
	MLBlendWeight   float64       `yaml:"ml_blend_weight"`
	OtherMatchScore float64       `yaml:"other_match_score"`
	HighConfidence  float64       `yaml:"high_confidence"`
}

// ClassificationConfig holds heuristic category prediction settings.
// Disabled flags invert so the zero value keeps the scorer on.
type ClassificationConfig struct {
	Disabled       bool    `yaml:"disabled"`
	ConfidenceBase float64 `yaml:"confidence_base"`
	ConfidenceStep float64 `yaml:"confidence_step"`
	ConfidenceCap  float64 `yaml:"confidence_cap"`
}

// RiskConfig holds risk scoring settings. Every additive term is named
// here so the formula can be tuned without a code change.
type RiskConfig struct {
	Disabled             bool    `yaml:"disabled"`
	BaseLow              float64 `yaml:"base_low"`
	BaseMedium           float64 `yaml:"base_medium"`
	BaseHigh             float64 `yaml:"base_high"`
	BaseCritical         float64 `yaml:"base_critical"`
	HighRiskKeywordStep  float64 `yaml:"high_risk_keyword_step"`
	HighRiskKeywordCap   float64 `yaml:"high_risk_keyword_cap"`
	UrgencyKeywordStep   float64 `yaml:"urgency_keyword_step"`
	UrgencyKeywordCap    float64 `yaml:"urgency_keyword_cap"`
	DuplicateStep        float64 `yaml:"duplicate_step"`
	DuplicateCap         float64 `yaml:"duplicate_cap"`
	DangerousCategory    float64 `yaml:"dangerous_category_bonus"`
	DeathTermBonus       float64 `yaml:"death_term_bonus"`
	DeEscalationStep     float64 `yaml:"deescalation_step"`
	DeEscalationCap      float64 `yaml:"deescalation_cap"`
	SeverityCriticalFrom float64 `yaml:"severity_critical_from"`
	SeverityHighFrom     float64 `yaml:"severity_high_from"`
	SeverityMediumFrom   float64 `yaml:"severity_medium_from"`
}

// ToxicityConfig holds toxicity assessment settings.
type ToxicityConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// FlaggingConfig holds auto-flag settings.
type FlaggingConfig struct {
	AutoFlagRiskThreshold float64 `yaml:"auto_flag_risk_threshold"`
}

// ReclassifyConfig holds settings for the offline reclassify batch job.
type ReclassifyConfig struct {
	RatePerMinute int `yaml:"rate_per_minute"`
	BatchSize     int `yaml:"batch_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
	Output string `yaml:"output"`
}

// LoadConfig loads configuration from the specified path.
func LoadConfig(path string) (*Config, error) {
	return LoadWithDefaults[Config](path, setDefaults)
}

// Default returns a config populated entirely with defaults.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setMLDefaults(&cfg.ML)
	setDedupDefaults(&cfg.Dedup)
	setClassificationDefaults(&cfg.Classification)
	setRiskDefaults(&cfg.Risk)
	setToxicityDefaults(&cfg.Toxicity)
	setFlaggingDefaults(&cfg.Flagging)
	setReclassifyDefaults(&cfg.Reclassify)
	setLoggingDefaults(&cfg.Logging)
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == 0 {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.Database == "" {
		d.Database = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = time.Hour
	}
}

func setMLDefaults(m *MLConfig) {
	if m.BaseURL == "" {
		m.BaseURL = defaultMLBaseURL
	}
	if m.Timeout == 0 {
		m.Timeout = defaultMLTimeout
	}
	if m.SimilarityThreshold == 0 {
		m.SimilarityThreshold = defaultSimilarityThreshold
	}
}

func setDedupDefaults(d *DedupConfig) {
	if d.RadiusMeters == 0 {
		d.RadiusMeters = defaultDedupRadiusMeters
	}
	if d.Window == 0 {
		d.Window = defaultDedupWindow
	}
	if d.CandidateLimit == 0 {
		d.CandidateLimit = defaultDedupCandidateLimit
	}
	if d.TextWeight == 0 {
		d.TextWeight = defaultDedupTextWeight
	}
	if d.DistanceWeight == 0 {
		d.DistanceWeight = defaultDedupDistanceWeight
	}
	if d.TimeWeight == 0 {
		d.TimeWeight = defaultDedupTimeWeight
	}
	if d.CategoryWeight == 0 {
		d.CategoryWeight = defaultDedupCategoryWeight
	}
	if d.ReporterWeight == 0 {
		d.ReporterWeight = defaultDedupReporterWeight
	}
	if d.MLBlendWeight == 0 {
		d.MLBlendWeight = defaultDedupMLBlend
	}
	if d.OtherMatchScore == 0 {
		d.OtherMatchScore = defaultDedupOtherMatchScore
	}
	if d.HighConfidence == 0 {
		d.HighConfidence = defaultHighConfidenceScore
	}
}

func setClassificationDefaults(c *ClassificationConfig) {
	if c.ConfidenceBase == 0 {
		c.ConfidenceBase = defaultConfidenceBase
	}
	if c.ConfidenceStep == 0 {
		c.ConfidenceStep = defaultConfidenceStep
	}
	if c.ConfidenceCap == 0 {
		c.ConfidenceCap = defaultConfidenceCap
	}
}

func setRiskDefaults(r *RiskConfig) {
	if r.BaseLow == 0 {
		r.BaseLow = defaultRiskBaseLow
	}
	if r.BaseMedium == 0 {
		r.BaseMedium = defaultRiskBaseMedium
	}
	if r.BaseHigh == 0 {
		r.BaseHigh = defaultRiskBaseHigh
	}
	if r.BaseCritical == 0 {
		r.BaseCritical = defaultRiskBaseCritical
	}
	if r.HighRiskKeywordStep == 0 {
		r.HighRiskKeywordStep = defaultHighRiskKeywordStep
	}
	if r.HighRiskKeywordCap == 0 {
		r.HighRiskKeywordCap = defaultHighRiskKeywordCap
	}
	if r.UrgencyKeywordStep == 0 {
		r.UrgencyKeywordStep = defaultUrgencyKeywordStep
	}
	if r.UrgencyKeywordCap == 0 {
		r.UrgencyKeywordCap = defaultUrgencyKeywordCap
	}
	if r.DuplicateStep == 0 {
		r.DuplicateStep = defaultDuplicateStep
	}
	if r.DuplicateCap == 0 {
		r.DuplicateCap = defaultDuplicateCap
	}
	if r.DangerousCategory == 0 {
		r.DangerousCategory = defaultDangerousCategory
	}
	if r.DeathTermBonus == 0 {
		r.DeathTermBonus = defaultDeathTermBonus
	}
	if r.DeEscalationStep == 0 {
		r.DeEscalationStep = defaultDeEscalationStep
	}
	if r.DeEscalationCap == 0 {
		r.DeEscalationCap = defaultDeEscalationCap
	}
	if r.SeverityCriticalFrom == 0 {
		r.SeverityCriticalFrom = defaultSeverityCriticalFrom
	}
	if r.SeverityHighFrom == 0 {
		r.SeverityHighFrom = defaultSeverityHighFrom
	}
	if r.SeverityMediumFrom == 0 {
		r.SeverityMediumFrom = defaultSeverityMediumFrom
	}
}

func setToxicityDefaults(t *ToxicityConfig) {
	if t.Threshold == 0 {
		t.Threshold = defaultToxicityThreshold
	}
}

func setFlaggingDefaults(f *FlaggingConfig) {
	if f.AutoFlagRiskThreshold == 0 {
		f.AutoFlagRiskThreshold = defaultAutoFlagRiskThreshold
	}
}

func setReclassifyDefaults(r *ReclassifyConfig) {
	if r.RatePerMinute == 0 {
		r.RatePerMinute = defaultReclassifyRatePerMin
	}
	if r.BatchSize == 0 {
		r.BatchSize = defaultReclassifyBatchSize
	}
}

func setLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
	if l.Format == "" {
		l.Format = defaultLogFormat
	}
}
