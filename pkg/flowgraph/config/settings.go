package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// EnvPrefix prefixes environment overrides, e.g. BRDFLOW_PIPELINE_CHUNK_SIZE.
const EnvPrefix = "BRDFLOW_"

// Settings is the resolved configuration for a generation run.
type Settings struct {
	LLM        LLMSettings
	Pipeline   PipelineSettings
	Checkpoint CheckpointSettings
	Telemetry  TelemetrySettings
	LogLevel   string `validate:"oneof=debug info warn error"`
}

// LLMSettings configures the text-generation backend.
type LLMSettings struct {
	BaseURL           string `validate:"omitempty,url"`
	Model             string `validate:"required"`
	APIKey            string
	AuthURL           string `validate:"omitempty,url"`
	ClientID          string `validate:"required_with=AuthURL"`
	ClientSecret      string `validate:"required_with=AuthURL"`
	Timeout           time.Duration `validate:"gt=0"`
	RequestsPerMinute int           `validate:"gte=0"`
}

// PipelineSettings configures the generation pipeline.
type PipelineSettings struct {
	ChunkSize          int `validate:"gt=0"`
	MaxChunks          int `validate:"gt=0"`
	GapLoopLimit       int `validate:"gte=0"`
	ReviewLoopLimit    int `validate:"gte=0"`
	SectionConcurrency int `validate:"gte=1"`
	OutputPath         string
}

// CheckpointSettings selects the checkpoint backend. SQLitePath wins over
// RedisAddr; with neither set checkpoints are kept in memory.
type CheckpointSettings struct {
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`
	TTL           time.Duration
}

// TelemetrySettings configures metrics and tracing export.
type TelemetrySettings struct {
	MetricsAddr string
	Trace       bool
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		LLM: LLMSettings{
			Model:   "gpt-5",
			Timeout: 60 * time.Second,
		},
		Pipeline: PipelineSettings{
			ChunkSize:          3000,
			MaxChunks:          40,
			GapLoopLimit:       3,
			ReviewLoopLimit:    5,
			SectionConcurrency: 1,
			OutputPath:         "brd_agent/brd_output.docx",
		},
		LogLevel: "info",
	}
}

// LoadSettings resolves settings from defaults, an optional YAML/JSON file,
// then the environment. getenv is usually os.Getenv.
func LoadSettings(path string, getenv func(string) string) (Settings, error) {
	cfg := New(nil)
	if path != "" {
		loaded, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		cfg = loaded
	}

	s := FromConfig(cfg)
	if getenv != nil {
		if err := s.applyEnv(getenv); err != nil {
			return Settings{}, err
		}
	}
	return s, nil
}

// FromConfig overlays cfg onto DefaultSettings.
//
// Recognized keys:
//
//	llm.{base_url,model,api_key,auth_url,client_id,client_secret,timeout,requests_per_minute}
//	pipeline.{chunk_size,max_chunks,gap_loop_limit,review_loop_limit,section_concurrency,output}
//	checkpoint.{sqlite,redis_addr,redis_password,redis_db,ttl}
//	telemetry.{metrics_addr,trace}
//	log_level
func FromConfig(cfg Config) Settings {
	s := DefaultSettings()

	llm := cfg.Sub("llm")
	s.LLM.BaseURL = llm.String("base_url", s.LLM.BaseURL)
	s.LLM.Model = llm.String("model", s.LLM.Model)
	s.LLM.APIKey = llm.String("api_key", s.LLM.APIKey)
	s.LLM.AuthURL = llm.String("auth_url", s.LLM.AuthURL)
	s.LLM.ClientID = llm.String("client_id", s.LLM.ClientID)
	s.LLM.ClientSecret = llm.String("client_secret", s.LLM.ClientSecret)
	s.LLM.Timeout = llm.Duration("timeout", s.LLM.Timeout)
	s.LLM.RequestsPerMinute = llm.Int("requests_per_minute", s.LLM.RequestsPerMinute)

	p := cfg.Sub("pipeline")
	s.Pipeline.ChunkSize = p.Int("chunk_size", s.Pipeline.ChunkSize)
	s.Pipeline.MaxChunks = p.Int("max_chunks", s.Pipeline.MaxChunks)
	s.Pipeline.GapLoopLimit = p.Int("gap_loop_limit", s.Pipeline.GapLoopLimit)
	s.Pipeline.ReviewLoopLimit = p.Int("review_loop_limit", s.Pipeline.ReviewLoopLimit)
	s.Pipeline.SectionConcurrency = p.Int("section_concurrency", s.Pipeline.SectionConcurrency)
	s.Pipeline.OutputPath = p.String("output", s.Pipeline.OutputPath)

	cp := cfg.Sub("checkpoint")
	s.Checkpoint.SQLitePath = cp.String("sqlite", s.Checkpoint.SQLitePath)
	s.Checkpoint.RedisAddr = cp.String("redis_addr", s.Checkpoint.RedisAddr)
	s.Checkpoint.RedisPassword = cp.String("redis_password", s.Checkpoint.RedisPassword)
	s.Checkpoint.RedisDB = cp.Int("redis_db", s.Checkpoint.RedisDB)
	s.Checkpoint.TTL = cp.Duration("ttl", s.Checkpoint.TTL)

	tel := cfg.Sub("telemetry")
	s.Telemetry.MetricsAddr = tel.String("metrics_addr", s.Telemetry.MetricsAddr)
	s.Telemetry.Trace = tel.Bool("trace", s.Telemetry.Trace)

	s.LogLevel = cfg.String("log_level", s.LogLevel)
	return s
}

// applyEnv overrides settings from the environment. The unprefixed LLM
// variables match what deployments of the generator already export.
func (s *Settings) applyEnv(getenv func(string) string) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	num := func(dst *int, key string) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str(&s.LLM.BaseURL, EnvPrefix+"LLM_BASE_URL", "LLM_BASE_URL")
	str(&s.LLM.Model, EnvPrefix+"LLM_MODEL", "LLM_MODEL", "MODEL_AS_A_SERVICE_MODEL")
	str(&s.LLM.APIKey, EnvPrefix+"LLM_API_KEY", "OPENAI_API_KEY")
	str(&s.LLM.AuthURL, EnvPrefix+"LLM_AUTH_URL", "LLM_AUTH_URL")
	str(&s.LLM.ClientID, EnvPrefix+"LLM_CLIENT_ID", "CLIENT_ID")
	str(&s.LLM.ClientSecret, EnvPrefix+"LLM_CLIENT_SECRET", "CLIENT_SECRET")
	str(&s.Checkpoint.SQLitePath, EnvPrefix+"CHECKPOINT_SQLITE")
	str(&s.Checkpoint.RedisAddr, EnvPrefix+"CHECKPOINT_REDIS_ADDR")
	str(&s.Checkpoint.RedisPassword, EnvPrefix+"CHECKPOINT_REDIS_PASSWORD")
	str(&s.Telemetry.MetricsAddr, EnvPrefix+"METRICS_ADDR")
	str(&s.LogLevel, EnvPrefix+"LOG_LEVEL")
	s.LogLevel = strings.ToLower(s.LogLevel)

	for key, dst := range map[string]*int{
		EnvPrefix + "PIPELINE_CHUNK_SIZE":          &s.Pipeline.ChunkSize,
		EnvPrefix + "PIPELINE_MAX_CHUNKS":          &s.Pipeline.MaxChunks,
		EnvPrefix + "PIPELINE_GAP_LOOP_LIMIT":      &s.Pipeline.GapLoopLimit,
		EnvPrefix + "PIPELINE_REVIEW_LOOP_LIMIT":   &s.Pipeline.ReviewLoopLimit,
		EnvPrefix + "PIPELINE_SECTION_CONCURRENCY": &s.Pipeline.SectionConcurrency,
	} {
		if err := num(dst, key); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks value ranges and required combinations.
func (s Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}
