/*
Package config loads run configuration from YAML or JSON files and the
environment.

# Typed Access

Config wraps a decoded document and returns defaults for missing keys or
mismatched types. Keys may be dotted paths into nested sections:

	cfg, err := config.FromFile("brdflow.yaml")
	if err != nil {
	    return err
	}
	model := cfg.String("llm.model", "gpt-5")
	limit := cfg.Int("pipeline.gap_loop_limit", 3)
	llm := cfg.Sub("llm")

Duration accepts Go duration strings ("90s") or numbers of seconds.
Int accepts whole floats, since JSON numbers decode as float64.

# Settings

LoadSettings resolves the generator's settings in order: DefaultSettings,
the optional file, then environment variables. BRDFLOW_* variables win over
the plain OPENAI_API_KEY, LLM_BASE_URL, LLM_MODEL, MODEL_AS_A_SERVICE_MODEL,
LLM_AUTH_URL, CLIENT_ID and CLIENT_SECRET. Command-line flags are applied by
the caller.

	s, err := config.LoadSettings(path, os.Getenv)
	if err != nil {
	    return err
	}
	if err := s.Validate(); err != nil {
	    return err
	}

A file looks like:

	llm:
	  base_url: https://llm.internal/v1
	  model: gpt-4o
	  timeout: 90s
	pipeline:
	  chunk_size: 3000
	  gap_loop_limit: 2
	checkpoint:
	  sqlite: runs.db
	log_level: debug

Config is safe for concurrent reads; callers must not modify the map
passed to New.
*/
package config
