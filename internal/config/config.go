// Package config reads service settings from the environment once at
// startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	BackendSupabase = "supabase"
	BackendSQLite   = "sqlite"
)

type Settings struct {
	Addr string

	StoreBackend       string
	SupabaseURL        string
	SupabaseServiceKey string
	SQLitePath         string

	OpenAIAPIKey         string
	OpenAIEmbeddingModel string
	RetrievalTopK        int
	EnableVectorSearch   bool

	AnthropicAPIKey string
	ChatLLMModel    string
}

// Load reads every setting. Missing Supabase credentials are fatal unless
// the SQLite backend is selected.
func Load() (Settings, error) {
	s := Settings{
		Addr:                 envOr("ADDR", ":8000"),
		StoreBackend:         strings.ToLower(envOr("STORE_BACKEND", BackendSupabase)),
		SupabaseURL:          strings.TrimSpace(os.Getenv("SUPABASE_URL")),
		SupabaseServiceKey:   strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_ROLE_KEY")),
		SQLitePath:           envOr("SQLITE_PATH", "sentencing.db"),
		OpenAIAPIKey:         strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIEmbeddingModel: envOr("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		AnthropicAPIKey:      strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		ChatLLMModel:         strings.TrimSpace(os.Getenv("CHAT_LLM_MODEL")),
	}

	topK, err := envInt("RETRIEVAL_TOP_K", 6)
	if err != nil {
		return Settings{}, err
	}
	s.RetrievalTopK = topK

	vector, err := envBool("ENABLE_VECTOR_SEARCH", true)
	if err != nil {
		return Settings{}, err
	}
	s.EnableVectorSearch = vector

	switch s.StoreBackend {
	case BackendSQLite:
	case BackendSupabase:
		if s.SupabaseURL == "" {
			return Settings{}, errors.New("SUPABASE_URL is required")
		}
		if s.SupabaseServiceKey == "" {
			return Settings{}, errors.New("SUPABASE_SERVICE_ROLE_KEY is required")
		}
	default:
		return Settings{}, fmt.Errorf("unknown STORE_BACKEND %q", s.StoreBackend)
	}

	return s, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}
