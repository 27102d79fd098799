package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/rank"
	"github.com/rushteam/agentrec/service"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ranking.FinalK != 20 {
		t.Fatalf("FinalK = %d, want 20", cfg.Ranking.FinalK)
	}
	if cfg.Ranking.AdvantageAlpha != 0.6 || cfg.Ranking.NoveltyLambda != 0.2 {
		t.Fatalf("alpha/lambda = %v/%v, want 0.6/0.2", cfg.Ranking.AdvantageAlpha, cfg.Ranking.NoveltyLambda)
	}
	if cfg.Retrieval.DefaultBehavioralK() != 200 || cfg.Retrieval.DefaultSemanticK() != 80 {
		t.Fatalf("retrieval k = %d/%d, want 200/80", cfg.Retrieval.BehavioralK, cfg.Retrieval.SemanticK)
	}
	if cfg.Retrieval.DefaultTimeout() != 10*time.Second {
		t.Fatalf("retrieval timeout = %v, want 10s", cfg.Retrieval.Timeout)
	}
	if cfg.Critic.ProtectedGenre != "Children" || len(cfg.Critic.AllowKeywords) != 5 {
		t.Fatalf("critic protected = %q keywords = %v", cfg.Critic.ProtectedGenre, cfg.Critic.AllowKeywords)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentrec.yaml")
	content := `
server:
  addr: ":9090"
ranking:
  strategy: linear
  final_k: 15
critic:
  top_k: 5
redis:
  stats_ttl: 1h
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AGENTREC_RANKING__FINAL_K", "30")
	t.Setenv("AGENTREC_RANKING__BLOCKED_ITEMS", "1, 2,3")
	t.Setenv("AGENTREC_REASONING__ENABLED", "false")
	t.Setenv("AGENTREC_EMBEDDING__METRIC", "euclidean")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Redis.StatsTTL != time.Hour || cfg.Embedding.Metric != "euclidean" {
		t.Fatalf("stats ttl = %v metric = %q, want 1h euclidean", cfg.Redis.StatsTTL, cfg.Embedding.Metric)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("Addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Ranking.FinalK != 30 {
		t.Fatalf("FinalK = %d, want 30 (env overrides file)", cfg.Ranking.FinalK)
	}
	if cfg.Ranking.Strategy != "linear" || cfg.Critic.TopK != 5 {
		t.Fatalf("strategy/top_k = %q/%d", cfg.Ranking.Strategy, cfg.Critic.TopK)
	}
	if len(cfg.Ranking.BlockedItems) != 3 || cfg.Ranking.BlockedItems[2] != 3 {
		t.Fatalf("BlockedItems = %v, want [1 2 3]", cfg.Ranking.BlockedItems)
	}
	if cfg.Reasoning.Enabled {
		t.Fatal("Reasoning.Enabled = true, want false")
	}
	if got := cfg.ReasoningService().Type; got != service.ServiceTypeDisabled {
		t.Fatalf("ReasoningService().Type = %q, want disabled", got)
	}
	// 未覆盖的字段保持默认
	if cfg.Ranking.AdvantageAlpha != 0.6 {
		t.Fatalf("AdvantageAlpha = %v, want 0.6", cfg.Ranking.AdvantageAlpha)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !core.IsInvalidInput(err) {
		t.Fatalf("Load() error = %v, want invalid input", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"bad strategy", func(c *Config) { c.Ranking.Strategy = "mmoe" }, false},
		{"zero final k", func(c *Config) { c.Ranking.FinalK = 0 }, false},
		{"lambda above one", func(c *Config) { c.Ranking.NoveltyLambda = 1.5 }, false},
		{"ceiling below lambda", func(c *Config) { c.Critic.NoveltyCeiling = 0.1 }, false},
		{"top k above final k", func(c *Config) { c.Critic.TopK = 50 }, false},
		{"zero default weights", func(c *Config) {
			c.Planner.DefaultBehavioralWeight = 0
			c.Planner.DefaultSemanticWeight = 0
		}, false},
		{"default weights above one", func(c *Config) {
			c.Planner.DefaultBehavioralWeight = 0.7
			c.Planner.DefaultSemanticWeight = 0.7
		}, false},
		{"default weights sum to one", func(c *Config) {
			c.Planner.DefaultBehavioralWeight = 0.1
			c.Planner.DefaultSemanticWeight = 0.9
		}, true},
		{"bad embedding metric", func(c *Config) { c.Embedding.Metric = "manhattan" }, false},
		{"embedding inner product", func(c *Config) { c.Embedding.Metric = "inner_product" }, true},
		{"reasoning without scheme", func(c *Config) { c.Reasoning.BaseURL = "api.openai.com" }, false},
		{"reasoning disabled ignores url", func(c *Config) {
			c.Reasoning.Enabled = false
			c.Reasoning.BaseURL = ""
		}, true},
		{"redis enabled without addr", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, false},
		{"missing data path", func(c *Config) { c.Data.MoviesPath = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() error = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !core.IsInvalidInput(err) {
				t.Fatalf("Validate() error = %v, want invalid input domain error", err)
			}
		})
	}
}

func TestConverters(t *testing.T) {
	c := Default()
	c.Ranking.NoveltyLambda = 0.25

	if got := c.RankConfig(); got.Strategy != rank.StrategyAdvantage || got.Lambda != 0.25 || got.FinalK != 20 {
		t.Fatalf("RankConfig() = %+v", got)
	}
	if got := c.Guardrails(); got.NoveltyLambda != 0.25 || got.TopK != 10 {
		t.Fatalf("Guardrails() = %+v", got)
	}
	if got := c.PlannerRules(); got.MinBehavioralWeight != 0.20 || !got.EnforceHybridForSearch {
		t.Fatalf("PlannerRules() = %+v", got)
	}
	if got := c.RerankRules(); got.Epsilon != c.Planner.Epsilon {
		t.Fatalf("RerankRules().Epsilon = %v, want %v", got.Epsilon, c.Planner.Epsilon)
	}
	svc := c.ReasoningService()
	if svc.Type != service.ServiceTypeOpenAI || svc.MaxRepairs != 1 || svc.EmbeddingModel != c.Embedding.Model {
		t.Fatalf("ReasoningService() = %+v", svc)
	}
	if err := service.ValidateConfig(svc); err != nil {
		t.Fatalf("ValidateConfig() error = %v", err)
	}
	if got := c.Temperatures()[core.TaskExplain]; got != 0.55 {
		t.Fatalf("Temperatures()[explain] = %v, want 0.55", got)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"AGENTREC_RANKING__FINAL_K":  "ranking.final_k",
		"AGENTREC_SERVER__ADDR":      "server.addr",
		"AGENTREC_REASONING__API_KEY": "reasoning.api_key",
		"AGENTREC_CONFIG":            "",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Fatalf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
