// Package config 加载并校验服务的静态配置。
//
// 加载顺序：内置默认值 → YAML 文件 → 环境变量（前缀 AGENTREC_，
// 层级用双下划线分隔，如 AGENTREC_RANKING__FINAL_K=30）。
// 配置非法是启动期唯一的致命错误。
package config

import (
	"time"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/critic"
	"github.com/rushteam/agentrec/intent"
	"github.com/rushteam/agentrec/pkg/logging"
	"github.com/rushteam/agentrec/planner"
	"github.com/rushteam/agentrec/rank"
	"github.com/rushteam/agentrec/rerank"
	"github.com/rushteam/agentrec/service"
)

// Config 是完整的服务配置。
type Config struct {
	Server    ServerConfig    `koanf:"server" validate:"required"`
	Logging   logging.Config  `koanf:"logging"`
	Data      DataConfig      `koanf:"data" validate:"required"`
	Redis     RedisConfig     `koanf:"redis"`
	Reasoning ReasoningConfig `koanf:"reasoning"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Planner   PlannerConfig   `koanf:"planner"`
	Ranking   RankingConfig   `koanf:"ranking"`
	Critic    CriticConfig    `koanf:"critic"`
	Intent    IntentConfig    `koanf:"intent"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// RateLimit 每个 IP 每个窗口的请求数，0 表示不限流
	RateLimit       int           `koanf:"rate_limit" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// DataConfig 数据集路径
type DataConfig struct {
	MoviesPath  string `koanf:"movies_path" validate:"required"`
	RatingsPath string `koanf:"ratings_path" validate:"required"`
}

// RedisConfig 物品统计快照与黑名单的存储，未启用或不可用时使用进程内存储。
type RedisConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Addr         string `koanf:"addr" validate:"required_if=Enabled true"`
	Password     string `koanf:"password"`
	DB           int    `koanf:"db" validate:"gte=0"`
	StatsKey     string `koanf:"stats_key"`
	BlacklistKey string `koanf:"blacklist_key"`
	// StatsTTL 统计快照有效期，过期后启动时重新计算，0 表示不过期
	StatsTTL time.Duration `koanf:"stats_ttl" validate:"gte=0"`
}

// ReasoningConfig 推理服务配置
type ReasoningConfig struct {
	Enabled         bool          `koanf:"enabled"`
	BaseURL         string        `koanf:"base_url" validate:"required_if=Enabled true,omitempty,url"`
	APIKey          string        `koanf:"api_key"`
	AuthType        string        `koanf:"auth_type" validate:"omitempty,oneof=bearer api_key"`
	Model           string        `koanf:"model"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxRepairs      int           `koanf:"max_repairs" validate:"gte=0,lte=5"`
	MinInterval     time.Duration `koanf:"min_interval" validate:"gte=0"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gte=0"`

	TemperatureIntent   float64 `koanf:"temperature_intent" validate:"gte=0,lte=2"`
	TemperaturePlan     float64 `koanf:"temperature_plan" validate:"gte=0,lte=2"`
	TemperatureCritique float64 `koanf:"temperature_critique" validate:"gte=0,lte=2"`
	TemperatureExplain  float64 `koanf:"temperature_explain" validate:"gte=0,lte=2"`
}

// EmbeddingConfig 语义检索配置
type EmbeddingConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Model      string `koanf:"model"`
	Collection string `koanf:"collection" validate:"required"`
	CacheSize  int    `koanf:"cache_size" validate:"gt=0"`
	// Metric 向量距离度量：cosine / euclidean / inner_product
	Metric string `koanf:"metric" validate:"oneof=cosine euclidean inner_product"`
}

// RetrievalConfig 检索配置，实现 core.RetrievalConfig。
type RetrievalConfig struct {
	BehavioralK int           `koanf:"behavioral_k" validate:"gt=0"`
	SemanticK   int           `koanf:"semantic_k" validate:"gt=0"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	Neighbors   int           `koanf:"neighbors" validate:"gt=0"`
}

func (c RetrievalConfig) DefaultBehavioralK() int        { return c.BehavioralK }
func (c RetrievalConfig) DefaultSemanticK() int          { return c.SemanticK }
func (c RetrievalConfig) DefaultTimeout() time.Duration { return c.Timeout }

var _ core.RetrievalConfig = RetrievalConfig{}

// PlannerConfig 权重规则配置
type PlannerConfig struct {
	EnforceHybridForSearch  bool    `koanf:"enforce_hybrid_for_search"`
	MinBehavioralWeight     float64 `koanf:"min_behavioral_weight" validate:"gte=0,lte=1"`
	DefaultBehavioralWeight float64 `koanf:"default_behavioral_weight" validate:"gte=0,lte=1"`
	DefaultSemanticWeight   float64 `koanf:"default_semantic_weight" validate:"gte=0,lte=1"`
	Epsilon                 float64 `koanf:"epsilon" validate:"gt=0"`
}

// RankingConfig 排序配置
type RankingConfig struct {
	Strategy       string  `koanf:"strategy" validate:"oneof=advantage linear"`
	AdvantageAlpha float64 `koanf:"advantage_alpha" validate:"gte=0"`
	NoveltyLambda  float64 `koanf:"novelty_lambda" validate:"gte=0,lte=1"`
	FinalK         int     `koanf:"final_k" validate:"gt=0"`
	BlockedItems   []int64 `koanf:"blocked_items"`
}

// CriticConfig 护栏配置
type CriticConfig struct {
	TopK                int      `koanf:"top_k" validate:"gt=0"`
	PopularityThreshold float64  `koanf:"popularity_mean_threshold" validate:"gte=0,lte=1"`
	NoveltyStep         float64  `koanf:"novelty_step" validate:"gte=0,lte=1"`
	NoveltyCeiling      float64  `koanf:"novelty_ceiling" validate:"gte=0,lte=1"`
	MinUniqueGenres     int      `koanf:"min_unique_genres" validate:"gte=0"`
	DiversityBoost      float64  `koanf:"diversity_boost" validate:"gte=0,lte=1"`
	ProtectedGenre      string   `koanf:"protected_genre"`
	ProtectedRatio      float64  `koanf:"protected_ratio" validate:"gte=0,lte=1"`
	AllowKeywords       []string `koanf:"allow_keywords"`
	RulesPath           string   `koanf:"rules_path"`
}

// IntentConfig 意图规则配置
type IntentConfig struct {
	LowNoveltyThreshold float64 `koanf:"low_novelty_threshold" validate:"gte=0,lte=1"`
	QuickWatchMinutes   float64 `koanf:"quick_watch_minutes" validate:"gte=0"`
	DefaultConfidence   float64 `koanf:"default_confidence" validate:"gte=0,lte=1"`
	MinConfidence       float64 `koanf:"min_confidence" validate:"gte=0,lte=1"`
	DefaultQuestion     string  `koanf:"default_question"`
}

// Default 返回默认配置。
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    90 * time.Second,
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       60,
			RateLimitWindow: time.Minute,
		},
		Logging: logging.Config{Level: "info", Format: "json"},
		Data: DataConfig{
			MoviesPath:  "data/ml-latest-small/movies.csv",
			RatingsPath: "data/ml-latest-small/ratings.csv",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			StatsKey:     "agentrec:item_stats",
			BlacklistKey: "agentrec:blocked_items",
			StatsTTL:     24 * time.Hour,
		},
		Reasoning: ReasoningConfig{
			Enabled:             true,
			BaseURL:             "https://api.openai.com/v1",
			AuthType:            "bearer",
			Model:               "gpt-4o-mini",
			Timeout:             30 * time.Second,
			MaxRepairs:          1,
			BreakerFailures:     5,
			BreakerTimeout:      30 * time.Second,
			TemperatureIntent:   0.2,
			TemperaturePlan:     0.2,
			TemperatureCritique: 0.2,
			TemperatureExplain:  0.55,
		},
		Embedding: EmbeddingConfig{
			Enabled:    true,
			Model:      "text-embedding-3-small",
			Collection: "movies",
			CacheSize:  512,
			Metric:     "cosine",
		},
		Retrieval: RetrievalConfig{
			BehavioralK: 200,
			SemanticK:   80,
			Timeout:     10 * time.Second,
			Neighbors:   50,
		},
		Planner: PlannerConfig{
			EnforceHybridForSearch:  true,
			MinBehavioralWeight:     0.20,
			DefaultBehavioralWeight: 0.4,
			DefaultSemanticWeight:   0.6,
			Epsilon:                 1e-6,
		},
		Ranking: RankingConfig{
			Strategy:       string(rank.StrategyAdvantage),
			AdvantageAlpha: 0.6,
			NoveltyLambda:  0.20,
			FinalK:         20,
		},
		Critic: CriticConfig{
			TopK:                10,
			PopularityThreshold: 0.65,
			NoveltyStep:         0.10,
			NoveltyCeiling:      0.35,
			MinUniqueGenres:     4,
			DiversityBoost:      0.10,
			ProtectedGenre:      "Children",
			ProtectedRatio:      0.30,
			AllowKeywords:       []string{"kid", "kids", "family", "children", "child"},
		},
		Intent: IntentConfig{
			LowNoveltyThreshold: 0.3,
			QuickWatchMinutes:   45,
			DefaultConfidence:   0.6,
			MinConfidence:       0.5,
			DefaultQuestion:     "Do you want something closer to what you usually watch, or something new to you?",
		},
	}
}

// PlannerRules 转为 planner.Config。
func (c *Config) PlannerRules() planner.Config {
	return planner.Config{
		EnforceHybridForSearch:  c.Planner.EnforceHybridForSearch,
		MinBehavioralWeight:     c.Planner.MinBehavioralWeight,
		DefaultBehavioralWeight: c.Planner.DefaultBehavioralWeight,
		DefaultSemanticWeight:   c.Planner.DefaultSemanticWeight,
		Epsilon:                 c.Planner.Epsilon,
	}
}

// RerankRules 转为 rerank.Config。
func (c *Config) RerankRules() rerank.Config {
	return rerank.Config{
		Epsilon:                c.Planner.Epsilon,
		EnforceHybridForSearch: c.Planner.EnforceHybridForSearch,
		MinBehavioralWeight:    c.Planner.MinBehavioralWeight,
	}
}

// RankConfig 转为 rank.Config。
func (c *Config) RankConfig() rank.Config {
	return rank.Config{
		Strategy: rank.Strategy(c.Ranking.Strategy),
		Alpha:    c.Ranking.AdvantageAlpha,
		Lambda:   c.Ranking.NoveltyLambda,
		FinalK:   c.Ranking.FinalK,
	}
}

// Guardrails 转为 critic.Config。
func (c *Config) Guardrails() critic.Config {
	return critic.Config{
		TopK:                c.Critic.TopK,
		PopularityThreshold: c.Critic.PopularityThreshold,
		NoveltyLambda:       c.Ranking.NoveltyLambda,
		NoveltyStep:         c.Critic.NoveltyStep,
		NoveltyCeiling:      c.Critic.NoveltyCeiling,
		MinUniqueGenres:     c.Critic.MinUniqueGenres,
		DiversityBoost:      c.Critic.DiversityBoost,
		ProtectedGenre:      c.Critic.ProtectedGenre,
		ProtectedRatio:      c.Critic.ProtectedRatio,
		AllowKeywords:       append([]string(nil), c.Critic.AllowKeywords...),
	}
}

// IntentRules 转为 intent.Config。
func (c *Config) IntentRules() intent.Config {
	return intent.Config{
		LowNoveltyThreshold: c.Intent.LowNoveltyThreshold,
		QuickWatchMinutes:   c.Intent.QuickWatchMinutes,
		DefaultConfidence:   c.Intent.DefaultConfidence,
		MinConfidence:       c.Intent.MinConfidence,
		DefaultQuestion:     c.Intent.DefaultQuestion,
	}
}

// ReasoningService 转为 service.ServiceConfig。
func (c *Config) ReasoningService() *service.ServiceConfig {
	typ := service.ServiceTypeOpenAI
	if !c.Reasoning.Enabled {
		typ = service.ServiceTypeDisabled
	}
	return &service.ServiceConfig{
		Type:           typ,
		Endpoint:       c.Reasoning.BaseURL,
		Model:          c.Reasoning.Model,
		EmbeddingModel: c.Embedding.Model,
		APIKey:         c.Reasoning.APIKey,
		AuthType:       c.Reasoning.AuthType,
		Timeout:        c.Reasoning.Timeout,
		MaxRepairs:     c.Reasoning.MaxRepairs,
		MinInterval:    c.Reasoning.MinInterval,
		Breaker: service.BreakerConfig{
			ConsecutiveFailures: c.Reasoning.BreakerFailures,
			OpenTimeout:         c.Reasoning.BreakerTimeout,
		},
	}
}

// Temperatures 返回各推理任务的温度。
func (c *Config) Temperatures() map[core.ReasoningTask]float64 {
	return map[core.ReasoningTask]float64{
		core.TaskIntent:   c.Reasoning.TemperatureIntent,
		core.TaskPlan:     c.Reasoning.TemperaturePlan,
		core.TaskCritique: c.Reasoning.TemperatureCritique,
		core.TaskExplain:  c.Reasoning.TemperatureExplain,
	}
}
