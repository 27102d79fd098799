package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/agentrec/catalog"
	"github.com/rushteam/agentrec/config"
	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/critic"
	"github.com/rushteam/agentrec/explain"
	"github.com/rushteam/agentrec/filter"
	"github.com/rushteam/agentrec/intent"
	"github.com/rushteam/agentrec/pipeline"
	"github.com/rushteam/agentrec/pkg/metrics"
	"github.com/rushteam/agentrec/planner"
	"github.com/rushteam/agentrec/rank"
	"github.com/rushteam/agentrec/recall"
	"github.com/rushteam/agentrec/rerank"
	"github.com/rushteam/agentrec/service"
	"github.com/rushteam/agentrec/stats"
	"github.com/rushteam/agentrec/store"
)

// 启动期访问 Redis 的超时
const storeTimeout = 10 * time.Second

type app struct {
	controller *pipeline.Controller
	closers    []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

// build 加载数据、构建只读的统计与索引，并组装各阶段 Node。
// 只有配置错误和数据文件无法读取会返回 error，外部服务不可用时降级运行。
func build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*app, error) {
	a := &app{}

	movies, err := catalog.LoadMovies(cfg.Data.MoviesPath)
	if err != nil {
		return nil, err
	}
	ratings, err := catalog.LoadRatings(cfg.Data.RatingsPath)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("movies", movies.Len()).Int("ratings", len(ratings)).Msg("dataset loaded")

	var kv core.KeyValueStore
	if cfg.Redis.Enabled {
		sctx, cancel := context.WithTimeout(ctx, storeTimeout)
		rs, err := store.NewRedisStore(sctx, store.RedisOptions{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: storeTimeout,
		})
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, falling back to in-process store")
		} else {
			kv = rs
			a.closers = append(a.closers, rs)
		}
	}
	if kv == nil {
		ms := store.NewMemoryStore()
		kv = ms
		a.closers = append(a.closers, ms)
	}

	itemStats := loadStats(ctx, kv, cfg.Redis.StatsKey, cfg.Redis.StatsTTL, ratings, logger)
	blocked := loadBlocklist(ctx, kv, cfg, logger)

	reasoning, embedder, err := service.NewReasoningService(cfg.ReasoningService(), reasoningOptions(cfg, logger, m)...)
	if err != nil {
		return nil, fmt.Errorf("reasoning service: %w", err)
	}

	cf := recall.NewItemCF(ratings, recall.WithNeighbors(cfg.Retrieval.Neighbors))
	logger.Info().Int("users", cf.Users()).Msg("item-item neighbours built")

	var semantic core.SemanticRetriever
	if cfg.Embedding.Enabled && embedder != nil {
		vectors := store.NewMemoryVectorService()
		a.closers = append(a.closers, vectors)
		n, err := recall.BuildSemanticIndex(ctx, embedder, vectors, cfg.Embedding.Collection, core.MetricType(cfg.Embedding.Metric), movies)
		if err != nil {
			logger.Warn().Err(err).Int("indexed", n).Msg("semantic index incomplete")
		} else {
			logger.Info().Int("indexed", n).Msg("semantic index built")
		}
		ss, err := recall.NewSemanticSearch(embedder, vectors, cfg.Embedding.CacheSize,
			recall.WithCollection(cfg.Embedding.Collection),
			recall.WithMetric(core.MetricType(cfg.Embedding.Metric)),
			recall.WithSemanticLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		semantic = ss
	}

	ranker, err := rank.New(cfg.RankConfig(), itemStats, movies)
	if err != nil {
		return nil, err
	}
	rankNode := rank.NewNode(ranker, rank.WithFilters(filter.NewBlacklistFilter(blocked)), rank.WithLogger(logger))

	criticOpts := []critic.Option{
		critic.WithStats(itemStats),
		critic.WithLogger(logger),
		critic.WithMetrics(m),
	}
	if cfg.Critic.RulesPath != "" {
		rules, err := critic.LoadRules(cfg.Critic.RulesPath, cfg.Critic.NoveltyCeiling)
		if err != nil {
			return nil, err
		}
		logger.Info().Int("rules", rules.Len()).Str("path", cfg.Critic.RulesPath).Msg("guardrail rules loaded")
		criticOpts = append(criticOpts, critic.WithRules(rules))
	}

	nodes := []pipeline.Node{
		&intent.Node{Resolver: intent.NewResolver(reasoning, cfg.IntentRules(), intent.WithLogger(logger), intent.WithMetrics(m))},
		&planner.Node{Planner: planner.New(reasoning, cfg.PlannerRules(), planner.WithLogger(logger), planner.WithMetrics(m))},
		recall.NewFanout(cf, semantic, cfg.Retrieval, recall.WithLogger(logger), recall.WithMetrics(m)),
		rankNode,
		&critic.Node{Critic: critic.New(reasoning, cfg.Guardrails(), criticOpts...)},
		rerank.NewNode(ranker, cfg.RerankRules(), rerank.WithFilters(rankNode.Filters()), rerank.WithLogger(logger)),
		&explain.Node{Explainer: explain.New(reasoning, explain.WithLogger(logger), explain.WithMetrics(m))},
	}
	ctrl, err := pipeline.NewController(nodes, pipeline.WithLogger(logger), pipeline.WithMetrics(m))
	if err != nil {
		return nil, err
	}
	a.controller = ctrl
	return a, nil
}

func reasoningOptions(cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) []service.OpenAIOption {
	opts := []service.OpenAIOption{
		service.WithOpenAILogger(logger),
		service.WithOpenAIMetrics(m),
	}
	for task, t := range cfg.Temperatures() {
		opts = append(opts, service.WithOpenAITemperature(task, t))
	}
	return opts
}

// loadStats 优先读取未过期的快照，否则由评分数据计算并写回。
func loadStats(ctx context.Context, kv core.KeyValueStore, key string, ttl time.Duration, ratings []catalog.Rating, logger zerolog.Logger) *stats.Stats {
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	s, err := stats.LoadSnapshot(sctx, kv, key)
	if err == nil {
		logger.Info().Int("items", s.Len()).Str("store", kv.Name()).Msg("item stats loaded from snapshot")
		return s
	}
	if !core.IsNotFound(err) {
		logger.Warn().Err(err).Msg("item stats snapshot unreadable, rebuilding")
	}

	s = stats.Build(ratings)
	logger.Info().Int("items", s.Len()).Msg("item stats built")
	if err := stats.SaveSnapshot(sctx, kv, key, s, ttl); err != nil {
		logger.Warn().Err(err).Msg("save item stats snapshot failed")
	}
	return s
}

// loadBlocklist 合并配置中的屏蔽列表与存储中的屏蔽列表。
func loadBlocklist(ctx context.Context, kv core.KeyValueStore, cfg *config.Config, logger zerolog.Logger) []int64 {
	blocked := append([]int64(nil), cfg.Ranking.BlockedItems...)
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	ids, err := filter.NewStoreAdapter(kv).GetBlacklist(sctx, cfg.Redis.BlacklistKey)
	if err != nil {
		logger.Warn().Err(err).Msg("load blocked items from store failed")
		return blocked
	}
	return append(blocked, ids...)
}
