// Command agentrec 运行推荐服务，或以 -once 模式执行单次推荐并输出 YAML。
//
//	agentrec -config agentrec.yaml
//	agentrec -once -user 1 -query "space opera with strong female lead"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/agentrec/config"
	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pipeline"
	"github.com/rushteam/agentrec/pkg/logging"
	"github.com/rushteam/agentrec/pkg/metrics"
	"github.com/rushteam/agentrec/server"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (default: $AGENTREC_CONFIG or ./agentrec.yaml)")
		envFile    = flag.String("env", ".env", "dotenv file loaded before config, ignored if missing")
		once       = flag.Bool("once", false, "run a single recommendation and print YAML")
		userID     = flag.String("user", "", "user id for -once")
		query      = flag.String("query", "", "query for -once")
		novelty    = flag.Float64("novelty", -1, "novelty tolerance in [0,1] for -once, negative means unset")
		minutes    = flag.Float64("minutes", -1, "available minutes for -once, negative means unset")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	app, err := build(ctx, cfg, logger, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer app.Close()

	if *once {
		rctx := core.NewRecommendContext(*userID, *query)
		if *novelty >= 0 {
			rctx = rctx.WithNoveltyTolerance(*novelty)
		}
		if *minutes >= 0 {
			rctx = rctx.WithAvailableMinutes(*minutes)
		}
		if err := runOnce(ctx, app.controller, rctx, os.Stdout); err != nil {
			logger.Fatal().Err(err).Msg("recommend failed")
		}
		return
	}

	if err := serve(ctx, cfg, logger, app.controller, reg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("server stopped")
	}
	logger.Info().Msg("shutdown complete")
}

// runOnce 执行单次推荐，结果经 JSON 转为通用结构后输出 YAML，字段名与 HTTP 接口一致。
func runOnce(ctx context.Context, ctrl *pipeline.Controller, rctx *core.RecommendContext, w io.Writer) error {
	res, err := ctrl.Run(ctx, rctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(doc)
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger, ctrl *pipeline.Controller, reg *prometheus.Registry) error {
	api := server.New(ctrl,
		server.WithLogger(logger),
		server.WithGatherer(reg),
		server.WithRequestTimeout(cfg.Server.RequestTimeout),
		server.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateLimitWindow),
	)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	supLogger := logging.Component(logger, "supervisor")
	sup := suture.New("agentrec", suture.Spec{
		EventHook: func(e suture.Event) {
			supLogger.Warn().Str("event", e.String()).Msg("supervisor event")
		},
	})
	sup.Add(server.NewService(httpServer, cfg.Server.ShutdownTimeout))

	logger.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
	return sup.Serve(ctx)
}
