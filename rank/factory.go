package rank

import (
	"fmt"

	"github.com/rushteam/agentrec/core"
)

// Config 排序配置
type Config struct {
	Strategy Strategy
	Alpha    float64
	Lambda   float64
	FinalK   int
}

// New 按策略创建排序器，策略为空时使用 advantage。
func New(cfg Config, stats core.ItemStats, catalog core.ItemCatalog) (Ranker, error) {
	switch cfg.Strategy {
	case StrategyAdvantage, "":
		return &AdvantageRanker{
			Alpha:   cfg.Alpha,
			Lambda:  cfg.Lambda,
			FinalK:  cfg.FinalK,
			Stats:   stats,
			Catalog: catalog,
		}, nil
	case StrategyLinear:
		return &LinearRanker{FinalK: cfg.FinalK, Catalog: catalog}, nil
	default:
		return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, fmt.Sprintf("unknown ranking strategy: %s", cfg.Strategy))
	}
}
