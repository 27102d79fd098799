package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rushteam/agentrec/core"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// weightSumTolerance 默认权重之和与 1 的允许误差
const weightSumTolerance = 1e-6

// Validate 先做字段级校验，再做跨字段校验。
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, strings.Join(msgs, "; "))
		}
		return wrap("validate config", err)
	}

	var problems []string
	if sum := c.Planner.DefaultBehavioralWeight + c.Planner.DefaultSemanticWeight; math.Abs(sum-1) > weightSumTolerance {
		problems = append(problems, fmt.Sprintf("planner default weights must sum to 1, got %g", sum))
	}
	if c.Critic.NoveltyCeiling < c.Ranking.NoveltyLambda {
		problems = append(problems, "critic.novelty_ceiling must be >= ranking.novelty_lambda")
	}
	if c.Critic.TopK > c.Ranking.FinalK {
		problems = append(problems, "critic.top_k must be <= ranking.final_k")
	}
	if c.Reasoning.Enabled && !strings.HasPrefix(c.Reasoning.BaseURL, "http://") && !strings.HasPrefix(c.Reasoning.BaseURL, "https://") {
		problems = append(problems, "reasoning.base_url must start with http:// or https://")
	}
	if len(problems) > 0 {
		return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}
