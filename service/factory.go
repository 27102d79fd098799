package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/rushteam/agentrec/core"
)

// 推理服务类型
const (
	ServiceTypeOpenAI   = "openai"   // OpenAI 兼容接口
	ServiceTypeDisabled = "disabled" // 不调用外部服务，所有推理结果走确定性默认值
)

// ServiceConfig 推理服务配置
type ServiceConfig struct {
	Type           string
	Endpoint       string
	Model          string
	EmbeddingModel string
	APIKey         string
	AuthType       string // bearer / api_key
	Timeout        time.Duration
	MaxRepairs     int
	MinInterval    time.Duration
	Breaker        BreakerConfig
}

// NewReasoningService 根据配置创建推理服务与向量编码器（工厂方法）。
// disabled 类型不返回 Embedder。
func NewReasoningService(config *ServiceConfig, opts ...OpenAIOption) (core.ReasoningService, core.Embedder, error) {
	if config == nil {
		return nil, nil, fmt.Errorf("service config is required")
	}
	if err := ValidateConfig(config); err != nil {
		return nil, nil, err
	}

	switch config.Type {
	case ServiceTypeDisabled:
		return Disabled{}, nil, nil

	case ServiceTypeOpenAI:
		base := []OpenAIOption{
			WithOpenAIMaxRepairs(config.MaxRepairs),
			WithOpenAIMinInterval(config.MinInterval),
			WithOpenAIBreaker(config.Breaker),
		}
		if config.Timeout > 0 {
			base = append(base, WithOpenAITimeout(config.Timeout))
		}
		if config.Model != "" {
			base = append(base, WithOpenAIModel(config.Model))
		}
		if config.EmbeddingModel != "" {
			base = append(base, WithOpenAIEmbeddingModel(config.EmbeddingModel))
		}
		if config.APIKey != "" {
			base = append(base, WithOpenAIAuth(&AuthConfig{Type: config.AuthType, Token: config.APIKey, APIKey: config.APIKey}))
		}
		client := NewOpenAIClient(config.Endpoint, append(base, opts...)...)
		return client, client, nil

	default:
		return nil, nil, fmt.Errorf("unsupported service type: %s", config.Type)
	}
}

// ValidateConfig 验证服务配置
func ValidateConfig(config *ServiceConfig) error {
	if config == nil {
		return fmt.Errorf("service config is required")
	}
	switch config.Type {
	case ServiceTypeDisabled:
		return nil
	case ServiceTypeOpenAI:
		if !hasHTTPPrefix(config.Endpoint) {
			return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, "reasoning endpoint must start with http:// or https://")
		}
		if config.MaxRepairs < 0 {
			return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, "max repairs must be >= 0")
		}
		return nil
	default:
		return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, "unsupported service type: "+config.Type)
	}
}

// hasHTTPPrefix 检查是否包含 HTTP 前缀
func hasHTTPPrefix(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
