package core

import "time"

// RetrievalConfig 提供检索阶段的默认值。
type RetrievalConfig interface {
	// DefaultBehavioralK 行为检索默认返回条数
	DefaultBehavioralK() int

	// DefaultSemanticK 语义检索默认返回条数
	DefaultSemanticK() int

	// DefaultTimeout 单个检索工具的默认超时
	DefaultTimeout() time.Duration
}

// DefaultRetrievalConfig 是默认的检索配置实现。
type DefaultRetrievalConfig struct{}

func (c DefaultRetrievalConfig) DefaultBehavioralK() int {
	return 200
}

func (c DefaultRetrievalConfig) DefaultSemanticK() int {
	return 80
}

func (c DefaultRetrievalConfig) DefaultTimeout() time.Duration {
	return 2 * time.Second
}
