package core

import (
	"strings"

	"github.com/rushteam/agentrec/pkg/utils"
)

// RecommendContext 承载一次推荐请求的输入：用户、查询与偏好提示。
//
// 请求开始时创建一次，之后只读；需要派生时使用 With* 方法返回副本。
type RecommendContext struct {
	UserID string
	Query  string

	// NoveltyTolerance 新颖度容忍度，取值 [0,1]，nil 表示未提供
	NoveltyTolerance *float64

	// AvailableMinutes 可用观看时长（分钟），nil 表示未提供
	AvailableMinutes *float64

	// Labels 是用户级标签，用于解释与观测
	Labels map[string]utils.Label

	// Params 请求级扩展参数
	Params map[string]any
}

// NewRecommendContext 创建请求上下文，query 会去除首尾空白。
func NewRecommendContext(userID, query string) *RecommendContext {
	return &RecommendContext{
		UserID: strings.TrimSpace(userID),
		Query:  strings.TrimSpace(query),
	}
}

// HasQuery 判断是否携带非空查询。
func (rctx *RecommendContext) HasQuery() bool {
	return rctx != nil && strings.TrimSpace(rctx.Query) != ""
}

// WithNoveltyTolerance 返回设置了新颖度容忍度的副本。
func (rctx *RecommendContext) WithNoveltyTolerance(v float64) *RecommendContext {
	cp := rctx.clone()
	cp.NoveltyTolerance = &v
	return cp
}

// WithAvailableMinutes 返回设置了可用时长的副本。
func (rctx *RecommendContext) WithAvailableMinutes(v float64) *RecommendContext {
	cp := rctx.clone()
	cp.AvailableMinutes = &v
	return cp
}

// WithLabel 返回追加了用户级 Label 的副本；同名 Label 按 MergeLabel 累积。
func (rctx *RecommendContext) WithLabel(key string, lbl utils.Label) *RecommendContext {
	cp := rctx.clone()
	if old, ok := cp.Labels[key]; ok {
		cp.Labels[key] = utils.MergeLabel(old, lbl)
	} else {
		cp.Labels[key] = lbl
	}
	return cp
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx == nil || rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}

// Snapshot 返回可 JSON 序列化的上下文视图，作为推理服务的输入。
func (rctx *RecommendContext) Snapshot() map[string]any {
	out := map[string]any{
		"user_id": rctx.UserID,
		"query":   rctx.Query,
	}
	if rctx.NoveltyTolerance != nil {
		out["novelty_tolerance"] = *rctx.NoveltyTolerance
	}
	if rctx.AvailableMinutes != nil {
		out["available_minutes"] = *rctx.AvailableMinutes
	}
	for k, v := range rctx.Params {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out
}

func (rctx *RecommendContext) clone() *RecommendContext {
	cp := &RecommendContext{}
	if rctx != nil {
		*cp = *rctx
	}
	cp.Labels = make(map[string]utils.Label, len(cp.Labels))
	if rctx != nil {
		for k, v := range rctx.Labels {
			cp.Labels[k] = v
		}
	}
	if rctx != nil && rctx.Params != nil {
		cp.Params = make(map[string]any, len(rctx.Params))
		for k, v := range rctx.Params {
			cp.Params[k] = v
		}
	}
	return cp
}
