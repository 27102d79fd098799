// Package agentrec 是一个分阶段的推荐服务（Agentic Recommender）。
//
// 设计要点：
// - Stage-first: 请求按 Intent → Plan → Retrieve → Rank → Critique → (Rerank) → Explain 顺序执行，
//   转移函数是纯函数，Rerank 每个请求最多一次
// - Rules-over-advice: 推理服务只给建议，确定性规则与护栏拥有最终决定权
// - Trace-first: 每个阶段追加一条 trace，记录输入摘要与决策，便于解释与观测
package agentrec

import "github.com/rushteam/agentrec/pipeline"

// 轻量 facade：便于直接 import "agentrec" 使用核心抽象。
type Controller = pipeline.Controller
type Node = pipeline.Node
type Stage = pipeline.Stage
type State = pipeline.State
type Result = pipeline.Result

const (
	StageIntent   = pipeline.StageIntent
	StagePlan     = pipeline.StagePlan
	StageRetrieve = pipeline.StageRetrieve
	StageRank     = pipeline.StageRank
	StageCritique = pipeline.StageCritique
	StageRerank   = pipeline.StageRerank
	StageExplain  = pipeline.StageExplain
)
