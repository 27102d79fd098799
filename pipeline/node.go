package pipeline

import "context"

// Stage 是状态机中的阶段。
type Stage string

const (
	StageIntent   Stage = "intent"   // 意图识别
	StagePlan     Stage = "plan"     // 检索计划与融合权重
	StageRetrieve Stage = "retrieve" // 调用检索工具
	StageRank     Stage = "rank"     // 融合排序
	StageCritique Stage = "critique" // 护栏评审
	StageRerank   Stage = "rerank"   // 按评审调整重排（每个请求最多一次）
	StageExplain  Stage = "explain"  // 生成说明
	StageDone     Stage = "done"
)

// Stages 是需要 Node 的阶段，按执行顺序排列。
var Stages = []Stage{
	StageIntent,
	StagePlan,
	StageRetrieve,
	StageRank,
	StageCritique,
	StageRerank,
	StageExplain,
}

// Fields 是一条 trace 记录的内容：阶段的输入摘要与决策。
type Fields map[string]any

// Node 是状态机中一个阶段的实现。
//
// Process 是 State → State 的函数：基于输入 State 返回新的 State，
// 并返回本阶段的 trace 内容。Node 不返回 error：
// 外部依赖失败时由 Node 自己降级为确定性默认值，并在 Fields 中说明。
type Node interface {
	Name() string
	Stage() Stage

	Process(ctx context.Context, st State) (State, Fields)
}
