package pipeline

// Next 是状态机的转移函数，只依赖当前阶段与 State，没有副作用。
//
// 唯一的分支是 Critique → {Rerank, Explain}；Rerank 之后总是进入 Explain，
// 且已经重排过的请求不会再次进入 Rerank，因此状态机必然终止。
func Next(from Stage, st State) Stage {
	switch from {
	case StageIntent:
		return StagePlan
	case StagePlan:
		return StageRetrieve
	case StageRetrieve:
		return StageRank
	case StageRank:
		return StageCritique
	case StageCritique:
		if st.Verdict.NeedsRerank && st.reranks == 0 {
			return StageRerank
		}
		return StageExplain
	case StageRerank:
		return StageExplain
	default:
		return StageDone
	}
}
