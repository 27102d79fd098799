package utils

// Label 记录一个值以及它的来源，贯穿检索、排序、重排，用于解释与追踪。
// 例如 rank_source = "behavioral|semantic"，Source = "rank"。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // retrieve / rank / rerank / critic ...
}

// NewLabel 创建 Label。
func NewLabel(value, source string) Label {
	return Label{Value: value, Source: source}
}

// MergeLabel 合并同名 Label，保留历史：
// - Value: 以 '|' 累积
// - Source: 以 ',' 累积，相同来源不重复
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "" || existing.Source == incoming.Source:
		if incoming.Source != "" {
			merged.Source = incoming.Source
		}
	case incoming.Source == "":
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}
