package core

import (
	"strings"

	"github.com/rushteam/agentrec/pkg/utils"
)

// Candidate 是检索工具返回的单条候选：物品 ID 与非负分数。
type Candidate struct {
	ItemID int64   `json:"item_id"`
	Score  float64 `json:"score"`
}

// Signals 是排序分数的分解，用于解释与调试。
type Signals struct {
	Behavioral         float64 `json:"behavioral"`
	Semantic           float64 `json:"semantic"`
	Utility            float64 `json:"utility"`
	BaselinePopularity float64 `json:"baseline_popularity"`
	Advantage          float64 `json:"advantage"`
	NoveltyBoost       float64 `json:"novelty_boost"`
}

// Item 是排序结果中的一条推荐（Ranked Recommendation）。
// 每次排序都会生成全新的 Item 序列，不对上一轮结果做增量修改。
type Item struct {
	ID      int64                  `json:"item_id"`
	Title   string                 `json:"title"`
	Genres  []string               `json:"genres"`
	Score   float64                `json:"final_score"`
	Signals Signals                `json:"signals"`
	Labels  map[string]utils.Label `json:"labels,omitempty"`
}

func NewItem(id int64) *Item {
	return &Item{
		ID:     id,
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// HasGenre 判断物品是否带有指定类型（大小写不敏感）。
func (it *Item) HasGenre(genre string) bool {
	for _, g := range it.Genres {
		if strings.EqualFold(g, genre) {
			return true
		}
	}
	return false
}

// ItemMeta 是目录中的物品元信息。
type ItemMeta struct {
	ID     int64
	Title  string
	Genres []string
}

// ItemCatalog 按 ID 查询物品元信息。
type ItemCatalog interface {
	Lookup(id int64) (ItemMeta, bool)
}
