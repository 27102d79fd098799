// Package stats 提供物品统计（热度、平均评分、评分次数）。
//
// 统计在启动时由评分数据构建一次，之后只读，所有请求共享且无需加锁。
package stats

import (
	"github.com/rushteam/agentrec/catalog"
	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pkg/conv"
)

// 评分取值范围（MovieLens 为 0.5 ~ 5.0）
const (
	minRating = 0.5
	maxRating = 5.0
)

// Entry 是单个物品的统计。
type Entry struct {
	Popularity float64 `json:"p"`
	AvgRating  float64 `json:"r"`
	Count      int     `json:"c"`
}

// Stats 是内存中的物品统计，实现 core.ItemStats。
type Stats struct {
	entries map[int64]Entry
}

// New 由已计算好的条目构建统计（用于快照恢复与测试）。
func New(entries map[int64]Entry) *Stats {
	cp := make(map[int64]Entry, len(entries))
	for id, e := range entries {
		cp[id] = e
	}
	return &Stats{entries: cp}
}

// Build 由评分数据计算统计：
//   - popularity = count / max_count
//   - avg_rating = (mean - 0.5) / 4.5，限制在 [0,1]
func Build(ratings []catalog.Rating) *Stats {
	type acc struct {
		sum   float64
		count int
	}
	per := make(map[int64]*acc)
	maxCount := 0
	for _, r := range ratings {
		a, ok := per[r.ItemID]
		if !ok {
			a = &acc{}
			per[r.ItemID] = a
		}
		a.sum += r.Value
		a.count++
		if a.count > maxCount {
			maxCount = a.count
		}
	}

	entries := make(map[int64]Entry, len(per))
	for id, a := range per {
		mean := a.sum / float64(a.count)
		entries[id] = Entry{
			Popularity: float64(a.count) / float64(maxCount),
			AvgRating:  conv.Clamp((mean-minRating)/(maxRating-minRating), 0, 1),
			Count:      a.count,
		}
	}
	return &Stats{entries: entries}
}

// Popularity 实现 core.ItemStats。
func (s *Stats) Popularity(id int64) float64 {
	if e, ok := s.entries[id]; ok {
		return e.Popularity
	}
	return core.NeutralPopularity
}

// AvgRating 实现 core.ItemStats。
func (s *Stats) AvgRating(id int64) float64 {
	if e, ok := s.entries[id]; ok {
		return e.AvgRating
	}
	return core.NeutralAvgRating
}

// RatingCount 实现 core.ItemStats。
func (s *Stats) RatingCount(id int64) int {
	return s.entries[id].Count
}

// Len 返回有统计的物品数。
func (s *Stats) Len() int { return len(s.entries) }

var _ core.ItemStats = (*Stats)(nil)
