package recall

import (
	"context"
	"math"
	"sort"

	"github.com/rushteam/agentrec/catalog"
	"github.com/rushteam/agentrec/core"
)

// ItemCF 是基于物品的协同过滤行为检索工具（Item-based Collaborative Filtering）。
//
// 核心思想："被同一批用户看过的物品，相互相似"
//
// 算法流程：
//  1. 评分数据视为隐式反馈（看过即 1），构建物品 → 用户倒排表
//  2. 物品相似度取余弦：|U_i ∩ U_j| / sqrt(|U_i|·|U_j|)
//  3. 每个物品只保留 TopK 个近邻
//  4. score(j) = Σ_{i∈history(u)} sim(i, j)，跳过用户看过的物品
//
// 近邻表在启动时构建一次，之后只读，可被并发请求共享。
type ItemCF struct {
	neighbors map[int64][]neighbor
	history   map[string][]int64
}

type neighbor struct {
	id  int64
	sim float64
}

// ItemCFOption ItemCF 构建选项
type ItemCFOption func(*itemCFBuild)

type itemCFBuild struct {
	topK int
}

// WithNeighbors 设置每个物品保留的近邻数，默认 50。
func WithNeighbors(n int) ItemCFOption {
	return func(b *itemCFBuild) {
		if n > 0 {
			b.topK = n
		}
	}
}

// NewItemCF 从评分数据构建近邻表。
func NewItemCF(ratings []catalog.Rating, opts ...ItemCFOption) *ItemCF {
	b := &itemCFBuild{topK: 50}
	for _, opt := range opts {
		opt(b)
	}

	// 用户 → 去重后的物品集合
	seen := make(map[string]map[int64]struct{})
	for _, r := range ratings {
		items, ok := seen[r.UserID]
		if !ok {
			items = make(map[int64]struct{})
			seen[r.UserID] = items
		}
		items[r.ItemID] = struct{}{}
	}

	history := make(map[string][]int64, len(seen))
	itemUsers := make(map[int64]int)
	for user, items := range seen {
		ids := make([]int64, 0, len(items))
		for id := range items {
			ids = append(ids, id)
			itemUsers[id]++
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		history[user] = ids
	}

	// 共现计数
	co := make(map[int64]map[int64]int)
	for _, ids := range history {
		for x, i := range ids {
			for _, j := range ids[x+1:] {
				addCo(co, i, j)
				addCo(co, j, i)
			}
		}
	}

	neighbors := make(map[int64][]neighbor, len(co))
	for i, row := range co {
		list := make([]neighbor, 0, len(row))
		for j, n := range row {
			sim := float64(n) / math.Sqrt(float64(itemUsers[i])*float64(itemUsers[j]))
			list = append(list, neighbor{id: j, sim: sim})
		}
		sort.Slice(list, func(a, b int) bool {
			if list[a].sim != list[b].sim {
				return list[a].sim > list[b].sim
			}
			return list[a].id < list[b].id
		})
		if len(list) > b.topK {
			list = list[:b.topK]
		}
		neighbors[i] = list
	}

	return &ItemCF{neighbors: neighbors, history: history}
}

func addCo(co map[int64]map[int64]int, i, j int64) {
	row, ok := co[i]
	if !ok {
		row = make(map[int64]int)
		co[i] = row
	}
	row[j]++
}

func (r *ItemCF) Name() string { return "recall.i2i" }

// Users 返回有行为记录的用户数。
func (r *ItemCF) Users() int { return len(r.history) }

// Recommend 实现 core.BehavioralRetriever。未知用户返回空结果。
func (r *ItemCF) Recommend(ctx context.Context, userID string, k int) ([]core.Candidate, error) {
	history, ok := r.history[userID]
	if !ok || k <= 0 {
		return nil, nil
	}
	watched := make(map[int64]struct{}, len(history))
	for _, id := range history {
		watched[id] = struct{}{}
	}

	scores := make(map[int64]float64)
	for _, i := range history {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, n := range r.neighbors[i] {
			if _, ok := watched[n.id]; ok {
				continue
			}
			scores[n.id] += n.sim
		}
	}

	out := make([]core.Candidate, 0, len(scores))
	for id, s := range scores {
		if s > 0 {
			out = append(out, core.Candidate{ItemID: id, Score: s})
		}
	}
	sortCandidates(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// sortCandidates 分数降序，同分按 ID 升序。
func sortCandidates(c []core.Candidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].ItemID < c[j].ItemID
	})
}
