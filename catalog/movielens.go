// Package catalog 加载 MovieLens 格式的物品目录与评分数据。
//
// movies.csv:  movieId,title,genres（genres 以 '|' 分隔）
// ratings.csv: userId,movieId,rating[,timestamp]
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rushteam/agentrec/core"
)

// noGenres 是 MovieLens 中表示无类型的占位值。
const noGenres = "(no genres listed)"

// Rating 是一条显式评分。
type Rating struct {
	UserID string
	ItemID int64
	Value  float64
}

// Catalog 是只读的物品目录，实现 core.ItemCatalog。
type Catalog struct {
	items map[int64]core.ItemMeta
	ids   []int64
}

// NewCatalog 由物品列表构建目录，重复 ID 以后出现的为准。
func NewCatalog(items []core.ItemMeta) *Catalog {
	c := &Catalog{items: make(map[int64]core.ItemMeta, len(items))}
	for _, it := range items {
		if _, exists := c.items[it.ID]; !exists {
			c.ids = append(c.ids, it.ID)
		}
		c.items[it.ID] = it
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return c
}

// Lookup 实现 core.ItemCatalog。
func (c *Catalog) Lookup(id int64) (core.ItemMeta, bool) {
	it, ok := c.items[id]
	return it, ok
}

// Len 返回物品数。
func (c *Catalog) Len() int { return len(c.ids) }

// Each 按 ID 升序遍历物品，fn 返回 false 时停止。
func (c *Catalog) Each(fn func(core.ItemMeta) bool) {
	for _, id := range c.ids {
		if !fn(c.items[id]) {
			return
		}
	}
}

// LoadMovies 从文件加载目录。
func LoadMovies(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeNotFound, "open movies", err)
	}
	defer f.Close()
	return ReadMovies(f)
}

// ReadMovies 解析 movies.csv 内容。
func ReadMovies(r io.Reader) (*Catalog, error) {
	var items []core.ItemMeta
	err := readCSV(r, []string{"movieId", "title", "genres"}, func(line int, cols map[string]string) error {
		id, err := strconv.ParseInt(cols["movieId"], 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: movieId: %w", line, err)
		}
		items = append(items, core.ItemMeta{
			ID:     id,
			Title:  cols["title"],
			Genres: SplitGenres(cols["genres"]),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewCatalog(items), nil
}

// LoadRatings 从文件加载评分。
func LoadRatings(path string) ([]Rating, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeNotFound, "open ratings", err)
	}
	defer f.Close()
	return ReadRatings(f)
}

// ReadRatings 解析 ratings.csv 内容。
func ReadRatings(r io.Reader) ([]Rating, error) {
	var out []Rating
	err := readCSV(r, []string{"userId", "movieId", "rating"}, func(line int, cols map[string]string) error {
		id, err := strconv.ParseInt(cols["movieId"], 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: movieId: %w", line, err)
		}
		v, err := strconv.ParseFloat(cols["rating"], 64)
		if err != nil {
			return fmt.Errorf("line %d: rating: %w", line, err)
		}
		out = append(out, Rating{UserID: cols["userId"], ItemID: id, Value: v})
		return nil
	})
	return out, err
}

// SplitGenres 拆分 '|' 分隔的类型串，去掉空白与占位值。
func SplitGenres(s string) []string {
	if s == "" || s == noGenres {
		return nil
	}
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" && p != noGenres {
			out = append(out, p)
		}
	}
	return out
}

// readCSV 按表头定位列，required 中的列必须存在。
func readCSV(r io.Reader, required []string, fn func(line int, cols map[string]string) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "read header", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "missing column "+col)
		}
	}

	cols := make(map[string]string, len(required))
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, fmt.Sprintf("line %d", line), err)
		}
		for _, col := range required {
			i := index[col]
			if i >= len(rec) {
				return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, fmt.Sprintf("line %d: short record", line))
			}
			cols[col] = strings.TrimSpace(rec[i])
		}
		if err := fn(line, cols); err != nil {
			return core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "parse", err)
		}
	}
}
