package filter

import (
	"context"
	"strings"

	"github.com/rushteam/agentrec/core"
)

// GenreExclude 过滤含有指定类型的物品，类型比较不区分大小写。
type GenreExclude struct {
	Genres []string
}

// NewGenreExclude 创建类型排除过滤器，空字符串会被忽略。
func NewGenreExclude(genres []string) *GenreExclude {
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return &GenreExclude{Genres: out}
}

func (f *GenreExclude) Name() string { return "filter.exclude_genres" }

func (f *GenreExclude) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	for _, g := range f.Genres {
		if item.HasGenre(g) {
			return true, nil
		}
	}
	return false, nil
}
