package critic

import (
	"strings"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pkg/conv"
)

// Layer 是单个评审者的输出，与 core.Verdict 结构相同。
type Layer struct {
	Name        string
	NeedsRerank bool
	Adjustments core.Adjustments
	Trace       []string
}

// Merge 按顺序合并各层：
//   - NeedsRerank 取或
//   - Adjustments 后面的层覆盖前面的层；exclude_genres 取并集
//   - Trace 按顺序拼接
//
// 调用方把强约束层放在最后。
func Merge(layers ...Layer) core.Verdict {
	v := core.Verdict{Adjustments: core.Adjustments{}, Trace: []string{}}
	for _, l := range layers {
		v.NeedsRerank = v.NeedsRerank || l.NeedsRerank
		for k, val := range l.Adjustments {
			if k == core.AdjustExcludeGenres {
				v.Adjustments[k] = unionGenres(v.Adjustments.Strings(k), conv.ToStringSlice(val))
				continue
			}
			v.Adjustments[k] = val
		}
		v.Trace = append(v.Trace, l.Trace...)
	}
	return v
}

// unionGenres 合并类型列表并去重（不区分大小写），保留首次出现的写法。
func unionGenres(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, g := range list {
			key := strings.ToLower(g)
			if _, ok := seen[key]; ok || g == "" {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, g)
		}
	}
	return out
}
