package critic

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/agentrec/core"
	"github.com/rushteam/agentrec/pkg/dsl"
)

// RuleFile 是规则文件的结构：
//
//	rules:
//	  - name: too_much_horror
//	    when: '"Horror" in genre_ratio && genre_ratio["Horror"] > 0.5 && intent != "search"'
//	    rerank: true
//	    adjustments:
//	      exclude_genres: ["Horror"]
type RuleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec 是单条规则的配置。
type RuleSpec struct {
	Name        string         `yaml:"name"`
	When        string         `yaml:"when"`
	Rerank      bool           `yaml:"rerank"`
	Adjustments map[string]any `yaml:"adjustments"`
}

// Rule 是编译后的规则。
type Rule struct {
	Name        string
	When        *dsl.Program
	Rerank      bool
	Adjustments core.Adjustments
}

// RuleSet 是一组编译后的规则，加载后只读，可并发求值。
type RuleSet struct {
	rules []Rule
}

// LoadRules 从 YAML 文件加载规则；path 为空时返回空规则集。
func LoadRules(path string, noveltyCeiling float64) (*RuleSet, error) {
	if path == "" {
		return &RuleSet{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}
	return ParseRules(data, noveltyCeiling)
}

// ParseRules 解析并编译规则；表达式无法编译或调整项非法时返回错误。
func ParseRules(data []byte, noveltyCeiling float64) (*RuleSet, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, "parse rules", err)
	}

	rs := &RuleSet{rules: make([]Rule, 0, len(file.Rules))}
	seen := make(map[string]struct{}, len(file.Rules))
	for i, def := range file.Rules {
		if def.Name == "" {
			return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, fmt.Sprintf("rule #%d: name is required", i))
		}
		if _, dup := seen[def.Name]; dup {
			return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, fmt.Sprintf("rule %s: duplicate name", def.Name))
		}
		seen[def.Name] = struct{}{}

		prg, err := dsl.Compile(def.When)
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, "rule "+def.Name, err)
		}
		adj, dropped := Sanitize(def.Adjustments, noveltyCeiling)
		if len(dropped) > 0 {
			return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, fmt.Sprintf("rule %s: invalid adjustments %v", def.Name, dropped))
		}
		rs.rules = append(rs.rules, Rule{Name: def.Name, When: prg, Rerank: def.Rerank, Adjustments: adj})
	}
	return rs, nil
}

// Len 返回规则数。
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Evaluate 依次求值，命中的规则按文件顺序合并为一个 Layer。
// 求值出错的规则视为未命中，并记录 trace。
func (rs *RuleSet) Evaluate(vars map[string]any) Layer {
	layer := Layer{Name: "rules", Adjustments: core.Adjustments{}}
	if rs == nil {
		return layer
	}
	for _, r := range rs.rules {
		ok, err := r.When.Eval(vars)
		if err != nil {
			layer.Trace = append(layer.Trace, "rule_error:"+r.Name)
			continue
		}
		if !ok {
			continue
		}
		merged := Merge(Layer{Adjustments: layer.Adjustments}, Layer{Adjustments: r.Adjustments})
		layer.Adjustments = merged.Adjustments
		layer.NeedsRerank = layer.NeedsRerank || r.Rerank
		layer.Trace = append(layer.Trace, "rule:"+r.Name)
	}
	return layer
}
