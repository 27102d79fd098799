package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// 表达式可用的变量，均为动态类型。
var variables = []string{
	"mean_popularity", // top-K 平均热度
	"unique_genres",   // top-K 中不同类型数
	"genre_ratio",     // 类型 → 在 top-K 类型词中的占比
	"top_k",           // 实际参与评估的条数
	"intent",          // 解析后的意图
	"query",           // 请求查询
}

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		opts := make([]cel.EnvOption, 0, len(variables))
		for _, name := range variables {
			opts = append(opts, cel.Variable(name, cel.DynType))
		}
		celEnv, celEnvErr = cel.NewEnv(opts...)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的布尔表达式，使用 CEL (Common Expression Language) 语法。
// 编译一次，可并发多次求值。
//
// 示例：
//   - `mean_popularity > 0.8 && intent == "explore"`
//   - `unique_genres < 3`
//   - `"Horror" in genre_ratio && genre_ratio["Horror"] > 0.5`
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式；空表达式恒为 true。
func Compile(expr string) (*Program, error) {
	p := &Program{expr: expr}
	if expr == "" {
		return p, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return nil, fmt.Errorf("compile %q: expression must return bool, got %v", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	p.prg = prg
	return p, nil
}

// String 返回原始表达式。
func (p *Program) String() string { return p.expr }

// Eval 以给定变量求值；未提供的变量按 null 处理。
func (p *Program) Eval(vars map[string]any) (bool, error) {
	if p.prg == nil {
		return true, nil
	}
	input := make(map[string]any, len(variables))
	for _, name := range variables {
		input[name] = nil
	}
	for k, v := range vars {
		input[k] = v
	}
	out, _, err := p.prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: expression must return bool, got %T", p.expr, out.Value())
	}
	return result, nil
}
