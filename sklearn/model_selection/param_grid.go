package model_selection

import (
	"sort"

	"github.com/petrophysics/sonicdt/pkg/errors"
)

// ParamGrid はハイパーパラメータ名から候補値の一覧への写像
type ParamGrid map[string][]interface{}

// Validate は空のグリッドや候補の無いパラメータを拒否する
func (g ParamGrid) Validate() error {
	if len(g) == 0 {
		return errors.NewValidationError("param_grid", "must not be empty", nil)
	}
	for name, values := range g {
		if len(values) == 0 {
			return errors.NewValidationError(name, "parameter grid has no candidate values", values)
		}
	}
	return nil
}

// Len は候補の組み合わせ数を返す
func (g ParamGrid) Len() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, values := range g {
		n *= len(values)
	}
	return n
}

// Candidates は全ての組み合わせを返す。キーを辞書順に並べ、最後のキーが最も速く
// 変化する直積順なので、順序は常に同じになる。
func (g ParamGrid) Candidates() []map[string]interface{} {
	if len(g) == 0 {
		return nil
	}
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	candidates := []map[string]interface{}{{}}
	for _, key := range keys {
		next := make([]map[string]interface{}, 0, len(candidates)*len(g[key]))
		for _, base := range candidates {
			for _, v := range g[key] {
				c := make(map[string]interface{}, len(base)+1)
				for k, bv := range base {
					c[k] = bv
				}
				c[key] = v
				next = append(next, c)
			}
		}
		candidates = next
	}
	return candidates
}
