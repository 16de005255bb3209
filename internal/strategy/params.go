package strategy

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Params는 전략 템플릿에 전달되는 파라미터 값입니다.
// 값은 float64(int/float), string(categorical), bool 중 하나입니다.
type Params map[string]any

// Clone은 얕은 복사본을 반환합니다
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge는 p 위에 override를 덮어쓴 새 Params를 반환합니다
func (p Params) Merge(override Params) Params {
	out := p.Clone()
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Float은 숫자 파라미터를 읽습니다
func (p Params) Float(name string, def float64) float64 {
	switch v := p[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Int는 숫자 파라미터를 가장 가까운 정수로 읽습니다
func (p Params) Int(name string, def int) int {
	if _, ok := p[name]; !ok {
		return def
	}
	return int(math.Round(p.Float(name, float64(def))))
}

// String은 범주형 파라미터를 읽습니다
func (p Params) String(name, def string) string {
	if v, ok := p[name].(string); ok {
		return v
	}
	return def
}

// Bool은 불리언 파라미터를 읽습니다
func (p Params) Bool(name string, def bool) bool {
	if v, ok := p[name].(bool); ok {
		return v
	}
	return def
}

// Key는 이름순으로 정렬한 안정적인 문자열 표현입니다
func (p Params) Key() string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%v", k, p[k])
	}
	return strings.Join(parts, ",")
}

// Kind는 파라미터 종류입니다
type Kind string

const (
	KindInt         Kind = "int"
	KindFloat       Kind = "float"
	KindCategorical Kind = "categorical"
	KindBool        Kind = "bool"
)

// Parameter는 탐색 공간의 한 차원입니다
type Parameter struct {
	Name    string  `json:"name"`
	Kind    Kind    `json:"kind"`
	Min     float64 `json:"min,omitempty"`
	Max     float64 `json:"max,omitempty"`
	Step    float64 `json:"step,omitempty"`
	Choices []any   `json:"choices,omitempty"`
	Log     bool    `json:"log,omitempty"` // 로그 스케일 샘플링 (베이지안 전용)
}

// Validate는 파라미터 정의를 확인합니다
func (p Parameter) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("파라미터 이름이 비어있습니다")
	}
	switch p.Kind {
	case KindInt, KindFloat:
		if p.Min > p.Max {
			return fmt.Errorf("%s: min(%g) > max(%g)", p.Name, p.Min, p.Max)
		}
		if p.Step < 0 {
			return fmt.Errorf("%s: step은 음수일 수 없습니다", p.Name)
		}
		if p.Log && p.Min <= 0 {
			return fmt.Errorf("%s: 로그 스케일은 min > 0 이어야 합니다", p.Name)
		}
	case KindCategorical:
		if len(p.Choices) == 0 {
			return fmt.Errorf("%s: 선택지가 없습니다", p.Name)
		}
	case KindBool:
	default:
		return fmt.Errorf("%s: 알 수 없는 종류 %q", p.Name, p.Kind)
	}
	return nil
}

// Values는 그리드 탐색용 이산 값 목록을 반환합니다.
// 숫자형은 Min부터 Max까지 Step 간격이며 Max를 포함합니다.
func (p Parameter) Values() ([]any, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch p.Kind {
	case KindBool:
		return []any{false, true}, nil
	case KindCategorical:
		return append([]any(nil), p.Choices...), nil
	}

	step := p.Step
	if p.Kind == KindInt && step == 0 {
		step = 1
	}
	if step == 0 {
		if p.Min != p.Max {
			return nil, fmt.Errorf("%s: 그리드 탐색에는 step이 필요합니다", p.Name)
		}
		return []any{p.Min}, nil
	}

	var out []any
	for k := 0; ; k++ {
		v := p.Min + float64(k)*step
		if v > p.Max+step*1e-9 {
			break
		}
		if p.Kind == KindInt {
			v = math.Round(v)
		} else {
			v = math.Round(v*1e10) / 1e10
		}
		out = append(out, v)
	}
	return out, nil
}

// Space는 순서가 있는 파라미터 공간입니다
type Space []Parameter

// Validate는 각 파라미터와 이름 중복을 확인합니다
func (s Space) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, p := range s {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("중복된 파라미터: %s", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Size는 그리드 조합 수입니다
func (s Space) Size() (int, error) {
	total := 1
	for _, p := range s {
		vals, err := p.Values()
		if err != nil {
			return 0, err
		}
		total *= len(vals)
	}
	return total, nil
}

// Names는 선언 순서의 파라미터 이름입니다
func (s Space) Names() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Name
	}
	return out
}
