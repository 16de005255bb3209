package strategy

import (
	"fmt"
	"math"
	"strings"
)

// Frame은 조건 평가에 필요한 봉 단위 시계열 값을 제공합니다.
// 알 수 없는 키나 범위를 벗어난 인덱스는 math.NaN()을 반환해야 합니다.
type Frame interface {
	Value(key string, i int) float64
}

// Node는 조건 트리의 노드입니다. Compare, All, Any만 구현합니다.
type Node interface {
	// Eval은 i번째 봉에서 조건이 참인지 평가합니다
	Eval(f Frame, i int) bool
	String() string
	validate(r resolver) error
}

// OperandKind는 피연산자 종류입니다
type OperandKind string

const (
	OperandIndicator OperandKind = "indicator"
	OperandPrice     OperandKind = "price"
	OperandConst     OperandKind = "const"
)

// 가격 필드
const (
	PriceOpen   = "open"
	PriceHigh   = "high"
	PriceLow    = "low"
	PriceClose  = "close"
	PriceVolume = "volume"
)

var priceFields = map[string]bool{
	PriceOpen: true, PriceHigh: true, PriceLow: true, PriceClose: true, PriceVolume: true,
}

// Operand는 지표 라인, 가격 필드, 상수 중 하나를 가리킵니다
type Operand struct {
	Kind  OperandKind `json:"kind"`
	Ref   string      `json:"ref,omitempty"`  // 지표 ID 또는 가격 필드
	Line  string      `json:"line,omitempty"` // 지표 라인 이름
	Value float64     `json:"value,omitempty"`
}

// Ind는 지표 라인 피연산자를 만듭니다
func Ind(id, line string) Operand {
	return Operand{Kind: OperandIndicator, Ref: id, Line: line}
}

// Price는 가격 필드 피연산자를 만듭니다
func Price(field string) Operand {
	return Operand{Kind: OperandPrice, Ref: field}
}

// Const는 상수 피연산자를 만듭니다
func Const(v float64) Operand {
	return Operand{Kind: OperandConst, Value: v}
}

// Key는 Frame에서 값을 찾을 때 쓰는 키입니다 (예: "fast.value", "price.close")
func (o Operand) Key() string {
	switch o.Kind {
	case OperandIndicator:
		return SeriesKey(o.Ref, o.Line)
	case OperandPrice:
		return SeriesKey("price", o.Ref)
	}
	return ""
}

// SeriesKey는 지표 ID와 라인으로 시계열 키를 만듭니다
func SeriesKey(id, line string) string {
	return id + "." + line
}

func (o Operand) at(f Frame, i int) float64 {
	if o.Kind == OperandConst {
		return o.Value
	}
	if i < 0 {
		return math.NaN()
	}
	return f.Value(o.Key(), i)
}

func (o Operand) String() string {
	if o.Kind == OperandConst {
		return fmt.Sprintf("%g", o.Value)
	}
	return o.Key()
}

// Op는 비교 연산자입니다
type Op string

const (
	GT           Op = ">"
	LT           Op = "<"
	GTE          Op = ">="
	LTE          Op = "<="
	EQ           Op = "=="
	NEQ          Op = "!="
	CrossesAbove Op = "crosses_above"
	CrossesBelow Op = "crosses_below"
)

func (op Op) valid() bool {
	switch op {
	case GT, LT, GTE, LTE, EQ, NEQ, CrossesAbove, CrossesBelow:
		return true
	}
	return false
}

// Compare는 두 피연산자를 비교하는 리프 노드입니다.
// 크로스 연산자는 i-1 봉 하나만 참조하며, NaN이 있으면 항상 거짓입니다.
type Compare struct {
	Left  Operand `json:"left"`
	Op    Op      `json:"op"`
	Right Operand `json:"right"`
}

func (c Compare) Eval(f Frame, i int) bool {
	a, b := c.Left.at(f, i), c.Right.at(f, i)
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}

	switch c.Op {
	case GT:
		return a > b
	case LT:
		return a < b
	case GTE:
		return a >= b
	case LTE:
		return a <= b
	case EQ:
		return a == b
	case NEQ:
		return a != b
	case CrossesAbove, CrossesBelow:
		if i < 1 {
			return false
		}
		pa, pb := c.Left.at(f, i-1), c.Right.at(f, i-1)
		if math.IsNaN(pa) || math.IsNaN(pb) {
			return false
		}
		if c.Op == CrossesAbove {
			return pa <= pb && a > b
		}
		return pa >= pb && a < b
	}
	return false
}

func (c Compare) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
}

func (c Compare) validate(r resolver) error {
	if !c.Op.valid() {
		return fmt.Errorf("알 수 없는 연산자: %q", c.Op)
	}
	if err := r.check(c.Left); err != nil {
		return err
	}
	return r.check(c.Right)
}

// All은 모든 자식이 참일 때 참입니다 (AND)
type All []Node

func (a All) Eval(f Frame, i int) bool {
	for _, n := range a {
		if !n.Eval(f, i) {
			return false
		}
	}
	return len(a) > 0
}

func (a All) String() string { return join(a, " AND ") }

func (a All) validate(r resolver) error { return validateChildren(a, r) }

// Any는 자식 중 하나라도 참이면 참입니다 (OR)
type Any []Node

func (a Any) Eval(f Frame, i int) bool {
	for _, n := range a {
		if n.Eval(f, i) {
			return true
		}
	}
	return false
}

func (a Any) String() string { return join(a, " OR ") }

func (a Any) validate(r resolver) error { return validateChildren(a, r) }

func validateChildren(nodes []Node, r resolver) error {
	if len(nodes) == 0 {
		return fmt.Errorf("빈 조건 그룹")
	}
	for _, n := range nodes {
		if n == nil {
			return fmt.Errorf("nil 조건 노드")
		}
		if err := n.validate(r); err != nil {
			return err
		}
	}
	return nil
}

func join(nodes []Node, sep string) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// resolver는 지표 ID별 사용 가능한 라인 목록입니다
type resolver map[string][]string

func (r resolver) check(o Operand) error {
	switch o.Kind {
	case OperandConst:
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return fmt.Errorf("상수가 유한하지 않습니다: %g", o.Value)
		}
		return nil
	case OperandPrice:
		if !priceFields[o.Ref] {
			return fmt.Errorf("알 수 없는 가격 필드: %q", o.Ref)
		}
		return nil
	case OperandIndicator:
		lines, ok := r[o.Ref]
		if !ok {
			return fmt.Errorf("정의되지 않은 지표 참조: %q", o.Ref)
		}
		for _, l := range lines {
			if l == o.Line {
				return nil
			}
		}
		return fmt.Errorf("지표 %q에 라인 %q가 없습니다 (사용 가능: %s)", o.Ref, o.Line, strings.Join(lines, ", "))
	}
	return fmt.Errorf("알 수 없는 피연산자 종류: %q", o.Kind)
}
