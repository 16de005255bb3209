package indicator

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// 지원하는 지표 유형
const (
	TypeSMA        = "SMA"
	TypeEMA        = "EMA"
	TypeRSI        = "RSI"
	TypeMACD       = "MACD"
	TypeBollinger  = "BB"
	TypeATR        = "ATR"
	TypeStochastic = "STOCH"
	TypeADX        = "ADX"
	TypeSAR        = "SAR"
)

// Spec은 지표 명세를 나타냅니다
type Spec struct {
	Type   string             `json:"type"`   // 지표 유형 (EMA, MACD, SAR 등)
	Params map[string]float64 `json:"params"` // 지표 파라미터
}

// Key는 유형과 정렬된 파라미터로 만든 캐시 키입니다.
// 같은 Key를 가진 명세는 같은 결과를 냅니다.
func (s Spec) Key() string {
	names := make([]string, 0, len(s.Params))
	for name := range s.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(strings.ToUpper(s.Type))
	b.WriteByte('(')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%g", name, s.Params[name])
	}
	b.WriteByte(')')
	return b.String()
}

// New는 지표 명세에 따라 지표 인스턴스를 생성합니다.
// 누락된 파라미터는 관례적인 기본값을 사용합니다.
func New(spec Spec) (Indicator, error) {
	p := params(spec.Params)
	switch strings.ToUpper(spec.Type) {
	case TypeSMA:
		period, err := p.int("period", 20)
		if err != nil {
			return nil, err
		}
		return NewSMA(period), nil

	case TypeEMA:
		period, err := p.int("period", 20)
		if err != nil {
			return nil, err
		}
		return NewEMA(period), nil

	case TypeRSI:
		period, err := p.int("period", 14)
		if err != nil {
			return nil, err
		}
		return NewRSI(period), nil

	case TypeMACD:
		short, err := p.int("fast", 12)
		if err != nil {
			return nil, err
		}
		long, err := p.int("slow", 26)
		if err != nil {
			return nil, err
		}
		signal, err := p.int("signal", 9)
		if err != nil {
			return nil, err
		}
		return NewMACD(short, long, signal), nil

	case TypeBollinger:
		period, err := p.int("period", 20)
		if err != nil {
			return nil, err
		}
		return NewBollinger(period, p.float("mult", 2)), nil

	case TypeATR:
		period, err := p.int("period", 14)
		if err != nil {
			return nil, err
		}
		return NewATR(period), nil

	case TypeStochastic:
		k, err := p.int("k", 14)
		if err != nil {
			return nil, err
		}
		smooth, err := p.int("smooth", 3)
		if err != nil {
			return nil, err
		}
		d, err := p.int("d", 3)
		if err != nil {
			return nil, err
		}
		return NewStochastic(k, smooth, d), nil

	case TypeADX:
		period, err := p.int("period", 14)
		if err != nil {
			return nil, err
		}
		return NewADX(period), nil

	case TypeSAR:
		return NewSAR(p.float("af_initial", 0.02), p.float("af_max", 0.2)), nil

	default:
		return nil, fmt.Errorf("지원하지 않는 지표 유형: %s", spec.Type)
	}
}

type params map[string]float64

func (p params) float(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// int는 정수 파라미터를 읽습니다. 소수부가 있으면 에러입니다.
func (p params) int(name string, def int) (int, error) {
	v, ok := p[name]
	if !ok {
		return def, nil
	}
	if v != math.Trunc(v) {
		return 0, &ValidationError{Field: name, Err: fmt.Errorf("정수가 아닌 값: %g", v)}
	}
	return int(v), nil
}
