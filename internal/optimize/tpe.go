package optimize

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

// tpe는 Tree-structured Parzen Estimator 샘플러입니다.
// 파라미터마다 독립적인 1차원 밀도를 좋은 시행(l)과 나쁜 시행(g)으로 나누어 추정하고,
// l(x)/g(x)가 가장 큰 후보를 제안합니다.
type tpe struct {
	space      strategy.Space
	gamma      float64
	candidates int
	rng        *rand.Rand
}

func newTPE(space strategy.Space, gamma float64, candidates int, seed uint64) *tpe {
	return &tpe{
		space:      space,
		gamma:      gamma,
		candidates: candidates,
		rng:        rand.New(rand.NewPCG(seed, 0x5851f42d4c957f2d)),
	}
}

// random은 공간에서 균등하게 한 점을 샘플링합니다
func (t *tpe) random() strategy.Params {
	params := make(strategy.Params, len(t.space))
	for _, p := range t.space {
		switch p.Kind {
		case strategy.KindInt, strategy.KindFloat:
			lo, hi := bounds(p)
			params[p.Name] = quantize(p, lo+t.rng.Float64()*(hi-lo))
		default:
			choices := choicesOf(p)
			params[p.Name] = choices[t.rng.IntN(len(choices))]
		}
	}
	return params
}

// suggest는 관측된 시행으로 다음 파라미터를 제안합니다.
// 관측이 부족하면 균등 샘플링으로 대체합니다.
func (t *tpe) suggest(observed []Result, better func(a, b float64) bool) strategy.Params {
	if len(observed) < 2 {
		return t.random()
	}
	sorted := append([]Result(nil), observed...)
	sort.SliceStable(sorted, func(i, j int) bool { return better(sorted[i].Score, sorted[j].Score) })

	nGood := max(1, int(math.Ceil(t.gamma*float64(len(sorted)))))
	if nGood >= len(sorted) {
		nGood = len(sorted) - 1
	}
	good, bad := sorted[:nGood], sorted[nGood:]

	var (
		best      strategy.Params
		bestScore = math.Inf(-1)
	)
	for c := 0; c < t.candidates; c++ {
		candidate := make(strategy.Params, len(t.space))
		score := 0.0
		for _, p := range t.space {
			v, ll, lg := t.sampleParam(p, good, bad)
			candidate[p.Name] = v
			score += ll - lg
		}
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best
}

// sampleParam은 l에서 값을 샘플링하고 그 값의 log l, log g를 반환합니다
func (t *tpe) sampleParam(p strategy.Parameter, good, bad []Result) (any, float64, float64) {
	switch p.Kind {
	case strategy.KindInt, strategy.KindFloat:
		lo, hi := bounds(p)
		if hi <= lo {
			return quantize(p, lo), 0, 0
		}
		l := newParzen(internalValues(p, good), lo, hi)
		g := newParzen(internalValues(p, bad), lo, hi)
		x := l.sample(t.rng)
		v := quantize(p, x)
		xq := toInternal(p, v.(float64))
		return v, l.logPDF(xq), g.logPDF(xq)
	default:
		choices := choicesOf(p)
		l := categoricalWeights(p, choices, good)
		g := categoricalWeights(p, choices, bad)
		k := sampleIndex(t.rng, l)
		return choices[k], math.Log(l[k]), math.Log(g[k])
	}
}

// parzen은 관측점마다 가우시안 커널을 두고 구간 균등 사전분포를 더한 혼합 밀도입니다
type parzen struct {
	mus    []float64
	sigma  float64
	lo, hi float64
}

func newParzen(obs []float64, lo, hi float64) parzen {
	n := float64(len(obs))
	// 관측이 많을수록 대역폭을 줄입니다 (Scott 규칙 형태)
	sigma := (hi - lo) / math.Pow(n+1, 0.2) / 2
	sigma = math.Max(sigma, (hi-lo)*0.01)
	return parzen{mus: obs, sigma: sigma, lo: lo, hi: hi}
}

func (p parzen) sample(rng *rand.Rand) float64 {
	k := rng.IntN(len(p.mus) + 1)
	var x float64
	if k == len(p.mus) {
		x = p.lo + rng.Float64()*(p.hi-p.lo)
	} else {
		x = p.mus[k] + p.sigma*rng.NormFloat64()
	}
	return math.Min(math.Max(x, p.lo), p.hi)
}

func (p parzen) logPDF(x float64) float64 {
	density := 1 / (p.hi - p.lo)
	norm := 1 / (p.sigma * math.Sqrt(2*math.Pi))
	for _, mu := range p.mus {
		z := (x - mu) / p.sigma
		density += norm * math.Exp(-0.5*z*z)
	}
	return math.Log(density / float64(len(p.mus)+1))
}

// bounds는 탐색 내부 좌표(로그 스케일이면 log)의 범위입니다
func bounds(p strategy.Parameter) (float64, float64) {
	if p.Log {
		return math.Log(p.Min), math.Log(p.Max)
	}
	return p.Min, p.Max
}

func toInternal(p strategy.Parameter, v float64) float64 {
	if p.Log {
		return math.Log(v)
	}
	return v
}

// quantize는 내부 좌표 x를 실제 파라미터 값으로 변환하고 step/정수 격자에 맞춥니다
func quantize(p strategy.Parameter, x float64) any {
	v := x
	if p.Log {
		v = math.Exp(x)
	}
	if p.Step > 0 {
		v = p.Min + math.Round((v-p.Min)/p.Step)*p.Step
	}
	if p.Kind == strategy.KindInt {
		v = math.Round(v)
	} else {
		v = math.Round(v*1e10) / 1e10
	}
	return math.Min(math.Max(v, p.Min), p.Max)
}

func internalValues(p strategy.Parameter, results []Result) []float64 {
	out := make([]float64, 0, len(results))
	for _, r := range results {
		if v, ok := r.Params[p.Name].(float64); ok {
			out = append(out, toInternal(p, v))
		}
	}
	return out
}

func choicesOf(p strategy.Parameter) []any {
	if p.Kind == strategy.KindBool {
		return []any{false, true}
	}
	return p.Choices
}

// categoricalWeights는 선택지별 (횟수 + 1) / (n + K) 확률입니다
func categoricalWeights(p strategy.Parameter, choices []any, results []Result) []float64 {
	w := make([]float64, len(choices))
	for i := range w {
		w[i] = 1
	}
	for _, r := range results {
		for i, c := range choices {
			if r.Params[p.Name] == c {
				w[i]++
				break
			}
		}
	}
	total := float64(len(results) + len(choices))
	for i := range w {
		w[i] /= total
	}
	return w
}

func sampleIndex(rng *rand.Rand, weights []float64) int {
	u := rng.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if u < acc {
			return i
		}
	}
	return len(weights) - 1
}
