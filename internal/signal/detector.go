package signal

import (
	"fmt"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
)

// Evaluate는 [start, end) 구간의 각 봉에 대해 진입 시그널과 청산 플래그를 계산합니다.
// 반환되는 Signals의 인덱스 0은 start 봉에 대응합니다.
//
// 같은 봉에서 롱과 숏 진입이 모두 참이면 서로 상쇄되어 시그널이 없습니다.
// Direction이 허용하지 않는 방향의 진입은 무시합니다.
func Evaluate(cfg strategy.Config, f strategy.Frame, start, end int) domain.Signals {
	out := domain.NewSignals(end - start)
	allowLong, allowShort := cfg.Direction.AllowsLong(), cfg.Direction.AllowsShort()

	for i := start; i < end; i++ {
		k := i - start
		long := allowLong && eval(cfg.LongEntry, f, i)
		short := allowShort && eval(cfg.ShortEntry, f, i)

		switch {
		case long && !short:
			out.Entry[k] = domain.Long
		case short && !long:
			out.Entry[k] = domain.Short
		}
		out.ExitLong[k] = eval(cfg.LongExit, f, i)
		out.ExitShort[k] = eval(cfg.ShortExit, f, i)
	}
	return out
}

func eval(n strategy.Node, f strategy.Frame, i int) bool {
	return n != nil && n.Eval(f, i)
}

// Detector는 한 캔들 시리즈와 전략 설정에 대한 시그널 감지기입니다
type Detector struct {
	cfg   strategy.Config
	frame *Frame
}

// NewDetector는 설정을 검증하고 지표 Frame을 구성한 감지기를 생성합니다
func NewDetector(cfg strategy.Config, candles domain.CandleList) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	frame, err := BuildFrame(cfg, candles, nil)
	if err != nil {
		return nil, fmt.Errorf("지표 계산 실패: %w", err)
	}
	return &Detector{cfg: cfg, frame: frame}, nil
}

// Detect는 전체 시리즈의 시그널을 반환합니다
func (d *Detector) Detect() domain.Signals {
	return Evaluate(d.cfg, d.frame, 0, d.frame.Len())
}

// DetectRange는 [start, end) 구간의 시그널을 반환합니다
func (d *Detector) DetectRange(start, end int) (domain.Signals, error) {
	if start < 0 || end > d.frame.Len() || start >= end {
		return domain.Signals{}, fmt.Errorf("유효하지 않은 구간: [%d, %d) / %d", start, end, d.frame.Len())
	}
	return Evaluate(d.cfg, d.frame, start, end), nil
}
