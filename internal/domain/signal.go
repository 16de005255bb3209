package domain

// Signals는 봉 단위 진입 시그널과 청산 플래그를 담습니다.
// 모든 슬라이스의 길이는 대응하는 캔들 수와 같습니다.
type Signals struct {
	Entry     []SignalType // +1 롱, -1 숏, 0 없음
	ExitLong  []bool       // 롱 포지션 청산 조건
	ExitShort []bool       // 숏 포지션 청산 조건
}

// NewSignals는 길이 n의 빈 시그널을 생성합니다
func NewSignals(n int) Signals {
	return Signals{
		Entry:     make([]SignalType, n),
		ExitLong:  make([]bool, n),
		ExitShort: make([]bool, n),
	}
}

// Len은 시그널 길이를 반환합니다
func (s Signals) Len() int {
	return len(s.Entry)
}

// Aligned는 세 슬라이스의 길이가 n과 같은지 확인합니다
func (s Signals) Aligned(n int) bool {
	return len(s.Entry) == n && len(s.ExitLong) == n && len(s.ExitShort) == n
}

// ExitFor는 주어진 포지션 방향에 대한 청산 여부를 반환합니다.
// 반대 방향 진입 시그널도 청산으로 취급합니다.
func (s Signals) ExitFor(side PositionSide, i int) bool {
	if side == LongPosition {
		return s.ExitLong[i] || s.Entry[i] == Short
	}
	return s.ExitShort[i] || s.Entry[i] == Long
}

// Slice는 [start, end) 구간의 시그널을 반환합니다
func (s Signals) Slice(start, end int) Signals {
	return Signals{
		Entry:     s.Entry[start:end],
		ExitLong:  s.ExitLong[start:end],
		ExitShort: s.ExitShort[start:end],
	}
}
