package indicator

// 지표 출력 라인 이름
const (
	LineValue     = "value"
	LineMACD      = "macd"
	LineSignal    = "signal"
	LineHistogram = "histogram"
	LineUpper     = "upper"
	LineMiddle    = "middle"
	LineLower     = "lower"
	LineK         = "k"
	LineD         = "d"
	LineADX       = "adx"
	LinePlusDI    = "plus_di"
	LineMinusDI   = "minus_di"
	LineSAR       = "sar"
	LineTrend     = "trend"
)
