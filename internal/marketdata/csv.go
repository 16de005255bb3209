package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
)

// CSVSource는 헤더가 있는 CSV 파일에서 캔들을 읽습니다.
// 필수 컬럼: open_time, open, high, low, close. 선택 컬럼: volume, close_time.
// 시간 컬럼은 밀리초 유닉스 시간 또는 RFC3339 문자열입니다.
type CSVSource struct {
	Path string
}

// NewCSVSource는 새로운 CSV 소스를 생성합니다
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

// Candles는 파일 전체를 읽고 Query 구간의 캔들을 반환합니다
func (s *CSVSource) Candles(ctx context.Context, q Query) (domain.CandleList, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("CSV 파일 열기 실패: %w", err)
	}
	defer f.Close()
	return ReadCSV(ctx, f, q)
}

// ReadCSV는 r에서 캔들을 읽습니다
func ReadCSV(ctx context.Context, r io.Reader, q Query) (domain.CandleList, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("CSV 헤더 읽기 실패: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"open_time", "open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV 필수 컬럼 누락: %s", required)
		}
	}

	step := domain.TimeIntervalToDuration(q.Interval)
	var candles domain.CandleList
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSV %d행 읽기 실패: %w", line, err)
		}

		c, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("CSV %d행: %w", line, err)
		}
		if !q.contains(c.OpenTime) {
			continue
		}
		if c.CloseTime.IsZero() && step > 0 {
			c.CloseTime = c.OpenTime.Add(step - time.Millisecond)
		}
		c.Symbol = q.Symbol
		c.Interval = q.Interval
		candles = append(candles, c)
	}
	if len(candles) == 0 {
		return nil, ErrNoData
	}
	return candles, nil
}

func parseRecord(record []string, cols map[string]int) (domain.Candle, error) {
	var c domain.Candle
	field := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[i]), true
	}
	number := func(name string) (float64, error) {
		v, ok := field(name)
		if !ok {
			return 0, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%s 값 파싱 실패 %q: %w", name, v, err)
		}
		return f, nil
	}

	raw, _ := field("open_time")
	openTime, err := parseTime(raw)
	if err != nil {
		return c, err
	}
	c.OpenTime = openTime
	if raw, ok := field("close_time"); ok && raw != "" {
		if c.CloseTime, err = parseTime(raw); err != nil {
			return c, err
		}
	}

	for _, target := range []struct {
		name string
		dst  *float64
	}{
		{"open", &c.Open}, {"high", &c.High}, {"low", &c.Low}, {"close", &c.Close}, {"volume", &c.Volume},
	} {
		if *target.dst, err = number(target.name); err != nil {
			return c, err
		}
	}
	return c, nil
}

func parseTime(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("시간 파싱 실패 %q: %w", raw, err)
	}
	return t.UTC(), nil
}

// WriteCSV는 캔들을 ReadCSV가 읽을 수 있는 형식으로 기록합니다
func WriteCSV(w io.Writer, candles domain.CandleList) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"open_time", "open", "high", "low", "close", "volume", "close_time"}); err != nil {
		return err
	}
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, c := range candles {
		closeTime := ""
		if !c.CloseTime.IsZero() {
			closeTime = strconv.FormatInt(c.CloseTime.UnixMilli(), 10)
		}
		record := []string{
			strconv.FormatInt(c.OpenTime.UnixMilli(), 10),
			format(c.Open), format(c.High), format(c.Low), format(c.Close), format(c.Volume),
			closeTime,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
