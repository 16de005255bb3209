package marketdata

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
)

// ClickHouseConfig는 ClickHouse 접속 설정입니다
type ClickHouseConfig struct {
	Addr     []string
	Database string
	Table    string
	Username string
	Password string
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate는 접속 설정을 확인합니다. 테이블 이름은 쿼리에 직접 들어가므로 식별자만 허용합니다.
func (c ClickHouseConfig) Validate() error {
	if len(c.Addr) == 0 {
		return fmt.Errorf("ClickHouse 주소가 필요합니다")
	}
	if !identifier.MatchString(c.Database) || !identifier.MatchString(c.Table) {
		return fmt.Errorf("ClickHouse 데이터베이스/테이블 이름이 올바르지 않습니다: %q.%q", c.Database, c.Table)
	}
	return nil
}

// rowScanner는 clickhouse 결과 행 중 필요한 부분입니다
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// ClickHouseSource는 (symbol, interval, open_time_ms) 정렬 키를 가진 캔들 테이블에서 읽습니다.
//
// 테이블 컬럼: symbol, interval, open_time_ms, open, high, low, close, volume, close_time_ms
type ClickHouseSource struct {
	conn   clickhouse.Conn
	table  string
	logger *zap.Logger
}

// NewClickHouseSource는 ClickHouse에 접속하고 ping으로 연결을 확인합니다
func NewClickHouseSource(ctx context.Context, cfg ClickHouseConfig, logger *zap.Logger) (*ClickHouseSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("ClickHouse 연결 실패: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ClickHouse ping 실패: %w", err)
	}

	return &ClickHouseSource{
		conn:   conn,
		table:  cfg.Database + "." + cfg.Table,
		logger: logger,
	}, nil
}

// Close는 연결을 닫습니다
func (s *ClickHouseSource) Close() error {
	return s.conn.Close()
}

// Candles는 Query 조건의 캔들을 시간순으로 조회합니다
func (s *ClickHouseSource) Candles(ctx context.Context, q Query) (domain.CandleList, error) {
	query, args := buildQuery(s.table, q)

	started := time.Now()
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ClickHouse 조회 실패: %w", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows, q)
	if err != nil {
		return nil, err
	}
	s.logger.Info("캔들 조회 완료",
		zap.String("symbol", q.Symbol),
		zap.String("interval", string(q.Interval)),
		zap.Int("count", len(candles)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return candles, nil
}

func buildQuery(table string, q Query) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT open_time_ms, open, high, low, close, volume, close_time_ms FROM %s FINAL WHERE symbol = ? AND interval = ?", table)
	args := []any{q.Symbol, string(q.Interval)}
	if !q.Start.IsZero() {
		sb.WriteString(" AND open_time_ms >= ?")
		args = append(args, uint64(q.Start.UnixMilli()))
	}
	if !q.End.IsZero() {
		sb.WriteString(" AND open_time_ms < ?")
		args = append(args, uint64(q.End.UnixMilli()))
	}
	sb.WriteString(" ORDER BY open_time_ms")
	return sb.String(), args
}

func scanCandles(rows rowScanner, q Query) (domain.CandleList, error) {
	var candles domain.CandleList
	for rows.Next() {
		var (
			openMs, closeMs                 uint64
			open, high, low, closeP, volume float64
		)
		if err := rows.Scan(&openMs, &open, &high, &low, &closeP, &volume, &closeMs); err != nil {
			return nil, fmt.Errorf("캔들 행 스캔 실패: %w", err)
		}
		candles = append(candles, domain.Candle{
			OpenTime:  time.UnixMilli(int64(openMs)).UTC(),
			CloseTime: time.UnixMilli(int64(closeMs)).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closeP,
			Volume:    volume,
			Symbol:    q.Symbol,
			Interval:  q.Interval,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("캔들 조회 중 에러: %w", err)
	}
	if len(candles) == 0 {
		return nil, ErrNoData
	}
	return candles, nil
}
