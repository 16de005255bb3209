// Package logging은 설정값으로 zap 로거를 만듭니다.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New는 level(debug, info, warn, error)과 format(console, json)으로 로거를 생성합니다.
// console은 개발용 설정, json은 운영용 설정을 기반으로 합니다.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("로그 레벨 파싱 실패: %w", err)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "console", "":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("알 수 없는 로그 형식: %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("로거 생성 실패: %w", err)
	}
	return logger, nil
}
