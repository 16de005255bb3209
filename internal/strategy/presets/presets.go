// Package presets는 기본 제공 전략 프리셋을 한 레지스트리에 모읍니다.
package presets

import (
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy/bollinger"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy/emacross"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy/macdsarema"
	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/strategy/rsireversion"
)

// NewRegistry는 모든 기본 프리셋이 등록된 레지스트리를 생성합니다
func NewRegistry() (*strategy.Registry, error) {
	registry := strategy.NewRegistry()
	for _, register := range []func(*strategy.Registry) error{
		emacross.RegisterStrategy,
		rsireversion.RegisterStrategy,
		macdsarema.RegisterStrategy,
		bollinger.RegisterStrategy,
	} {
		if err := register(registry); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
