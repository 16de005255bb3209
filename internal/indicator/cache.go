package indicator

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Cache는 명세 키별로 지표 결과를 캐싱하는 범용 저장소입니다.
// 한 캔들 시리즈 전체에 대해 계산된 결과만 담으며, 동시 접근에 안전합니다.
type Cache struct {
	prices  []PriceData
	results map[string][]Result // 명세 키를 키로 하는 결과 맵
	mutex   sync.RWMutex        // 동시성 제어
	logger  *zap.Logger
}

// NewCache는 가격 시리즈에 대한 새로운 지표 캐시를 생성합니다
func NewCache(prices []PriceData, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		prices:  prices,
		results: make(map[string][]Result),
		logger:  logger,
	}
}

// Get은 명세에 해당하는 결과를 반환하고, 없으면 계산 후 캐싱합니다
func (c *Cache) Get(spec Spec) ([]Result, error) {
	key := spec.Key()

	c.mutex.RLock()
	results, ok := c.results[key]
	c.mutex.RUnlock()
	if ok {
		return results, nil
	}

	ind, err := New(spec)
	if err != nil {
		return nil, fmt.Errorf("지표 생성 실패 '%s': %w", key, err)
	}
	results, err = ind.Calculate(c.prices)
	if err != nil {
		return nil, fmt.Errorf("지표 '%s' 계산 실패: %w", key, err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	// 다른 고루틴이 먼저 저장했다면 그 결과를 사용합니다
	if existing, ok := c.results[key]; ok {
		return existing, nil
	}
	c.results[key] = results
	c.logger.Debug("지표 계산 완료", zap.String("indicator", key), zap.Int("results", len(results)))
	return results, nil
}

// Line은 명세의 특정 라인을 float 배열로 반환합니다
func (c *Cache) Line(spec Spec, line string) ([]float64, error) {
	results, err := c.Get(spec)
	if err != nil {
		return nil, err
	}
	return ExtractLine(results, line), nil
}

// Len은 캐싱된 지표 수입니다
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.results)
}
