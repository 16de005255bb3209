package strategy

import (
	"fmt"
	"sort"
	"sync"
)

// Template은 파라미터로부터 전략 설정을 만드는 함수 타입입니다
type Template func(params Params) (Config, error)

// Preset은 이름이 붙은 전략 템플릿과 기본 탐색 공간입니다
type Preset struct {
	Name        string
	Description string
	Template    Template
	Defaults    Params
	Space       Space
}

// Registry는 사용 가능한 모든 전략 프리셋을 등록하고 관리합니다
type Registry struct {
	presets map[string]Preset
	mu      sync.RWMutex
}

// NewRegistry는 새로운 전략 레지스트리를 생성합니다
func NewRegistry() *Registry {
	return &Registry{
		presets: make(map[string]Preset),
	}
}

// Register는 새로운 프리셋을 레지스트리에 등록합니다
func (r *Registry) Register(p Preset) error {
	if p.Name == "" || p.Template == nil {
		return fmt.Errorf("프리셋에는 이름과 템플릿이 필요합니다")
	}
	if err := p.Space.Validate(); err != nil {
		return fmt.Errorf("프리셋 %s: %w", p.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.presets[p.Name]; exists {
		return fmt.Errorf("이미 등록된 전략: %s", p.Name)
	}
	r.presets[p.Name] = p
	return nil
}

// Get은 이름에 해당하는 프리셋을 반환합니다
func (r *Registry) Get(name string) (Preset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, exists := r.presets[name]
	if !exists {
		return Preset{}, fmt.Errorf("존재하지 않는 전략: %s", name)
	}
	return p, nil
}

// Create는 기본값 위에 params를 덮어써 검증된 설정을 생성합니다
func (r *Registry) Create(name string, params Params) (Config, error) {
	p, err := r.Get(name)
	if err != nil {
		return Config{}, err
	}
	return p.Build(params)
}

// ListStrategies는 사용 가능한 모든 전략 이름을 정렬해 반환합니다
func (r *Registry) ListStrategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build는 기본값과 params를 합쳐 템플릿을 실행하고 결과를 검증합니다
func (p Preset) Build(params Params) (Config, error) {
	merged := p.Defaults.Merge(params)
	cfg, err := p.Template(merged)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, p.Name, err)
	}
	if cfg.Name == "" {
		cfg.Name = p.Name
	}
	ApplyCommon(&cfg, merged)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// 모든 프리셋이 공유하는 파라미터 이름
const (
	ParamTakeProfit   = "take_profit"
	ParamStopLoss     = "stop_loss"
	ParamTrailingStop = "trailing_stop"
	ParamDirection    = "direction"
)

// ApplyCommon은 공통 청산/방향 파라미터가 있으면 설정에 반영합니다
func ApplyCommon(cfg *Config, params Params) {
	if _, ok := params[ParamTakeProfit]; ok {
		cfg.Exits.TakeProfitPct = params.Float(ParamTakeProfit, 0)
	}
	if _, ok := params[ParamStopLoss]; ok {
		cfg.Exits.StopLossPct = params.Float(ParamStopLoss, 0)
	}
	if _, ok := params[ParamTrailingStop]; ok {
		cfg.Exits.TrailingStopPct = params.Float(ParamTrailingStop, 0)
	}
	if d := params.String(ParamDirection, ""); d != "" {
		cfg.Direction = Direction(d)
	}
}
