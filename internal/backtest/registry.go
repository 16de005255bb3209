package backtest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Registry는 "이름@v버전" 형식으로 백엔드를 관리합니다
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry는 빈 백엔드 레지스트리를 생성합니다
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// DefaultRegistry는 기준, 열 기반, decimal 백엔드를 등록한 레지스트리를 반환합니다
func DefaultRegistry(limits Limits) *Registry {
	r := NewRegistry()
	for _, b := range []Backend{NewEngine(limits), NewColumnarEngine(limits), NewDecimalEngine(limits)} {
		r.MustRegister(b)
	}
	return r
}

// MustRegister는 Register와 같지만 실패하면 패닉합니다
func (r *Registry) MustRegister(b Backend) {
	if err := r.Register(b); err != nil {
		panic(err)
	}
}

// Register는 백엔드를 등록합니다. 같은 이름과 버전은 한 번만 등록할 수 있습니다.
func (r *Registry) Register(b Backend) error {
	name := b.Name()
	if _, _, err := splitVersion(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.backends[name]; exists {
		return fmt.Errorf("이미 등록된 백엔드입니다: %s", name)
	}
	r.backends[name] = b
	return nil
}

// Get은 백엔드를 조회합니다. 버전 없이 이름만 주면 가장 높은 버전을 반환합니다.
func (r *Registry) Get(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if b, ok := r.backends[name]; ok {
		return b, nil
	}
	if strings.Contains(name, "@") {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}

	var (
		best    Backend
		bestVer = -1
	)
	for full, b := range r.backends {
		base, ver, _ := splitVersion(full)
		if base == name && ver > bestVer {
			best, bestVer = b, ver
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return best, nil
}

// Names는 등록된 백엔드 이름을 정렬해 반환합니다
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func splitVersion(name string) (string, int, error) {
	base, ver, ok := strings.Cut(name, "@v")
	if !ok || base == "" {
		return "", 0, fmt.Errorf("백엔드 이름은 name@vN 형식이어야 합니다: %q", name)
	}
	n, err := strconv.Atoi(ver)
	if err != nil || n < 1 {
		return "", 0, fmt.Errorf("백엔드 버전이 올바르지 않습니다: %q", name)
	}
	return base, n, nil
}
