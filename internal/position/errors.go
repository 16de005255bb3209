package position

import "fmt"

// Error 타입들은 포지션 계산 중 발생할 수 있는 에러를 정의합니다
var (
	ErrInsufficientBalance = fmt.Errorf("잔고가 부족합니다")
	ErrInvalidSizing       = fmt.Errorf("잘못된 포지션 사이즈 설정입니다")
)

// SizingError는 사이즈 설정 에러를 확장한 구조체입니다
type SizingError struct {
	Mode SizingMode
	Err  error
}

// Error는 error 인터페이스를 구현합니다
func (e *SizingError) Error() string {
	if e.Mode != "" {
		return fmt.Sprintf("사이즈 에러 [모드: %s]: %v", e.Mode, e.Err)
	}
	return fmt.Sprintf("사이즈 에러: %v", e.Err)
}

// Unwrap은 내부 에러를 반환합니다 (errors.Is/As 지원을 위함)
func (e *SizingError) Unwrap() error {
	return e.Err
}
