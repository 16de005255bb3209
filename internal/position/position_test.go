package position

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanctcroman-boop/bybit-strategy-tester-v2-sub011/internal/domain"
)

func TestSizingQuantity(t *testing.T) {
	tests := []struct {
		name    string
		sizing  Sizing
		capital float64
		lev     float64
		price   float64
		want    float64
	}{
		{"all_in", Sizing{Mode: SizingAllIn}, 1000, 1, 100, 10},
		{"all_in leverage", Sizing{Mode: SizingAllIn}, 1000, 5, 100, 50},
		{"percent", Sizing{Mode: SizingPercent, Value: 25}, 1000, 2, 100, 5},
		{"fixed", Sizing{Mode: SizingFixed, Value: 200}, 1000, 1, 50, 4},
		{"fixed capped by capital", Sizing{Mode: SizingFixed, Value: 5000}, 1000, 1, 100, 10},
		{"step size", Sizing{Mode: SizingAllIn, StepSize: 0.5}, 1000, 1, 300, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.sizing.Validate())
			got, err := tt.sizing.Quantity(tt.capital, tt.lev, tt.price)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)

			dec, err := tt.sizing.QuantityDecimal(
				decimal.NewFromFloat(tt.capital), decimal.NewFromFloat(tt.lev), decimal.NewFromFloat(tt.price))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, dec.InexactFloat64(), 1e-9)
		})
	}
}

func TestSizingErrors(t *testing.T) {
	_, err := Sizing{Mode: SizingAllIn}.Quantity(0, 1, 100)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	err = Sizing{Mode: SizingPercent, Value: 150}.Validate()
	assert.ErrorIs(t, err, ErrInvalidSizing)
	var sErr *SizingError
	require.True(t, errors.As(err, &sErr))
	assert.Equal(t, SizingPercent, sErr.Mode)

	assert.ErrorIs(t, Sizing{Mode: "kelly"}.Validate(), ErrInvalidSizing)
}

func TestFillsAndLevels(t *testing.T) {
	assert.InDelta(t, 100.1, EntryFill(domain.LongPosition, 100, 0.001), 1e-12)
	assert.InDelta(t, 99.9, EntryFill(domain.ShortPosition, 100, 0.001), 1e-12)
	assert.InDelta(t, 99.9, ExitFill(domain.LongPosition, 100, 0.001), 1e-12)
	assert.InDelta(t, 100.1, ExitFill(domain.ShortPosition, 100, 0.001), 1e-12)

	assert.InDelta(t, 102, TakeProfitLevel(domain.LongPosition, 100, 2), 1e-12)
	assert.InDelta(t, 99, StopLossLevel(domain.LongPosition, 100, 1), 1e-12)
	assert.InDelta(t, 98, TakeProfitLevel(domain.ShortPosition, 100, 2), 1e-12)
	assert.InDelta(t, 101, StopLossLevel(domain.ShortPosition, 100, 1), 1e-12)
}

func TestPositionTrailing(t *testing.T) {
	p := Open(domain.ShortPosition, 100, 2, time.Time{}, 3, 0.2)
	assert.Equal(t, 100.0, p.Extreme)
	assert.Equal(t, 200.0, p.Notional())

	p.UpdateExtreme(101, 95)
	assert.Equal(t, 95.0, p.Extreme)
	assert.InDelta(t, 96.9, p.TrailingLevel(2), 1e-12)
	assert.InDelta(t, 10.0, p.UnrealizedPnL(95), 1e-12)
}
