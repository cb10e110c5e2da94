package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ContractSpec carries the reference data that converts price distance into
// currency: pnl = price_diff / tick_size * tick_value * quantity.
type ContractSpec struct {
	ContractID string
	TickSize   decimal.Decimal
	TickValue  decimal.Decimal
}

func (c ContractSpec) Validate() error {
	if c.ContractID == "" {
		return fmt.Errorf("%w: contract id is empty", ErrInvalidConfig)
	}
	if c.TickSize.Sign() <= 0 {
		return fmt.Errorf("%w: tick size must be positive", ErrInvalidConfig)
	}
	if c.TickValue.Sign() <= 0 {
		return fmt.Errorf("%w: tick value must be positive", ErrInvalidConfig)
	}
	return nil
}
