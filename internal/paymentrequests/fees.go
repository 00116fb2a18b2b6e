package paymentrequests

import "github.com/shopspring/decimal"

// feeScale is the precision fees are rounded to, matching the smallest
// supported stablecoin unit.
const feeScale = 6

// DefaultFeeRate is the network fee withheld when none is configured.
var DefaultFeeRate = decimal.RequireFromString("0.01")

// splitFee returns the fee withheld from amount and what the merchant nets.
func splitFee(amount, rate decimal.Decimal) (fee, net decimal.Decimal) {
	fee = amount.Mul(rate).Round(feeScale)
	return fee, amount.Sub(fee)
}
