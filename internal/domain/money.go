package domain

import "fmt"

// Money is an amount in minor units of Currency.
type Money struct {
	Amount   int64
	Currency string
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// String renders the amount with two decimals, e.g. "5.00 EUR".
func (m Money) String() string {
	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, m.Currency)
}

// CancellationFee is the outcome of the cancellation policy. It is computed
// per call and never persisted by the core.
type CancellationFee struct {
	Fee     Money
	Charged bool
}

// FreeCancellation returns a fee that charges nothing.
func FreeCancellation(currency string) CancellationFee {
	return CancellationFee{Fee: Money{Currency: currency}}
}

// ChargedCancellation returns a fee charging amount minor units.
func ChargedCancellation(amount int64, currency string) CancellationFee {
	return CancellationFee{Fee: Money{Amount: amount, Currency: currency}, Charged: true}
}
