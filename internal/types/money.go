// README: Common money value object used across modules.
package types

// Money is an amount in the currency's minor unit (centavos for MZN).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// DefaultCurrency is used when a stored price carries no currency.
const DefaultCurrency = "MZN"
