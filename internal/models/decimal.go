package models

import "github.com/shopspring/decimal"

func init() {
	// Fees and amounts are JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
}
