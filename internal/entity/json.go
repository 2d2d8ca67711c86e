package entity

import "github.com/shopspring/decimal"

// суммы в JSON - числами
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}
