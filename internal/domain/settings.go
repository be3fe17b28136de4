package domain

import "github.com/shopspring/decimal"

// StoreSettings is the single global shipping/tax record read at checkout.
type StoreSettings struct {
	StoreName             string          `json:"storeName"`
	Currency              string          `json:"currency"`
	FlatShippingRate      decimal.Decimal `json:"flatShippingRate"`
	FreeShippingThreshold decimal.Decimal `json:"freeShippingThreshold"`
	// TaxRatePercent is a percentage, e.g. 8.5 for 8.5%.
	TaxRatePercent decimal.Decimal `json:"taxRate"`
}

// DefaultStoreSettings is used when no settings row has been stored yet.
func DefaultStoreSettings() StoreSettings {
	return StoreSettings{
		StoreName:             "Storefront",
		Currency:              "USD",
		FlatShippingRate:      decimal.RequireFromString("9.99"),
		FreeShippingThreshold: decimal.RequireFromString("75.00"),
		TaxRatePercent:        decimal.RequireFromString("8.5"),
	}
}
