package domain

import "github.com/shopspring/decimal"

// AccountData is the latest balance view of one trading account.
type AccountData struct {
	AccountID   string
	Balance     decimal.Decimal
	Frozen      decimal.Decimal
	AdapterName string
}

// VtAccountID is the composite account key.
func (a *AccountData) VtAccountID() string {
	return CompositeKey(a.AccountID, a.AdapterName)
}

// Available returns the balance not frozen by working orders.
func (a *AccountData) Available() decimal.Decimal {
	return a.Balance.Sub(a.Frozen)
}
