package types

import "math/big"

// Account holds the ledger balance tracked for a single address. The vault
// service runs over a single internal token, so one balance field suffices.
type Account struct {
	Nonce   uint64
	Balance *big.Int
}

// NewAccount returns an account with a zero, non-nil balance.
func NewAccount() *Account {
	return &Account{Balance: big.NewInt(0)}
}

// Clone returns a deep copy of the account so callers can mutate the copy
// without affecting the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := *a
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	} else {
		clone.Balance = big.NewInt(0)
	}
	return &clone
}
