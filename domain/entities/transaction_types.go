package entities

// TransactionType represents the direction of a reserve transaction
type TransactionType string

const (
	TransactionTypeDeposit      TransactionType = "deposit"
	TransactionTypeDistribution TransactionType = "distribution"
)

// IsDebit returns true if the transaction reduces the treasury
func (tt TransactionType) IsDebit() bool {
	return tt == TransactionTypeDistribution
}

// IsCredit returns true if the transaction adds to the treasury
func (tt TransactionType) IsCredit() bool {
	return tt == TransactionTypeDeposit
}

// IsValid returns true for known transaction types
func (tt TransactionType) IsValid() bool {
	return tt.IsDebit() || tt.IsCredit()
}
