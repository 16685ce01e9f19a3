package domain

// Financials is the pharmacy-wide balance sheet. Exactly one row exists,
// created at migration time; every restock and ledger posting goes through it.
type Financials struct {
	ID           int64   `db:"id" json:"id"`
	TotalBudget  float64 `db:"total_budget" json:"total_budget"`
	TotalRevenue float64 `db:"total_revenue" json:"total_revenue"`
}
