package domain

type Medication struct {
	ID                   string  `db:"id" json:"id"`
	Name                 string  `db:"name" json:"name"`
	ActiveIngredient     string  `db:"active_ingredient" json:"active_ingredient"`
	Category             string  `db:"category" json:"category"`
	DosageInstructions   string  `db:"dosage_instructions" json:"dosage_instructions"`
	StockQuantity        int64   `db:"stock_quantity" json:"stock_quantity"`
	RequiresPrescription bool    `db:"requires_prescription" json:"requires_prescription"`
	RetailPrice          float64 `db:"retail_price" json:"retail_price"`
	WholesalePrice       float64 `db:"wholesale_price" json:"wholesale_price"`
}
