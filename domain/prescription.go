package domain

type Prescription struct {
	ID         string `db:"id" json:"id"`
	UserID     string `db:"user_id" json:"user_id"`
	DoctorID   string `db:"doctor_id" json:"doctor_id"`
	IssuedDate string `db:"issued_date" json:"issued_date"`
	IsActive   bool   `db:"is_active" json:"is_active"`
}

// PrescriptionItem tracks the refill allowance of one medication on a
// prescription. Each fulfillment of quantity q consumes q remaining periods.
type PrescriptionItem struct {
	ID               string `db:"id" json:"id"`
	PrescriptionID   string `db:"prescription_id" json:"prescription_id"`
	MedID            string `db:"med_id" json:"med_id"`
	InitialPeriods   int64  `db:"initial_periods" json:"initial_periods"`
	RemainingPeriods int64  `db:"remaining_periods" json:"remaining_periods"`
}
