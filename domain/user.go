package domain

// Roles recognised across the system.
const (
	RoleCustomer = "customer"
	RoleManager  = "manager"
	RoleDoctor   = "doctor"
)

type User struct {
	ID        string  `json:"id" db:"id"`
	Name      string  `json:"name" db:"name"`
	Email     string  `json:"email" db:"email"`
	Password  string  `json:"password,omitempty" db:"password"`
	Role      string  `json:"role" db:"role"`
	Debt      float64 `json:"debt" db:"debt"`
	CreatedAt string  `json:"created_at,omitempty" db:"created_at"`
}
