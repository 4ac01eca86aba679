package model

import "time"

// Branch is a restaurant location, a row in the `branches` table. Each
// branch owns a set of tables that customers can reserve.
//
// Fields:
//
//	ID        – primary key identifier.
//	Name      – display name of the branch.
//	Address   – street address shown to customers.
//	Phone     – contact number.
//	IsActive  – whether the branch accepts reservations.
//	CreatedAt – creation timestamp.
type Branch struct {
	ID        uint64    // branches.id
	Name      string    // branches.name
	Address   string    // branches.address
	Phone     string    // branches.phone
	IsActive  bool      // branches.is_active
	CreatedAt time.Time // branches.created_at
}
