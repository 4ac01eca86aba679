package model

import "time"

// Role values stored in users.role.
const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// User represents an application user record as stored in the `users`
// table. Passwords are stored as bcrypt hashes only. The Role column
// holds either CUSTOMER or ADMIN; staff-only endpoints check it via the
// role claim carried in the access token.
//
// Fields:
//
//	ID           – primary key identifier.
//	FullName     – display name.
//	Email        – unique email address.
//	Phone        – contact number.
//	PasswordHash – bcrypt hashed password.
//	Role         – role name (CUSTOMER or ADMIN).
//	CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	FullName     string    // users.full_name
	Email        string    // users.email
	Phone        string    // users.phone
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
}
