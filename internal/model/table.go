package model

import "time"

// Table represents a physical table in a branch, a row in the `tables`
// table. Inactive tables are hidden from browsing and cannot be held.
//
// Fields:
//
//	ID          – primary key identifier.
//	BranchID    – branch the table belongs to.
//	TableNumber – human-facing table number, unique per branch.
//	Capacity    – number of seats at the table.
//	IsActive    – whether the table is currently in service.
//	CreatedAt   – creation timestamp.
type Table struct {
	ID          uint64    // tables.id
	BranchID    uint64    // tables.branch_id
	TableNumber uint32    // tables.table_number
	Capacity    uint32    // tables.capacity
	IsActive    bool      // tables.is_active
	CreatedAt   time.Time // tables.created_at
}
