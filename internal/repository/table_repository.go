package repository

import (
	"context"
	"database/sql"

	"github.com/Anchinlu/restaurant-reservation/internal/model"
)

// TableRepo provides read access to the branches and tables catalog.
// Catalog management is owned by a separate admin surface; the
// reservation service only browses active rows.
type TableRepo struct {
	db *sql.DB
}

// NewTableRepo returns a TableRepo bound to the given database.
func NewTableRepo(db *sql.DB) *TableRepo { return &TableRepo{db: db} }

// ListBranches returns all active branches ordered by name.
func (r *TableRepo) ListBranches(ctx context.Context) ([]model.Branch, error) {
	const q = `SELECT id, name, address, phone, is_active, created_at
               FROM branches WHERE is_active = TRUE ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Branch
	for rows.Next() {
		var b model.Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.Address, &b.Phone, &b.IsActive, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListByBranch returns the branch's active tables ordered by table number.
func (r *TableRepo) ListByBranch(ctx context.Context, branchID uint64) ([]model.Table, error) {
	const q = `SELECT id, branch_id, table_number, capacity, is_active, created_at
               FROM tables WHERE branch_id = ? AND is_active = TRUE ORDER BY table_number ASC`
	rows, err := r.db.QueryContext(ctx, q, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Table
	for rows.Next() {
		var t model.Table
		if err := rows.Scan(&t.ID, &t.BranchID, &t.TableNumber, &t.Capacity, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
