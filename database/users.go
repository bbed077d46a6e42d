package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"waterlog/common"
	"waterlog/models"
)

const mysqlErrDuplicateEntry = 1062

// CreateUser stores a new account and returns its id.
func (d *Database) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, role, full_name, authority_id) VALUES (?, ?, ?, ?, ?)",
		u.Username, u.PasswordHash, u.Role, u.FullName, u.AuthorityID)
	common.LogResult("CreateUser", res, err, true)
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry {
		return 0, ErrDuplicate
	}
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return res.LastInsertId()
}

func (d *Database) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var (
		u           models.User
		authorityID sql.NullInt64
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, full_name, authority_id, created_at
		FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.FullName, &authorityID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if authorityID.Valid {
		u.AuthorityID = &authorityID.Int64
	}
	return &u, nil
}

func (d *Database) ListAuthorities(ctx context.Context) ([]models.Authority, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT id, name, description, contact_email FROM authorities ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list authorities: %w", err)
	}
	defer rows.Close()

	authorities := []models.Authority{}
	for rows.Next() {
		var (
			a           models.Authority
			desc, email sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Name, &desc, &email); err != nil {
			return nil, fmt.Errorf("failed to scan authority: %w", err)
		}
		a.Description = nullString(desc)
		a.ContactEmail = nullString(email)
		authorities = append(authorities, a)
	}
	return authorities, rows.Err()
}
