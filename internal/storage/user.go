package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"xui-vpn-bot/internal/models"
)

const userColumns = `id, tg_id, username, full_name, uuid, email, inbound_id, is_active, is_approved, up, down, created_at, updated_at`

// CreateUser inserts a new user and returns its id
func (s *Store) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `INSERT INTO users(tg_id, username, full_name, uuid, email, inbound_id, is_active, is_approved, up, down, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.TgID, user.Username, user.FullName, user.UUID, user.Email, user.InboundID,
		user.IsActive, user.IsApproved, user.Up, user.Down, now, now)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// GetUserByID returns a user by its row id
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByTgID returns a user by its Telegram id
func (s *Store) GetUserByTgID(ctx context.Context, tgID int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE tg_id = ?`, tgID)
	return scanUser(row)
}

// GetUserByEmail returns a user by the email used as the panel client key
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// ListApprovedUsers returns all users that have been granted access
func (s *Store) ListApprovedUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE is_approved = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// UpdateUserProfile refreshes the Telegram profile fields of a user
func (s *Store) UpdateUserProfile(ctx context.Context, id int64, username, fullName string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET username = ?, full_name = ?, updated_at = ? WHERE id = ?`,
		username, fullName, time.Now().Unix(), id)
	return err
}

// SetUserProvisioned stores the panel identity created for an approved user
func (s *Store) SetUserProvisioned(ctx context.Context, id int64, uuid, email string, inboundID int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET uuid = ?, email = ?, inbound_id = ?, is_approved = 1, is_active = 1, updated_at = ? WHERE id = ?`,
		uuid, email, inboundID, time.Now().Unix(), id)
	return err
}

// SetUserActive flips the enabled flag of a user
func (s *Store) SetUserActive(ctx context.Context, id int64, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().Unix(), id)
	return err
}

// UpdateUserTraffic stores the latest traffic counters reported by the panel
func (s *Store) UpdateUserTraffic(ctx context.Context, id, up, down int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET up = ?, down = ?, updated_at = ? WHERE id = ?`,
		up, down, time.Now().Unix(), id)
	return err
}

// DeleteUser removes a user and, via cascade, its access requests
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

func scanUser(scanner interface{ Scan(dest ...any) error }) (*models.User, error) {
	var user models.User
	var createdAt, updatedAt int64
	err := scanner.Scan(&user.ID, &user.TgID, &user.Username, &user.FullName, &user.UUID,
		&user.Email, &user.InboundID, &user.IsActive, &user.IsApproved,
		&user.Up, &user.Down, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}
