package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"xui-vpn-bot/internal/models"
)

const requestColumns = `id, user_id, status, admin_id, created_at, processed_at`

// CreateAccessRequest records a new pending access request for a user
func (s *Store) CreateAccessRequest(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO access_requests(user_id, status, created_at) VALUES(?, ?, ?)`,
		userID, models.RequestPending, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// GetAccessRequest returns a request by id
func (s *Store) GetAccessRequest(ctx context.Context, id int64) (*models.AccessRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM access_requests WHERE id = ?`, id)
	return scanRequest(row)
}

// GetPendingRequestForUser returns the user's pending request, if any
func (s *Store) GetPendingRequestForUser(ctx context.Context, userID int64) (*models.AccessRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM access_requests WHERE user_id = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		userID, models.RequestPending)
	return scanRequest(row)
}

// ListPendingRequests returns all pending requests, oldest first
func (s *Store) ListPendingRequests(ctx context.Context) ([]models.AccessRequest, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+requestColumns+` FROM access_requests WHERE status = ? ORDER BY id`,
		models.RequestPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.AccessRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}
	return requests, rows.Err()
}

// SetRequestStatus marks a request approved or rejected by an admin
func (s *Store) SetRequestStatus(ctx context.Context, id int64, status string, adminID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE access_requests SET status = ?, admin_id = ?, processed_at = ? WHERE id = ?`,
		status, adminID, time.Now().Unix(), id)
	return err
}

func scanRequest(scanner interface{ Scan(dest ...any) error }) (*models.AccessRequest, error) {
	var request models.AccessRequest
	var createdAt int64
	var processedAt sql.NullInt64
	err := scanner.Scan(&request.ID, &request.UserID, &request.Status, &request.AdminID,
		&createdAt, &processedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	request.CreatedAt = time.Unix(createdAt, 0)
	if processedAt.Valid {
		t := time.Unix(processedAt.Int64, 0)
		request.ProcessedAt = &t
	}
	return &request, nil
}
