package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kaptam/internal/models"
)

const reservationColumns = `code, items, name, email, controller, additional_info, date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(s rowScanner) (*models.Reservation, error) {
	var (
		r           models.Reservation
		itemsJSON   string
		email, info sql.NullString
		date        sql.NullString
		updatedAt   sql.NullTime
	)
	if err := s.Scan(&r.Code, &itemsJSON, &r.Name, &email, &r.Controller, &info, &date, &r.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(itemsJSON), &r.Items); err != nil {
		return nil, fmt.Errorf("decode items of %s: %w", r.Code, err)
	}
	r.Email = email.String
	r.AdditionalInfo = info.String
	r.Date = date.String
	if updatedAt.Valid {
		t := updatedAt.Time
		r.UpdatedAt = &t
	}
	return &r, nil
}

func collectReservations(rows *sql.Rows) ([]models.Reservation, error) {
	defer rows.Close()

	reservations := []models.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reservations, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateReservation inserts r; CreatedAt is set when zero.
func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	items, err := json.Marshal(r.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO reservations (` + reservationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`
	_, err = db.ExecContext(ctx, query,
		r.Code,
		string(items),
		r.Name,
		nullable(r.Email),
		r.Controller,
		nullable(r.AdditionalInfo),
		nullable(r.Date),
		r.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", r.Code, ErrDuplicateCode)
		}
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (db *DB) GetReservation(ctx context.Context, code string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE code = ?`
	r, err := scanReservation(db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

func (db *DB) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM reservations WHERE code = ?)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check code: %w", err)
	}
	return exists, nil
}

// UpdateReservation replaces the mutable fields and stamps updated_at.
// created_at is never touched.
func (db *DB) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	items, err := json.Marshal(r.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	now := time.Now().UTC()

	query := `UPDATE reservations
              SET items = ?, name = ?, email = ?, controller = ?, additional_info = ?, date = ?, updated_at = ?
              WHERE code = ?`
	res, err := db.ExecContext(ctx, query,
		string(items),
		r.Name,
		nullable(r.Email),
		r.Controller,
		nullable(r.AdditionalInfo),
		nullable(r.Date),
		now,
		r.Code,
	)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	r.UpdatedAt = &now
	return nil
}

func (db *DB) DeleteReservation(ctx context.Context, code string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM reservations WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) ListByDate(ctx context.Context, date string) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE date = ? ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations by date: %w", err)
	}
	return collectReservations(rows)
}

// CountByDate returns the number of reservations per visit date; undated ones are skipped.
func (db *DB) CountByDate(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT date, COUNT(*) FROM reservations WHERE date IS NOT NULL GROUP BY date`)
	if err != nil {
		return nil, fmt.Errorf("failed to count reservations by date: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			date  string
			count int
		)
		if err := rows.Scan(&date, &count); err != nil {
			return nil, err
		}
		counts[date] = count
	}
	return counts, rows.Err()
}

// CountOnDate counts reservations on date other than excludeCode.
func (db *DB) CountOnDate(ctx context.Context, date, excludeCode string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE date = ? AND code <> ?`, date, excludeCode,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations on date: %w", err)
	}
	return count, nil
}

// CountBoardgameOnDate counts reservations on date, other than excludeCode,
// whose cart contains the boardgame gameID.
func (db *DB) CountBoardgameOnDate(ctx context.Context, date string, gameID int64, excludeCode string) (int, error) {
	query := `
        SELECT COUNT(*)
        FROM reservations r
        WHERE r.date = ?
        AND r.code <> ?
        AND EXISTS (
            SELECT 1 FROM json_each(r.items) j
            WHERE json_extract(j.value, '$.id') = ?
            AND json_extract(j.value, '$.type') = 'boardgame'
        )`
	var count int
	if err := db.QueryRowContext(ctx, query, date, excludeCode, gameID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count boardgame reservations: %w", err)
	}
	return count, nil
}

// ListReservations returns reservations newest first.
func (db *DB) ListReservations(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations`
	var args []any
	if filter.Date != "" {
		query += ` WHERE date = ?`
		args = append(args, filter.Date)
	}
	query += ` ORDER BY created_at DESC, code ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return collectReservations(rows)
}

func (db *DB) GetStatistics(ctx context.Context) (*models.Statistics, error) {
	stats := &models.Statistics{}

	query := `
        SELECT
            COUNT(*),
            COUNT(DISTINCT date),
            COALESCE(SUM(CASE WHEN email IS NOT NULL AND TRIM(email) <> '' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN LOWER(controller) IN ('yes', 'controller') THEN 1 ELSE 0 END), 0)
        FROM reservations`
	err := db.QueryRowContext(ctx, query).Scan(
		&stats.TotalReservations,
		&stats.UniqueDates,
		&stats.WithEmail,
		&stats.NeedsController,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}

	byDate, err := db.CountByDate(ctx)
	if err != nil {
		return nil, err
	}
	stats.ReservationsByDate = byDate
	return stats, nil
}

// DeleteOlderThan removes reservations created before cutoff and returns how many went.
func (db *DB) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM reservations WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old reservations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}
