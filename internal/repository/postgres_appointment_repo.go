package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/agenda/internal/model"
)

// PostgresAppointmentRepo はPostgreSQLを使用した予約リポジトリ。
type PostgresAppointmentRepo struct {
	db *sql.DB
}

// NewPostgresAppointmentRepo はPostgresAppointmentRepoを生成する。
func NewPostgresAppointmentRepo(db *sql.DB) *PostgresAppointmentRepo {
	return &PostgresAppointmentRepo{db: db}
}

const appointmentColumns = `id, owner_id, client_id, client_name, date, time, notes, created_at`

// Create は予約を作成する。
func (r *PostgresAppointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO appointments (`+appointmentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.OwnerID, a.ClientID, a.ClientName, a.Date, a.Time, a.Notes, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	return nil
}

// ListByDate は指定日の予約を時刻順で返す。
func (r *PostgresAppointmentRepo) ListByDate(ctx context.Context, ownerID, date string) ([]*model.Appointment, error) {
	return r.list(ctx,
		`SELECT `+appointmentColumns+` FROM appointments
		 WHERE owner_id = $1 AND date = $2
		 ORDER BY time ASC, created_at ASC`,
		ownerID, date,
	)
}

// ListByClient は指定顧客の予約を日付の降順で返す。
func (r *PostgresAppointmentRepo) ListByClient(ctx context.Context, ownerID, clientID string) ([]*model.Appointment, error) {
	if _, err := uuid.Parse(clientID); err != nil {
		return nil, nil
	}
	return r.list(ctx,
		`SELECT `+appointmentColumns+` FROM appointments
		 WHERE owner_id = $1 AND client_id = $2
		 ORDER BY date DESC, time DESC`,
		ownerID, clientID,
	)
}

func (r *PostgresAppointmentRepo) list(ctx context.Context, query string, args ...any) ([]*model.Appointment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []*model.Appointment
	for rows.Next() {
		a := &model.Appointment{}
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.ClientID, &a.ClientName, &a.Date, &a.Time, &a.Notes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointments: %w", err)
	}
	return appointments, nil
}

// ListDates は予約が存在する日付を昇順・重複なしで返す。
func (r *PostgresAppointmentRepo) ListDates(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT date FROM appointments WHERE owner_id = $1 ORDER BY date ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointment dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan appointment date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appointment dates: %w", err)
	}
	return dates, nil
}

// Delete は予約を削除する。
func (r *PostgresAppointmentRepo) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM appointments WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete appointment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ AppointmentRepository = (*PostgresAppointmentRepo)(nil)
