package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/agenda/internal/model"
)

// PostgresDeviceSessionRepo はPostgreSQLを使用した端末セッションリポジトリ。
type PostgresDeviceSessionRepo struct {
	db *sql.DB
}

// NewPostgresDeviceSessionRepo はPostgresDeviceSessionRepoを生成する。
func NewPostgresDeviceSessionRepo(db *sql.DB) *PostgresDeviceSessionRepo {
	return &PostgresDeviceSessionRepo{db: db}
}

// Create は端末セッションを作成する。
func (r *PostgresDeviceSessionRepo) Create(ctx context.Context, session *model.DeviceSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_sessions (id, uid, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		session.ID, session.UID, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create device session: %w", err)
	}
	return nil
}

// FindByID は指定IDの端末セッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresDeviceSessionRepo) FindByID(ctx context.Context, id string) (*model.DeviceSession, error) {
	s := &model.DeviceSession{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, uid, expires_at, created_at
		 FROM device_sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&s.ID, &s.UID, &s.ExpiresAt, &s.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find device session: %w", err)
	}

	return s, nil
}

// DeleteByID は指定IDの端末セッションを削除する。
func (r *PostgresDeviceSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM device_sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete device session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れの端末セッションを削除する。
func (r *PostgresDeviceSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM device_sessions WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired device sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ DeviceSessionRepository = (*PostgresDeviceSessionRepo)(nil)
