package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/agenda/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は指定UIDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, uid string) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT uid, email, display_name, photo_url, created_at FROM profiles WHERE uid = $1`,
		uid,
	).Scan(&p.UID, &p.Email, &p.DisplayName, &p.PhotoURL, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by UID: %w", err)
	}

	return p, nil
}

// Create はプロフィールを作成する。既存レコードは上書きしない。
func (r *PostgresProfileRepo) Create(ctx context.Context, profile *model.Profile) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (uid, email, display_name, photo_url, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (uid) DO NOTHING`,
		profile.UID, profile.Email, profile.DisplayName, profile.PhotoURL, profile.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert profile: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
