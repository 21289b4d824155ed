package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/agenda/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反エラーコード。
const uniqueViolation = "23505"

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByEmail はメールアドレスでアカウントを検索する。大文字小文字は区別しない。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.findOne(ctx,
		`SELECT uid, email, password_hash, display_name, photo_url, created_at
		 FROM accounts WHERE lower(email) = lower($1)`,
		email,
	)
}

// FindByID は指定UIDのアカウントを取得する。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, uid string) (*model.Account, error) {
	return r.findOne(ctx,
		`SELECT uid, email, password_hash, display_name, photo_url, created_at
		 FROM accounts WHERE uid = $1`,
		uid,
	)
}

func (r *PostgresAccountRepo) findOne(ctx context.Context, query string, arg string) (*model.Account, error) {
	a := &model.Account{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&a.UID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.PhotoURL, &a.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return a, nil
}

// Create はアカウントを作成する。
// メールアドレスの一意制約に違反した場合はErrDuplicateを返す。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (uid, email, password_hash, display_name, photo_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		account.UID, account.Email, account.PasswordHash, account.DisplayName, account.PhotoURL, account.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
