package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/agenda/internal/model"
)

// PostgresClientRepo はPostgreSQLを使用した顧客リポジトリ。
type PostgresClientRepo struct {
	db *sql.DB
}

// NewPostgresClientRepo はPostgresClientRepoを生成する。
func NewPostgresClientRepo(db *sql.DB) *PostgresClientRepo {
	return &PostgresClientRepo{db: db}
}

// FindByID は指定IDの顧客を取得する。UUID形式でないIDは未検出として扱う。
func (r *PostgresClientRepo) FindByID(ctx context.Context, ownerID, id string) (*model.Client, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	c := &model.Client{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, email, phone, created_at, updated_at
		 FROM clients WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find client by ID: %w", err)
	}
	return c, nil
}

// ListByOwner はオーナーの顧客一覧を名前順で返す。
func (r *PostgresClientRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, email, phone, created_at, updated_at
		 FROM clients WHERE owner_id = $1
		 ORDER BY name ASC, created_at ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*model.Client
	for rows.Next() {
		c := &model.Client{}
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}
	return clients, nil
}

// Create は顧客を作成する。
func (r *PostgresClientRepo) Create(ctx context.Context, client *model.Client) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (id, owner_id, name, email, phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		client.ID, client.OwnerID, client.Name, client.Email, client.Phone, client.CreatedAt, client.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert client: %w", err)
	}
	return nil
}

// Update は顧客の名前・連絡先を更新する。
func (r *PostgresClientRepo) Update(ctx context.Context, client *model.Client) (bool, error) {
	if _, err := uuid.Parse(client.ID); err != nil {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE clients SET name = $1, email = $2, phone = $3, updated_at = $4
		 WHERE id = $5 AND owner_id = $6`,
		client.Name, client.Email, client.Phone, client.UpdatedAt, client.ID, client.OwnerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update client: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ ClientRepository = (*PostgresClientRepo)(nil)
