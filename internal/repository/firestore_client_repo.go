package repository

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"

	"github.com/hitoshi/agenda/internal/model"
)

// FirestoreClientRepo はFirestoreを使用した顧客リポジトリ。
type FirestoreClientRepo struct {
	fs *firestore.Client
}

// NewFirestoreClientRepo はFirestoreClientRepoを生成する。
func NewFirestoreClientRepo(fs *firestore.Client) *FirestoreClientRepo {
	return &FirestoreClientRepo{fs: fs}
}

func (r *FirestoreClientRepo) clients(ownerID string) *firestore.CollectionRef {
	return ownerCollection(r.fs, ownerID, model.CollectionClients)
}

// FindByID は指定IDの顧客を取得する。存在しない場合はnilを返す。
func (r *FirestoreClientRepo) FindByID(ctx context.Context, ownerID, id string) (*model.Client, error) {
	snap, err := r.clients(ownerID).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client document: %w", err)
	}

	var d clientDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode client document: %w", err)
	}
	return d.toModel(ownerID, snap.Ref.ID), nil
}

// ListByOwner はオーナーの顧客一覧を名前順で返す。
func (r *FirestoreClientRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Client, error) {
	snaps, err := r.clients(ownerID).OrderBy("name", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list client documents: %w", err)
	}

	clients := make([]*model.Client, 0, len(snaps))
	for _, snap := range snaps {
		var d clientDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode client document %s: %w", snap.Ref.ID, err)
		}
		clients = append(clients, d.toModel(ownerID, snap.Ref.ID))
	}
	sort.SliceStable(clients, func(i, j int) bool { return clients[i].Name < clients[j].Name })
	return clients, nil
}

// Create は顧客ドキュメントを作成する。
func (r *FirestoreClientRepo) Create(ctx context.Context, client *model.Client) error {
	_, err := r.clients(client.OwnerID).Doc(client.ID).Create(ctx, clientDoc{
		Name:      client.Name,
		Email:     client.Email,
		Phone:     client.Phone,
		CreatedAt: client.CreatedAt,
		UpdatedAt: client.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create client document: %w", err)
	}
	return nil
}

// Update は顧客の名前・連絡先フィールドを更新する。
func (r *FirestoreClientRepo) Update(ctx context.Context, client *model.Client) (bool, error) {
	_, err := r.clients(client.OwnerID).Doc(client.ID).Update(ctx, []firestore.Update{
		{Path: "name", Value: client.Name},
		{Path: "email", Value: client.Email},
		{Path: "phone", Value: client.Phone},
		{Path: "updatedAt", Value: client.UpdatedAt},
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to update client document: %w", err)
	}
	return true, nil
}

// compile-time interface check
var _ ClientRepository = (*FirestoreClientRepo)(nil)
