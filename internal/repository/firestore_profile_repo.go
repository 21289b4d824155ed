package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/hitoshi/agenda/internal/model"
)

// FirestoreProfileRepo はFirestoreを使用したプロフィールリポジトリ。
type FirestoreProfileRepo struct {
	fs *firestore.Client
}

// NewFirestoreProfileRepo はFirestoreProfileRepoを生成する。
func NewFirestoreProfileRepo(fs *firestore.Client) *FirestoreProfileRepo {
	return &FirestoreProfileRepo{fs: fs}
}

// FindByID は users/{uid} ドキュメントを取得する。存在しない場合はnilを返す。
func (r *FirestoreProfileRepo) FindByID(ctx context.Context, uid string) (*model.Profile, error) {
	snap, err := userDoc(r.fs, uid).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile document: %w", err)
	}

	var d profileDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode profile document: %w", err)
	}
	return &model.Profile{
		UID:         uid,
		Email:       d.Email,
		DisplayName: d.DisplayName,
		PhotoURL:    d.PhotoURL,
		CreatedAt:   d.CreatedAt,
	}, nil
}

// Create は users/{uid} ドキュメントを作成する。
// ドキュメントが既に存在する場合は上書きせずfalseを返す。
func (r *FirestoreProfileRepo) Create(ctx context.Context, profile *model.Profile) (bool, error) {
	_, err := userDoc(r.fs, profile.UID).Create(ctx, profileDoc{
		UID:         profile.UID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		PhotoURL:    profile.PhotoURL,
		CreatedAt:   profile.CreatedAt,
	})
	if isAlreadyExists(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create profile document: %w", err)
	}
	return true, nil
}

// compile-time interface check
var _ ProfileRepository = (*FirestoreProfileRepo)(nil)
