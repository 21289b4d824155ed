// Package client は顧客管理のドメインロジックを提供する。
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/agenda/internal/changefeed"
	"github.com/hitoshi/agenda/internal/model"
	"github.com/hitoshi/agenda/internal/repository"
	"github.com/hitoshi/agenda/internal/security"
)

// Input は顧客の作成・更新時の入力値。
type Input struct {
	Name  string
	Email string
	Phone string
}

// Service は顧客管理のサービス層。
type Service struct {
	repo      repository.ClientRepository
	sanitizer security.TextSanitizerService
	publisher changefeed.Publisher
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// publisherがnilの場合は変更通知を発行しない（DBトリガー経由で通知される構成向け）。
func NewService(
	repo repository.ClientRepository,
	sanitizer security.TextSanitizerService,
	publisher changefeed.Publisher,
) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *Service) clean(in Input) (Input, error) {
	out := Input{
		Name:  s.sanitizer.Sanitize(in.Name),
		Email: s.sanitizer.Sanitize(in.Email),
		Phone: s.sanitizer.Sanitize(in.Phone),
	}
	if out.Name == "" {
		return Input{}, model.NewInvalidClientError("顧客名は必須です")
	}
	return out, nil
}

// Add は顧客を登録する。
func (s *Service) Add(ctx context.Context, ownerID string, in Input) (*model.Client, error) {
	in, err := s.clean(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	c := &model.Client{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("顧客の登録に失敗しました: %w", err)
	}

	s.notify(ownerID)
	return c, nil
}

// Update は顧客の名前と連絡先を更新する。
func (s *Service) Update(ctx context.Context, ownerID, id string, in Input) (*model.Client, error) {
	in, err := s.clean(in)
	if err != nil {
		return nil, err
	}

	c, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	c.Name = in.Name
	c.Email = in.Email
	c.Phone = in.Phone
	c.UpdatedAt = s.now()

	ok, err := s.repo.Update(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("顧客の更新に失敗しました: %w", err)
	}
	// 取得から更新までの間に削除された
	if !ok {
		return nil, model.NewClientNotFoundError(id)
	}

	s.notify(ownerID)
	return c, nil
}

// Get は顧客を1件取得する。
func (s *Service) Get(ctx context.Context, ownerID, id string) (*model.Client, error) {
	c, err := s.repo.FindByID(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("顧客の取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewClientNotFoundError(id)
	}
	return c, nil
}

// List はオーナーの顧客一覧を名前順で返す。
func (s *Service) List(ctx context.Context, ownerID string) ([]*model.Client, error) {
	clients, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("顧客一覧の取得に失敗しました: %w", err)
	}
	if clients == nil {
		clients = []*model.Client{}
	}
	return clients, nil
}

func (s *Service) notify(ownerID string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(changefeed.Event{OwnerID: ownerID, Collection: model.CollectionClients})
}
