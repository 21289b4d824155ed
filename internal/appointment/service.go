// Package appointment は予約管理のドメインロジックを提供する。
package appointment

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/agenda/internal/changefeed"
	"github.com/hitoshi/agenda/internal/model"
	"github.com/hitoshi/agenda/internal/repository"
	"github.com/hitoshi/agenda/internal/security"
)

// DefaultClientName は顧客名が空の場合に予約へ保存する表示名。
const DefaultClientName = "クライアント"

const dateLayout = "2006-01-02"

// Input は予約作成時の入力値。
type Input struct {
	ClientID string
	Date     string
	Time     string
	Notes    string
}

// Service は予約管理のサービス層。
type Service struct {
	repo      repository.AppointmentRepository
	clients   repository.ClientRepository
	sanitizer security.TextSanitizerService
	publisher changefeed.Publisher
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.AppointmentRepository,
	clients repository.ClientRepository,
	sanitizer security.TextSanitizerService,
	publisher changefeed.Publisher,
) *Service {
	return &Service{
		repo:      repo,
		clients:   clients,
		sanitizer: sanitizer,
		publisher: publisher,
		now:       time.Now,
	}
}

// NormalizeTime は数字とコロン以外の文字を取り除く。
func NormalizeTime(raw string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == ':' {
			return r
		}
		return -1
	}, raw)
}

// ValidTime は HH:MM 形式かつ実在する時刻かを判定する。
func ValidTime(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[3]-'0')*10 + int(s[4]-'0')
	return hour < 24 && minute < 60
}

// ValidDate は YYYY-MM-DD 形式の実在する日付かを判定する。
func ValidDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// Create は予約を登録する。
// 顧客名は表示用に予約へコピーする。
func (s *Service) Create(ctx context.Context, ownerID string, in Input) (*model.Appointment, error) {
	date := strings.TrimSpace(in.Date)
	if !ValidDate(date) {
		return nil, model.NewInvalidAppointmentError("日付は YYYY-MM-DD 形式で指定してください")
	}
	hhmm := NormalizeTime(in.Time)
	if !ValidTime(hhmm) {
		return nil, model.NewInvalidAppointmentError("時刻は HH:MM 形式で指定してください")
	}
	clientID := strings.TrimSpace(in.ClientID)
	if clientID == "" {
		return nil, model.NewInvalidAppointmentError("顧客が選択されていません")
	}

	c, err := s.clients.FindByID(ctx, ownerID, clientID)
	if err != nil {
		return nil, fmt.Errorf("顧客の取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewClientNotFoundError(clientID)
	}
	clientName := c.Name
	if clientName == "" {
		clientName = DefaultClientName
	}

	a := &model.Appointment{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		ClientID:   c.ID,
		ClientName: clientName,
		Date:       date,
		Time:       hhmm,
		Notes:      s.sanitizer.Sanitize(in.Notes),
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("予約の登録に失敗しました: %w", err)
	}

	s.notify(ownerID)
	return a, nil
}

// ListByDate は指定日の予約を時刻順で返す。
func (s *Service) ListByDate(ctx context.Context, ownerID, date string) ([]*model.Appointment, error) {
	date = strings.TrimSpace(date)
	if !ValidDate(date) {
		return nil, model.NewInvalidAppointmentError("日付は YYYY-MM-DD 形式で指定してください")
	}
	list, err := s.repo.ListByDate(ctx, ownerID, date)
	if err != nil {
		return nil, fmt.Errorf("予約一覧の取得に失敗しました: %w", err)
	}
	return nonNil(list), nil
}

// ListByClient は顧客の予約履歴を新しい日付順で返す。
func (s *Service) ListByClient(ctx context.Context, ownerID, clientID string) ([]*model.Appointment, error) {
	c, err := s.clients.FindByID(ctx, ownerID, clientID)
	if err != nil {
		return nil, fmt.Errorf("顧客の取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewClientNotFoundError(clientID)
	}

	list, err := s.repo.ListByClient(ctx, ownerID, clientID)
	if err != nil {
		return nil, fmt.Errorf("予約履歴の取得に失敗しました: %w", err)
	}
	return nonNil(list), nil
}

// MarkedDates は予約が1件以上ある日付を昇順で返す。カレンダーの印付けに使う。
func (s *Service) MarkedDates(ctx context.Context, ownerID string) ([]string, error) {
	dates, err := s.repo.ListDates(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("予約日の取得に失敗しました: %w", err)
	}

	seen := make(map[string]struct{}, len(dates))
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	slices.Sort(out)
	return out, nil
}

// Delete は予約を削除する。
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	ok, err := s.repo.Delete(ctx, ownerID, id)
	if err != nil {
		return fmt.Errorf("予約の削除に失敗しました: %w", err)
	}
	if !ok {
		return model.NewAppointmentNotFoundError(id)
	}

	s.notify(ownerID)
	return nil
}

func (s *Service) notify(ownerID string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(changefeed.Event{OwnerID: ownerID, Collection: model.CollectionAppointments})
}

func nonNil(list []*model.Appointment) []*model.Appointment {
	if list == nil {
		return []*model.Appointment{}
	}
	return list
}
