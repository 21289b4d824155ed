// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/agenda/internal/model"
)

// ErrDuplicate は一意制約に違反する作成要求を表す。
var ErrDuplicate = errors.New("duplicate record")

// ProfileRepository はプロフィールレコードの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定UIDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, uid string) (*model.Profile, error)

	// Create はプロフィールを条件付きで作成する。
	// 同じUIDのレコードが既に存在する場合は上書きせずfalseを返す。
	Create(ctx context.Context, profile *model.Profile) (bool, error)
}

// AccountRepository はセルフホスト型認証のアカウント永続化インターフェース。
type AccountRepository interface {
	// FindByEmail は正規化済みメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// FindByID は指定UIDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, uid string) (*model.Account, error)

	// Create はアカウントを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, account *model.Account) error
}

// DeviceSessionRepository は端末セッションの永続化インターフェース。
type DeviceSessionRepository interface {
	// Create は端末セッションを作成する。
	Create(ctx context.Context, session *model.DeviceSession) error
	// FindByID は指定IDの端末セッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.DeviceSession, error)
	// DeleteByID は指定IDの端末セッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れの端末セッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ClientRepository は顧客データの永続化インターフェース。
// すべての操作はオーナー（ログインユーザーのUID）の名前空間内で行う。
type ClientRepository interface {
	// FindByID は指定IDの顧客を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, ownerID, id string) (*model.Client, error)

	// ListByOwner はオーナーの顧客一覧を名前順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Client, error)

	// Create は顧客を作成する。
	Create(ctx context.Context, client *model.Client) error

	// Update は顧客情報を更新する。対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, client *model.Client) (bool, error)
}

// AppointmentRepository は予約データの永続化インターフェース。
type AppointmentRepository interface {
	// Create は予約を作成する。
	Create(ctx context.Context, appointment *model.Appointment) error

	// ListByDate は指定日の予約を時刻順で返す。
	ListByDate(ctx context.Context, ownerID, date string) ([]*model.Appointment, error)

	// ListByClient は指定顧客の予約を日付の降順で返す。
	ListByClient(ctx context.Context, ownerID, clientID string) ([]*model.Appointment, error)

	// ListDates は予約が存在する日付を重複なしで返す。
	ListDates(ctx context.Context, ownerID string) ([]string, error)

	// Delete は予約を削除する。対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, ownerID, id string) (bool, error)
}
