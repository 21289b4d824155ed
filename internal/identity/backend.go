// Package identity は外部認証サービスの抽象と、その実装（セルフホスト型・Firebase）を提供する。
package identity

import (
	"context"
	"errors"

	"github.com/hitoshi/agenda/internal/model"
)

// 認証サービスが返す分類済みエラー。これ以外のエラーは「その他」として扱う。
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailInUse         = errors.New("email already in use")
	ErrWeakCredential     = errors.New("weak credential")
)

// AuthStateListener は認証状態の変化通知を受け取る。
// identityがnilの場合は未ログインを表す。
type AuthStateListener func(identity *model.Identity)

// Backend は外部認証サービスの機能を表すインターフェース。
type Backend interface {
	// Authenticate はメールアドレスとパスワードでログインする。
	// 成功時は認証状態の変化が購読者に通知される。
	Authenticate(ctx context.Context, email, password string) (*model.Identity, error)

	// CreateAccount はアカウントを作成し、そのままログイン状態にする。
	CreateAccount(ctx context.Context, email, password string) (*model.Identity, error)

	// TerminateSession は現在のログインを終了する。
	TerminateSession(ctx context.Context) error

	// SubscribeToAuthState は認証状態の購読を登録し、解除関数を返す。
	// 通知は発生順に配送される。
	SubscribeToAuthState(listener AuthStateListener) (unsubscribe func())

	// Restore は永続化済みのログイン状態を復元し、最初の通知を発行する。
	// 復元に失敗した場合も未ログインとして通知したうえでエラーを返す。
	Restore(ctx context.Context) error
}
