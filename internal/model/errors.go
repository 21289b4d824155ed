// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, agenda, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeEmailInUse          = "EMAIL_IN_USE"
	ErrCodeWeakCredential      = "WEAK_CREDENTIAL"
	ErrCodeAuthFailed          = "AUTH_FAILED"
	ErrCodeProvisioningFailed  = "PROVISIONING_FAILED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeClientNotFound      = "CLIENT_NOT_FOUND"
	ErrCodeAppointmentNotFound = "APPOINTMENT_NOT_FOUND"
	ErrCodeInvalidClient       = "INVALID_CLIENT"
	ErrCodeInvalidAppointment  = "INVALID_APPOINTMENT"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeSessionLoading      = "SESSION_LOADING"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// 認証操作の種別。AUTH_FAILEDのメッセージを操作ごとに出し分けるために使う。
const (
	OpSignIn  = "sign_in"
	OpSignUp  = "sign_up"
	OpSignOut = "sign_out"
)

// NewInvalidCredentialsError はメールアドレスまたはパスワード誤りのエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewEmailInUseError は登録済みメールアドレスでのサインアップエラーを生成する。
func NewEmailInUseError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailInUse,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログイン画面からログインするか、別のメールアドレスを使用してください。",
	}
}

// NewWeakCredentialError は強度不足のパスワードによるサインアップエラーを生成する。
func NewWeakCredentialError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakCredential,
		Message:  fmt.Sprintf("パスワードは%d文字以上で入力してください。", minLength),
		Category: "auth",
		Action:   "より長いパスワードを設定してください。",
	}
}

// NewAuthFailedError は分類できない認証サービスの失敗を生成する。
// メッセージは操作（ログイン・アカウント作成・ログアウト）ごとに異なる。
func NewAuthFailedError(op string) *APIError {
	e := &APIError{
		Code:     ErrCodeAuthFailed,
		Category: "auth",
		Action:   "通信状態を確認し、しばらく待ってから再度お試しください。",
	}
	switch op {
	case OpSignUp:
		e.Message = "アカウントを作成できませんでした。"
	case OpSignOut:
		e.Message = "ログアウトできませんでした。"
	default:
		e.Message = "ログインできませんでした。"
	}
	return e
}

// NewProvisioningFailedError はプロフィール作成失敗を表す。
// ユーザーには表示せず、ログにのみ記録する。
func NewProvisioningFailedError(uid string) *APIError {
	return &APIError{
		Code:     ErrCodeProvisioningFailed,
		Message:  fmt.Sprintf("プロフィールの作成に失敗しました: %s", uid),
		Category: "system",
		Action:   "",
	}
}

// NewUnauthorizedError は未ログイン状態でのアクセスエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ログインしていません。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewSessionLoadingError はログイン状態の確定前のアクセスエラーを生成する。
func NewSessionLoadingError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionLoading,
		Message:  "ログイン状態を確認しています。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewClientNotFoundError は顧客未検出エラーを生成する。
func NewClientNotFoundError(clientID string) *APIError {
	return &APIError{
		Code:     ErrCodeClientNotFound,
		Message:  fmt.Sprintf("指定された顧客が見つかりません: %s", clientID),
		Category: "agenda",
		Action:   "顧客一覧を更新してください。",
	}
}

// NewAppointmentNotFoundError は予約未検出エラーを生成する。
func NewAppointmentNotFoundError(appointmentID string) *APIError {
	return &APIError{
		Code:     ErrCodeAppointmentNotFound,
		Message:  fmt.Sprintf("指定された予約が見つかりません: %s", appointmentID),
		Category: "agenda",
		Action:   "予約一覧を更新してください。",
	}
}

// NewInvalidClientError は顧客入力のバリデーションエラーを生成する。
func NewInvalidClientError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidClient,
		Message:  fmt.Sprintf("顧客情報が不正です: %s", reason),
		Category: "validation",
		Action:   "少なくとも顧客名を入力してください。",
	}
}

// NewInvalidAppointmentError は予約入力のバリデーションエラーを生成する。
func NewInvalidAppointmentError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAppointment,
		Message:  fmt.Sprintf("予約情報が不正です: %s", reason),
		Category: "validation",
		Action:   "時刻は HH:MM 形式（例: 09:00）で入力し、顧客を選択してください。",
	}
}

// NewRateLimitedError はログイン試行回数の上限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "ログインの試行回数が多すぎます。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は分類できないサーバー内部エラーを生成する。
// 詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
