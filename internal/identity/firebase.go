package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"firebase.google.com/go/v4/auth"

	"github.com/hitoshi/agenda/internal/model"
)

const (
	defaultFirebaseAuthURL  = "https://identitytoolkit.googleapis.com/v1"
	defaultFirebaseTokenURL = "https://securetoken.googleapis.com/v1/token"
)

// TokenVerifier はIDトークンを検証する。firebase auth.Clientが満たす。
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseConfig はFirebase認証バックエンドの設定。
type FirebaseConfig struct {
	APIKey string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string

	HTTPClient *http.Client
	Verifier   TokenVerifier // nilの場合はIDトークンを検証しない
}

// FirebaseBackend はFirebase Identity ToolkitのREST APIで認証するBackend。
// リフレッシュトークンをTokenStoreに保存してログイン状態を復元する。
type FirebaseBackend struct {
	config   FirebaseConfig
	tokens   TokenStore
	notifier *Notifier
}

// NewFirebaseBackend はFirebaseBackendを生成する。
func NewFirebaseBackend(config FirebaseConfig, tokens TokenStore) *FirebaseBackend {
	if config.AuthURL == "" {
		config.AuthURL = defaultFirebaseAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultFirebaseTokenURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	return &FirebaseBackend{
		config:   config,
		tokens:   tokens,
		notifier: NewNotifier(),
	}
}

// firebaseError はIdentity Toolkitのエラーレスポンス。
type firebaseError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// apiError は認証サービスが拒否した要求を表す。
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("firebase auth error (status %d): %s", e.status, e.message)
}

// classify はIdentity Toolkitのエラーメッセージを分類済みエラーに変換する。
// WEAK_PASSWORDは "WEAK_PASSWORD : Password should be ..." の形式で返る。
func classify(err *apiError) error {
	code := strings.TrimSpace(strings.SplitN(err.message, ":", 2)[0])
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, code)
	case "EMAIL_EXISTS":
		return fmt.Errorf("%w: %s", ErrEmailInUse, code)
	case "WEAK_PASSWORD":
		return fmt.Errorf("%w: %s", ErrWeakCredential, code)
	}
	return err
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type passwordResponse struct {
	LocalID        string `json:"localId"`
	Email          string `json:"email"`
	DisplayName    string `json:"displayName"`
	ProfilePicture string `json:"profilePicture"`
	IDToken        string `json:"idToken"`
	RefreshToken   string `json:"refreshToken"`
}

type lookupResponse struct {
	Users []struct {
		LocalID     string `json:"localId"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		PhotoURL    string `json:"photoUrl"`
	} `json:"users"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

// Authenticate は accounts:signInWithPassword でログインする。
func (b *FirebaseBackend) Authenticate(ctx context.Context, email, password string) (*model.Identity, error) {
	return b.passwordFlow(ctx, "accounts:signInWithPassword", email, password)
}

// CreateAccount は accounts:signUp でアカウントを作成し、そのままログインする。
func (b *FirebaseBackend) CreateAccount(ctx context.Context, email, password string) (*model.Identity, error) {
	return b.passwordFlow(ctx, "accounts:signUp", email, password)
}

func (b *FirebaseBackend) passwordFlow(ctx context.Context, method, email, password string) (*model.Identity, error) {
	var resp passwordResponse
	err := b.postJSON(ctx, b.endpoint(method), passwordRequest{
		Email:             strings.TrimSpace(email),
		Password:          password,
		ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.LocalID == "" || resp.IDToken == "" {
		return nil, fmt.Errorf("empty localId or idToken in %s response", method)
	}

	if err := b.verify(ctx, resp.IDToken, resp.LocalID); err != nil {
		return nil, err
	}
	if err := b.tokens.Save(resp.RefreshToken); err != nil {
		return nil, err
	}

	identity := &model.Identity{
		UID:         resp.LocalID,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		PhotoURL:    resp.ProfilePicture,
	}
	b.notifier.Publish(identity)
	return identity, nil
}

// TerminateSession は保存済みトークンを破棄してログアウトする。
// FirebaseのログアウトはクライアントSDK側の状態破棄のみで、サーバー呼び出しはない。
func (b *FirebaseBackend) TerminateSession(ctx context.Context) error {
	if err := b.tokens.Clear(); err != nil {
		return err
	}

	b.notifier.Publish(nil)
	return nil
}

// SubscribeToAuthState は認証状態の購読を登録する。
func (b *FirebaseBackend) SubscribeToAuthState(listener AuthStateListener) func() {
	return b.notifier.Subscribe(listener)
}

// Restore はリフレッシュトークンからIDトークンを再発行し、ユーザー情報を取得する。
func (b *FirebaseBackend) Restore(ctx context.Context) error {
	identity, err := b.restore(ctx)
	b.notifier.Publish(identity)
	return err
}

func (b *FirebaseBackend) restore(ctx context.Context) (*model.Identity, error) {
	refreshToken, err := b.tokens.Load()
	if err != nil {
		return nil, err
	}
	if refreshToken == "" {
		return nil, nil
	}

	token, err := b.refresh(ctx, refreshToken)
	if err != nil {
		var rejected *apiError
		if errors.As(err, &rejected) {
			// 失効したトークンは再利用しない
			if clearErr := b.tokens.Clear(); clearErr != nil {
				return nil, clearErr
			}
		}
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if err := b.verify(ctx, token.IDToken, token.UserID); err != nil {
		return nil, err
	}

	var lookup lookupResponse
	if err := b.postJSON(ctx, b.endpoint("accounts:lookup"), map[string]string{"idToken": token.IDToken}, &lookup); err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if len(lookup.Users) == 0 {
		return nil, b.tokens.Clear()
	}

	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		if err := b.tokens.Save(token.RefreshToken); err != nil {
			return nil, err
		}
	}

	u := lookup.Users[0]
	return &model.Identity{
		UID:         u.LocalID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}, nil
}

// Close は通知の配送を停止する。
func (b *FirebaseBackend) Close() {
	b.notifier.Close()
}

func (b *FirebaseBackend) endpoint(method string) string {
	return b.config.AuthURL + "/" + method + "?key=" + url.QueryEscape(b.config.APIKey)
}

func (b *FirebaseBackend) verify(ctx context.Context, idToken, uid string) error {
	if b.config.Verifier == nil {
		return nil
	}
	token, err := b.config.Verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return fmt.Errorf("failed to verify ID token: %w", err)
	}
	if token.UID != uid {
		return fmt.Errorf("ID token subject mismatch: %s", token.UID)
	}
	return nil
}

// refresh はセキュアトークンエンドポイントでIDトークンを再発行する。
func (b *FirebaseBackend) refresh(ctx context.Context, refreshToken string) (*refreshResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	endpoint := b.config.TokenURL + "?key=" + url.QueryEscape(b.config.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp refreshResponse
	if err := b.do(req, &resp); err != nil {
		return nil, err
	}
	if resp.IDToken == "" {
		return nil, fmt.Errorf("empty id_token in refresh response")
	}
	return &resp, nil
}

func (b *FirebaseBackend) postJSON(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := b.do(req, out); err != nil {
		var rejected *apiError
		if errors.As(err, &rejected) {
			return classify(rejected)
		}
		return err
	}
	return nil
}

func (b *FirebaseBackend) do(req *http.Request, out any) error {
	resp, err := b.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("firebase request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read firebase response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var fe firebaseError
		if err := json.Unmarshal(body, &fe); err == nil && fe.Error.Message != "" {
			return &apiError{status: resp.StatusCode, message: fe.Error.Message}
		}
		return fmt.Errorf("firebase request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse firebase response: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Backend = (*FirebaseBackend)(nil)
