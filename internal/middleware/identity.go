// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/agenda/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// uidContextKey はリクエストコンテキストにログインユーザーのUIDを格納するためのキー。
	uidContextKey = contextKey("uid")
	// requestInfoContextKey はロギングミドルウェアが内側のミドルウェアから情報を受け取るためのキー。
	requestInfoContextKey = contextKey("request_info")
)

// requestInfo は内側のハンドラで判明したリクエスト情報を外側のロギングへ返すための入れ物。
type requestInfo struct {
	uid string
}

// SessionReader は現在のセッション状態の参照に必要なインターフェース。
// session.Store が満たす。
type SessionReader interface {
	Session() model.Session
}

// NewRequireIdentityMiddleware はログイン済みの場合のみ後続に処理を渡すミドルウェアを返す。
// ログイン状態の確定前は503、未ログインの場合は401を返す。
// ログインユーザーのUIDをリクエストコンテキストに注入する。
func NewRequireIdentityMiddleware(sessions SessionReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := sessions.Session()
			if s.IsLoading {
				WriteRetryableError(w, http.StatusServiceUnavailable, model.NewSessionLoadingError(), time.Second)
				return
			}
			if s.Identity == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := ContextWithUserID(r.Context(), s.Identity.UID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからログインユーザーのUIDを取得する。
// NewRequireIdentityMiddlewareを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	uid, ok := ctx.Value(uidContextKey).(string)
	if !ok || uid == "" {
		return "", fmt.Errorf("uid not found in context")
	}
	return uid, nil
}

// ContextWithUserID はコンテキストにUIDを注入する。
// ロギングミドルウェアの内側で呼ばれた場合はリクエストログにもUIDを残す。
func ContextWithUserID(ctx context.Context, uid string) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.uid = uid
	}
	return context.WithValue(ctx, uidContextKey, uid)
}
