// Package nav はアプリインスタンスの現在位置（ナビゲーション状態）を保持する。
package nav

import (
	"path"
	"strings"
	"sync"
)

// 既知のルート
const (
	PathRoot   = "/"
	PathLogin  = "/login"
	PathSignUp = "/sign-up"
	PathApp    = "/app"

	// RootApp はログイン済み領域のルートセグメント。
	RootApp = "app"
)

// Router は現在位置を保持し、変化を購読者に通知する。
type Router struct {
	mu        sync.Mutex
	location  string
	listeners map[int]func(string)
	nextID    int
}

// NewRouter は初期位置を指定してRouterを生成する。
func NewRouter(initial string) *Router {
	return &Router{
		location:  Clean(initial),
		listeners: make(map[int]func(string)),
	}
}

// Clean はパスを正規化する。空の場合は "/" を返す。
func Clean(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return PathRoot
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// RootSegment はパスの先頭セグメントを返す。"/" の場合は空文字。
func RootSegment(p string) string {
	p = strings.TrimPrefix(Clean(p), "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// Location は現在位置を返す。
func (r *Router) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

// Root は現在位置の先頭セグメントを返す。
func (r *Router) Root() string {
	return RootSegment(r.Location())
}

// Navigate はUIの操作による位置の変化を反映する。
func (r *Router) Navigate(p string) {
	r.set(p)
}

// Replace は現在位置を置き換える。ルートガードのリダイレクトに使う。
func (r *Router) Replace(p string) {
	r.set(p)
}

// Subscribe は位置の変化の購読を登録し、解除関数を返す。
func (r *Router) Subscribe(fn func(location string)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

func (r *Router) set(p string) {
	p = Clean(p)

	r.mu.Lock()
	if r.location == p {
		r.mu.Unlock()
		return
	}
	r.location = p
	fns := make([]func(string), 0, len(r.listeners))
	for id := 0; id < r.nextID; id++ {
		if fn, ok := r.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}
