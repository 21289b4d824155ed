// Package session はアプリインスタンス全体で共有する認証状態（Session）を管理する。
//
// Sessionの唯一の情報源はStoreであり、Identityを書き換えるのは
// Startで登録した認証状態の購読コールバックのみ。認証操作は読み込み中フラグだけを更新する。
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/agenda/internal/identity"
	"github.com/hitoshi/agenda/internal/model"
)

// ErrAlreadyStarted はStartが2回以上呼ばれた場合のエラー。
var ErrAlreadyStarted = errors.New("session store already started")

// Listener はSessionの変化通知を受け取る。
// 通知中にStoreを同期的に更新してはならない。
type Listener func(model.Session)

// AuthStateSource は認証状態の通知元。identity.Backendが満たす。
type AuthStateSource interface {
	SubscribeToAuthState(listener identity.AuthStateListener) (unsubscribe func())
}

// Provisioner はログイン済みIdentityのプロフィールを用意する。
type Provisioner interface {
	EnsureProfile(ctx context.Context, identity *model.Identity, extra model.ProfileExtra)
}

// Store はSessionを保持し、変化を購読者に発生順で通知する。
type Store struct {
	mu        sync.Mutex
	state     model.Session
	listeners map[int]Listener
	nextID    int
	changed   chan struct{}
	started   bool

	// notifyMu は状態更新と通知をまとめて直列化する
	notifyMu sync.Mutex

	provisioner      Provisioner
	provisionTimeout time.Duration
}

// NewStore は {Identity: nil, IsLoading: true} で初期化したStoreを生成する。
func NewStore(provisioner Provisioner, provisionTimeout time.Duration) *Store {
	if provisionTimeout <= 0 {
		provisionTimeout = 10 * time.Second
	}
	return &Store{
		state:            model.Session{IsLoading: true},
		listeners:        make(map[int]Listener),
		changed:          make(chan struct{}),
		provisioner:      provisioner,
		provisionTimeout: provisionTimeout,
	}
}

// Session は現在のSessionのスナップショットを返す。
func (s *Store) Session() model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe は購読者を登録し、解除関数を返す。
func (s *Store) Subscribe(listener Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Start は認証状態の購読を登録する。購読はプロセス終了まで解除しない。
// 通知ごとに、ログイン済みならプロフィールを用意してからIdentityを反映し、読み込み中を解除する。
func (s *Store) Start(source AuthStateSource) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	source.SubscribeToAuthState(s.onAuthState)
	return nil
}

func (s *Store) onAuthState(ident *model.Identity) {
	if ident != nil && s.provisioner != nil {
		// プロビジョニングの失敗はProvisioner内で記録され、ここには伝播しない
		ctx, cancel := context.WithTimeout(context.Background(), s.provisionTimeout)
		s.provisioner.EnsureProfile(ctx, ident, model.ProfileExtra{})
		cancel()
	}

	s.update(func(st *model.Session) {
		st.Identity = ident
		st.IsLoading = false
	})

	uid := ""
	if ident != nil {
		uid = ident.UID
	}
	slog.Info("auth state changed",
		slog.Bool("signed_in", ident != nil),
		slog.String("uid", uid),
	)
}

// SetLoading は読み込み中フラグを更新する。認証操作からのみ呼び出す。
func (s *Store) SetLoading(loading bool) {
	s.update(func(st *model.Session) {
		st.IsLoading = loading
	})
}

// Wait はSessionがpredを満たすまで待機し、満たした時点のSessionを返す。
func (s *Store) Wait(ctx context.Context, pred func(model.Session) bool) (model.Session, error) {
	for {
		s.mu.Lock()
		state := s.state
		changed := s.changed
		s.mu.Unlock()

		if pred(state) {
			return state, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// update は状態を更新し、変化があった場合のみ購読者に通知する。
func (s *Store) update(mutate func(*model.Session)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	before := s.state
	mutate(&s.state)
	after := s.state
	if before == after {
		s.mu.Unlock()
		return
	}
	close(s.changed)
	s.changed = make(chan struct{})
	listeners := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(after)
	}
}
