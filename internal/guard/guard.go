// Package guard はSessionとナビゲーション位置の整合を保つルートガードを提供する。
package guard

import (
	"log/slog"
	"sync"

	"github.com/hitoshi/agenda/internal/metrics"
	"github.com/hitoshi/agenda/internal/model"
	"github.com/hitoshi/agenda/internal/nav"
	"github.com/hitoshi/agenda/internal/session"
)

// Decision はルートガードの判定結果。Targetが空の場合は何もしない。
type Decision struct {
	Target string
}

// Redirect はリダイレクトが必要かどうかを返す。
func (d Decision) Redirect() bool {
	return d.Target != ""
}

// Decide はSessionと現在位置の先頭セグメントからリダイレクト先を判定する。
// 読み込み中は判定しない。
func Decide(s model.Session, root string) Decision {
	if s.IsLoading {
		return Decision{}
	}
	inApp := root == nav.RootApp
	switch {
	case s.Identity == nil && inApp:
		return Decision{Target: nav.PathLogin}
	case s.Identity != nil && !inApp:
		return Decision{Target: nav.PathApp}
	}
	return Decision{}
}

// SessionSource はSessionの参照と購読を提供する。session.Storeが満たす。
type SessionSource interface {
	Session() model.Session
	Subscribe(listener session.Listener) func()
}

// Navigator は現在位置の参照と置き換えを提供する。nav.Routerが満たす。
type Navigator interface {
	Root() string
	Replace(path string)
	Subscribe(fn func(location string)) func()
}

// Controller はSessionまたは位置が変化するたびにDecideを評価し、必要ならリダイレクトする。
type Controller struct {
	sessions  SessionSource
	navigator Navigator
	metrics   metrics.MetricsCollector

	mu   sync.Mutex
	stop []func()
}

// NewController はControllerを生成する。metricsはnilでもよい。
func NewController(sessions SessionSource, navigator Navigator, m metrics.MetricsCollector) *Controller {
	return &Controller{
		sessions:  sessions,
		navigator: navigator,
		metrics:   m,
	}
}

// Start は購読を開始し、現在の状態を1度評価する。
func (c *Controller) Start() {
	unsubSession := c.sessions.Subscribe(func(s model.Session) {
		c.evaluate(s)
	})
	unsubNav := c.navigator.Subscribe(func(string) {
		c.evaluate(c.sessions.Session())
	})

	c.mu.Lock()
	c.stop = append(c.stop, unsubSession, unsubNav)
	c.mu.Unlock()

	c.evaluate(c.sessions.Session())
}

// Stop は購読を解除する。
func (c *Controller) Stop() {
	c.mu.Lock()
	stops := c.stop
	c.stop = nil
	c.mu.Unlock()

	for _, fn := range stops {
		fn()
	}
}

func (c *Controller) evaluate(s model.Session) {
	root := c.navigator.Root()
	d := Decide(s, root)
	if !d.Redirect() {
		return
	}

	slog.Info("route guard redirect",
		slog.String("from_root", root),
		slog.String("target", d.Target),
	)
	if c.metrics != nil {
		c.metrics.RecordGuardRedirect(d.Target)
	}
	c.navigator.Replace(d.Target)
}
