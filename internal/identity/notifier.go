package identity

import (
	"sync"

	"github.com/hitoshi/agenda/internal/model"
)

type delivery struct {
	identity *model.Identity
	targets  []int
}

// Notifier は認証状態の通知を単一のgoroutineで発生順に配送する。
// 最初のPublish以降に登録された購読者には、登録時点の状態が1度通知される。
type Notifier struct {
	mu        sync.Mutex
	listeners map[int]AuthStateListener
	nextID    int
	current   *model.Identity
	published bool
	pending   []delivery

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// NewNotifier はNotifierを生成し、配送goroutineを開始する。
func NewNotifier() *Notifier {
	n := &Notifier{
		listeners: make(map[int]AuthStateListener),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go n.loop()
	return n
}

// Subscribe は購読者を登録する。
func (n *Notifier) Subscribe(listener AuthStateListener) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = listener
	if n.published {
		n.enqueueLocked(delivery{identity: n.current, targets: []int{id}})
	}
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
		})
	}
}

// Publish は現在の認証状態を更新し、登録済みの全購読者へ通知する。
func (n *Notifier) Publish(identity *model.Identity) {
	n.mu.Lock()
	n.current = identity
	n.published = true
	targets := make([]int, 0, len(n.listeners))
	for id := range n.listeners {
		targets = append(targets, id)
	}
	n.enqueueLocked(delivery{identity: identity, targets: targets})
	n.mu.Unlock()
}

// Current は最後に通知された認証状態を返す。
func (n *Notifier) Current() (*model.Identity, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current, n.published
}

// Close は配送goroutineを停止する。未配送の通知は破棄される。
func (n *Notifier) Close() {
	n.once.Do(func() { close(n.done) })
}

func (n *Notifier) enqueueLocked(d delivery) {
	n.pending = append(n.pending, d)
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *Notifier) loop() {
	for {
		select {
		case <-n.done:
			return
		case <-n.wake:
		}

		for {
			n.mu.Lock()
			if len(n.pending) == 0 {
				n.mu.Unlock()
				break
			}
			d := n.pending[0]
			n.pending = n.pending[1:]
			fns := make([]AuthStateListener, 0, len(d.targets))
			for _, id := range d.targets {
				if fn, ok := n.listeners[id]; ok {
					fns = append(fns, fn)
				}
			}
			n.mu.Unlock()

			for _, fn := range fns {
				fn(d.identity)
			}
		}
	}
}
