// Package changefeed は顧客・予約コレクションの変更通知を画面ごとの購読者へ配信する。
package changefeed

import "sync"

// Event はオーナーのコレクションに変更があったことを表す。
// 購読者は通知を受けて一覧を再取得する。OwnerIDが空のEventは全オーナーへ配信される。
type Event struct {
	OwnerID    string `json:"owner_id"`
	Collection string `json:"collection"`
}

// Publisher は変更通知の発行先。
type Publisher interface {
	Publish(e Event)
}

type subscriber struct {
	ownerID string
	fn      func(Event)
}

// Hub はオーナーごとに変更通知を配信する。
// 購読者の関数はPublishの呼び出し元goroutineで実行されるため、ブロックしてはならない。
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]subscriber
	nextID int
}

// NewHub はHubを生成する。
func NewHub() *Hub {
	return &Hub{subs: make(map[int]subscriber)}
}

// Subscribe は指定オーナーの変更通知の購読を登録し、解除関数を返す。
func (h *Hub) Subscribe(ownerID string, fn func(Event)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = subscriber{ownerID: ownerID, fn: fn}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Publish は同じオーナーの購読者へ通知する。
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	fns := make([]func(Event), 0, len(h.subs))
	for _, s := range h.subs {
		if e.OwnerID == "" || s.ownerID == e.OwnerID {
			fns = append(fns, s.fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

// Subscribers は購読者数を返す。
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// compile-time interface check
var _ Publisher = (*Hub)(nil)
