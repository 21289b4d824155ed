package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/agenda/internal/changefeed"
	"github.com/hitoshi/agenda/internal/middleware"
	"github.com/hitoshi/agenda/internal/model"
)

const (
	defaultHeartbeatInterval = 25 * time.Second
	eventBufferSize          = 64
)

// ChangeSubscriber はオーナーごとの変更通知の購読を提供する。changefeed.Hubが満たす。
type ChangeSubscriber interface {
	Subscribe(ownerID string, fn func(changefeed.Event)) func()
}

// EventsHandler はSessionと顧客・予約の変更をServer-Sent Eventsで配信する。
// 購読はストリームごとに作成し、切断時に解除する。
type EventsHandler struct {
	sessions  SessionStore
	changes   ChangeSubscriber
	heartbeat time.Duration
}

// NewEventsHandler はEventsHandlerを生成する。
func NewEventsHandler(sessions SessionStore, changes ChangeSubscriber) *EventsHandler {
	return &EventsHandler{
		sessions:  sessions,
		changes:   changes,
		heartbeat: defaultHeartbeatInterval,
	}
}

type changeResponse struct {
	Collection string `json:"collection"`
}

type sseMessage struct {
	event   string
	data    interface{}
	session *model.Session
}

// Stream はイベントストリームを開始する。
// ログアウトまたは別ユーザーへの切り替えを通知した時点でストリームを終了する。
// GET /api/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}
	// 長時間の接続になるためサーバーの書き込みタイムアウトを解除する
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	msgs := make(chan sseMessage, eventBufferSize)
	send := func(m sseMessage) {
		select {
		case msgs <- m:
		default:
			slog.Warn("event stream buffer full, dropping event",
				slog.String("uid", uid),
				slog.String("event", m.event),
			)
		}
	}

	unsubSession := h.sessions.Subscribe(func(s model.Session) {
		send(sseMessage{event: "session", data: toSessionResponse(s), session: &s})
	})
	defer unsubSession()

	if h.changes != nil {
		unsubChanges := h.changes.Subscribe(uid, func(e changefeed.Event) {
			send(sseMessage{event: "change", data: changeResponse{Collection: e.Collection}})
		})
		defer unsubChanges()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "session", toSessionResponse(h.sessions.Session())); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case m := <-msgs:
			if err := writeEvent(w, m.event, m.data); err != nil {
				return
			}
			flusher.Flush()
			if m.session != nil && !m.session.IsLoading && !sameUser(m.session, uid) {
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func sameUser(s *model.Session, uid string) bool {
	return s.Identity != nil && s.Identity.UID == uid
}

func writeEvent(w io.Writer, event string, data interface{}) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
	return err
}
