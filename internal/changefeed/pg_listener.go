package changefeed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/agenda/internal/model"
)

// Channel はトリガーが変更通知を送るPostgreSQLのチャンネル名。
const Channel = "agenda_changes"

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

var catchUpCollections = []string{model.CollectionClients, model.CollectionAppointments}

// PGListener はPostgreSQLのLISTEN/NOTIFYで受け取った変更をPublisherへ中継する。
// 通知のペイロードは "owner_id:collection" 形式。
type PGListener struct {
	databaseURL string
	publisher   Publisher
}

// NewPGListener はPGListenerを生成する。
func NewPGListener(databaseURL string, publisher Publisher) *PGListener {
	return &PGListener{databaseURL: databaseURL, publisher: publisher}
}

// ParsePayload は通知ペイロードをEventに変換する。
func ParsePayload(payload string) (Event, bool) {
	i := strings.LastIndexByte(payload, ':')
	if i <= 0 || i == len(payload)-1 {
		return Event{}, false
	}
	return Event{OwnerID: payload[:i], Collection: payload[i+1:]}, true
}

// handle は通知1件をPublisherへ中継する。
// 再接続直後はnilが届く。切断中の変更は特定できないため、全オーナーの全コレクションに再取得を促す。
func (l *PGListener) handle(n *pq.Notification) {
	if n == nil {
		slog.Info("change listener reconnected, requesting refetch")
		for _, collection := range catchUpCollections {
			l.publisher.Publish(Event{Collection: collection})
		}
		return
	}
	e, ok := ParsePayload(n.Extra)
	if !ok {
		slog.Warn("invalid change payload", slog.String("payload", n.Extra))
		return
	}
	l.publisher.Publish(e)
}

// Run はctxがキャンセルされるまで通知を待ち受ける。
// 切断時の再接続はpq.Listenerが行う。
func (l *PGListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.databaseURL, minReconnectInterval, maxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				slog.Warn("change listener connection event",
					slog.Int("event", int(ev)),
					slog.String("error", err.Error()),
				)
			}
		},
	)
	defer listener.Close()

	if err := listener.Listen(Channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", Channel, err)
	}
	slog.Info("change listener started", slog.String("channel", Channel))

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("change listener stopped")
			return nil
		case n := <-listener.Notify:
			l.handle(n)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					slog.Warn("change listener ping failed", slog.String("error", err.Error()))
				}
			}()
		}
	}
}
