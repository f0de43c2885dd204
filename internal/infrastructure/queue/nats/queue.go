package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const queueGroup = "paperstand-workers"

// Queue carries paper-ingested events between the API and the worker
// over core NATS. Delivery is at-most-once; a lost event is recovered
// by re-uploading, which is idempotent because IDs are content hashes.
type Queue struct {
	conn    *nats.Conn
	subject string
	log     *slog.Logger
}

type paperIngestedMessage struct {
	PaperID  string `json:"paper_id"`
	Filename string `json:"filename"`
}

func Connect(url, subject string, log *slog.Logger) (*Queue, error) {
	conn, err := nats.Connect(url,
		nats.Name("paperstand"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats_disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats_reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{conn: conn, subject: subject, log: log}, nil
}

func (q *Queue) PublishPaperIngested(_ context.Context, paperID, filename string) error {
	payload, err := json.Marshal(paperIngestedMessage{
		PaperID:  paperID,
		Filename: filename,
	})
	if err != nil {
		return fmt.Errorf("marshal ingest event: %w", err)
	}
	if err := q.conn.Publish(q.subject, payload); err != nil {
		return fmt.Errorf("publish ingest event: %w", err)
	}
	return nil
}

// SubscribePaperIngested delivers events to handler on a queue group so
// multiple workers share the load. Handler errors are logged, not
// redelivered.
func (q *Queue) SubscribePaperIngested(ctx context.Context, handler func(ctx context.Context, paperID, filename string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, queueGroup, func(msg *nats.Msg) {
		var event paperIngestedMessage
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			q.log.Error("ingest_event_malformed", slog.String("error", err.Error()))
			return
		}
		if err := handler(ctx, event.PaperID, event.Filename); err != nil {
			q.log.Error("ingest_event_failed",
				slog.String("paper_id", event.PaperID),
				slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", q.subject, err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		q.log.Warn("nats_drain_failed", slog.String("error", err.Error()))
	}
	return ctx.Err()
}

func (q *Queue) Close() {
	q.conn.Close()
}
