package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/driftstack/drift-monitor/internal/models"
	"github.com/driftstack/drift-monitor/internal/utils"
)

// Publisher pushes status snapshots to the broker, one subject per
// experiment. Delivery is fire and forget; subscribers that miss a snapshot
// recover from the persisted result files.
type Publisher struct {
	conn   *nats.Conn
	topic  string
	logger *slog.Logger
}

// NewPublisher creates a Publisher rooted at the given topic prefix.
func NewPublisher(conn *nats.Conn, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, topic: topic, logger: logger}
}

// Publish sends one snapshot on the experiment's subject.
func (p *Publisher) Publish(ctx context.Context, experimentID string, status models.ExecutionStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(status)
	if err != nil {
		return utils.InternalError("marshal status snapshot", err)
	}

	msg := nats.NewMsg(fmt.Sprintf("%s.%s", p.topic, experimentID))
	msg.Header.Set("Content-Type", "application/json")
	msg.Data = payload

	if err := p.conn.PublishMsg(msg); err != nil {
		return utils.UpstreamError("publish status snapshot", err)
	}

	p.logger.Debug("status snapshot published",
		slog.String("experiment_id", experimentID),
		slog.String("status", status.Status.Status),
		slog.Int("progress", status.Status.Progress))
	return nil
}
