package push

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type EventType string

const (
	EventProgress EventType = "progress"
	EventTrade    EventType = "trade"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one backtest notification delivered to a session's subscribers.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

func subjectFor(sessionID string) string {
	return "backtest.events." + sessionID
}

// Publisher fans backtest events out over JetStream. Publishing is
// fire-and-forget: a failed or unheard publish is logged and dropped, never
// surfaced to the run.
type Publisher struct {
	js     nats.JetStreamContext
	logger *zap.Logger
}

func NewPublisher(js nats.JetStreamContext, logger *zap.Logger) *Publisher {
	return &Publisher{js: js, logger: logger}
}

func (p *Publisher) Publish(sessionID string, event Event) {
	if p.js == nil || sessionID == "" {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal push event", zap.Error(err))
		return
	}
	if _, err := p.js.Publish(subjectFor(sessionID), data); err != nil {
		p.logger.Warn("failed to publish push event",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
