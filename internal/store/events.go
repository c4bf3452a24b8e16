package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/charmbracelet/log"
)

const didSaveTopic = "recordkit.context.did_save"

// ChangeSet lists the objects a context committed in one save or batch delete.
type ChangeSet struct {
	Origin  string     `json:"origin"` // Origin is the id of the context that committed
	Saved   []ObjectID `json:"saved,omitempty"`
	Deleted []ObjectID `json:"deleted,omitempty"`
}

// IsEmpty reports whether nothing changed.
func (cs ChangeSet) IsEmpty() bool {
	return len(cs.Saved) == 0 && len(cs.Deleted) == 0
}

// objects returns every id in the change set.
func (cs ChangeSet) objects() []ObjectID {
	ids := make([]ObjectID, 0, len(cs.Saved)+len(cs.Deleted))
	ids = append(ids, cs.Saved...)
	return append(ids, cs.Deleted...)
}

// bus carries did-save notifications between contexts over a watermill [gochannel.GoChannel].
type bus struct {
	pubsub *gochannel.GoChannel
	logger *log.Logger
}

func newBus(logger *log.Logger) *bus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            64,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		newWatermillLogger(logger),
	)
	return &bus{pubsub: pubsub, logger: logger}
}

func (b *bus) publish(cs ChangeSet) error {
	if cs.IsEmpty() {
		return nil
	}

	payload, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("failed to encode change set: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("origin", cs.Origin)
	if err := b.pubsub.Publish(didSaveTopic, msg); err != nil {
		return fmt.Errorf("failed to publish change set: %w", err)
	}
	return nil
}

// subscribe decodes change sets until ctx is done or the bus closes.
func (b *bus) subscribe(ctx context.Context) (<-chan ChangeSet, error) {
	messages, err := b.pubsub.Subscribe(ctx, didSaveTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to change sets: %w", err)
	}

	out := make(chan ChangeSet, 16)
	go func() {
		defer close(out)
		for msg := range messages {
			var cs ChangeSet
			if err := json.Unmarshal(msg.Payload, &cs); err != nil {
				b.logger.Warn("dropping malformed change set", "uuid", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			msg.Ack()

			select {
			case out <- cs:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *bus) close() error {
	return b.pubsub.Close()
}

// watermillLogger adapts a charmbracelet [log.Logger] to [watermill.LoggerAdapter].
type watermillLogger struct {
	logger *log.Logger
}

func newWatermillLogger(l *log.Logger) watermill.LoggerAdapter {
	return &watermillLogger{logger: l.WithPrefix("bus")}
}

func keyvals(fields watermill.LogFields) []any {
	kv := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}

func (w *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error(msg, append(keyvals(fields), "error", err)...)
}

func (w *watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.logger.Debug(msg, keyvals(fields)...)
}

func (w *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug(msg, keyvals(fields)...)
}

func (w *watermillLogger) Trace(msg string, fields watermill.LogFields) {}

func (w *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{logger: w.logger.With(keyvals(fields)...)}
}
