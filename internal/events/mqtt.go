package events

import (
	"context"
	"encoding/json"
	"fmt"

	"roomdesk/common/mqtt"
	"roomdesk/internal/mutation"

	"go.uber.org/zap"
)

// Broker is the subset of the MQTT client used here; *mqtt.Client satisfies it.
type Broker interface {
	Publish(topic string, retained bool, payload []byte) error
	Subscribe(topic string, handler mqtt.MessageHandler) error
}

// MQTTPublisher announces successful mutations on a topic.
type MQTTPublisher struct {
	broker Broker
	topic  string
	origin string
	logger *zap.Logger
}

func NewMQTTPublisher(broker Broker, topic, origin string, logger *zap.Logger) *MQTTPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &MQTTPublisher{broker: broker, topic: topic, origin: origin, logger: logger}
}

// OnMutation implements mutation.Listener. Failed submits are not announced.
func (p *MQTTPublisher) OnMutation(ev mutation.Event) {
	if !ev.Succeeded() {
		return
	}
	payload, err := json.Marshal(NewMessage(p.origin, ev))
	if err != nil {
		p.logger.Error("Failed to encode room event", zap.Error(err))
		return
	}
	if err := p.broker.Publish(p.topic, false, payload); err != nil {
		p.logger.Warn("Failed to publish room event",
			zap.String("topic", p.topic),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
}

// SubscribeInvalidations drops the local room lists whenever another
// process announces a mutation on topic.
func SubscribeInvalidations(broker Broker, topic, origin string, cache Invalidator, logger *zap.Logger) error {
	if topic == "" {
		topic = DefaultTopic
	}
	return broker.Subscribe(topic, func(_ string, payload []byte) error {
		m, err := decodeMessage(payload)
		if err != nil {
			return fmt.Errorf("decode room event: %w", err)
		}
		applied, err := applyRemote(context.Background(), cache, origin, m)
		if applied {
			logger.Debug("Room lists invalidated by remote event",
				zap.String("origin", m.Origin),
				zap.String("kind", string(m.Kind)),
			)
		}
		return err
	})
}
