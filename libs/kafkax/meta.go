package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

// EventMeta is the metadata carried in headers on every published event.
type EventMeta struct {
	EventID   string
	EventType string
	TenantID  string
}

// Headers renders meta as Kafka headers, skipping empty values.
func (m EventMeta) Headers() []kafka.Header {
	var headers []kafka.Header
	for _, kv := range [][2]string{
		{"event_id", m.EventID},
		{"event_type", m.EventType},
		{"tenant_id", m.TenantID},
	} {
		if kv[1] == "" {
			continue
		}
		headers = append(headers, kafka.Header{Key: kv[0], Value: []byte(kv[1])})
	}
	return headers
}

func ExtractEventMeta(msg kafka.Message) EventMeta {
	eventID := HeaderValue(msg.Headers, "event_id")
	eventType := HeaderValue(msg.Headers, "event_type")
	if eventID == "" {
		eventID = string(msg.Key)
	}
	if eventType == "" {
		eventType = msg.Topic
	}
	return EventMeta{EventID: eventID, EventType: eventType, TenantID: HeaderValue(msg.Headers, "tenant_id")}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
