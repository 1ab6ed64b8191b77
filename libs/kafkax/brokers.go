package kafkax

import "strings"

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

// Canonical header keys carried on every produced message.
const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
)
