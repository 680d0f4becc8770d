package registry

import (
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// DecoderRegistry decodes analytics message payloads by event type and
// schema version.
type DecoderRegistry struct {
	sources map[enums.AnalyticsEventType]enums.OutboxEventType
}

// NewCartDecoderRegistry covers every catalog event with an analytics twin.
func NewCartDecoderRegistry() *DecoderRegistry {
	r := &DecoderRegistry{sources: map[enums.AnalyticsEventType]enums.OutboxEventType{}}
	for eventType := range catalog {
		if analytics, ok := eventType.Analytics(); ok {
			r.sources[analytics] = eventType
		}
	}
	return r
}

func (r *DecoderRegistry) Decode(eventType enums.AnalyticsEventType, version int, payload json.RawMessage) (any, error) {
	source, ok := r.sources[eventType]
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s", eventType)
	}
	return decodePayload(source, version, payload)
}
