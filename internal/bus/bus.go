// Package bus provides event bus implementations for SMAF.
package bus

import (
	"fmt"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
)

// New creates a new event bus based on configuration. The in-process
// channel bus is the default; NATS connects the pipeline to external
// consumers.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
