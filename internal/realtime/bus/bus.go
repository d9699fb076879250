// Package bus fans session events out across server instances. Each instance
// publishes to the bus and forwards what it receives into its local SSE hub.
package bus

import (
	"context"

	"github.com/yungbote/neurobridge-learnview/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)
