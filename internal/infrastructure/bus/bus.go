package bus

import (
	"context"
)

// Publisher is the capability the event publisher needs from a message bus:
// publish one payload under a partition key and report a confirmed send or an
// error. Implementations must not report success before the bus acknowledged
// the message.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}
