package sink

import (
	"context"
	"errors"

	"github.com/lysyi3m/subrelay/app/relay"
)

// ErrDeliveryFailed marks a message a sink could not deliver. The dispatcher logs
// it and moves on to the next message.
var ErrDeliveryFailed = errors.New("delivery failed")

type Sink interface {
	Name() string
	Send(ctx context.Context, post relay.AcceptedPost) error
}
