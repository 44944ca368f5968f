package worker

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

const natsPendingMessages = 64

type natsSource struct {
	sub  *nats.Subscription
	msgs chan *nats.Msg
}

// NewNatsSource joins queue group on subject so each message reaches one worker
// process.
func NewNatsSource(nc *nats.Conn, subject, queue string) (Source, error) {
	msgs := make(chan *nats.Msg, natsPendingMessages)
	sub, err := nc.ChanQueueSubscribe(subject, queue, msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}
	return &natsSource{sub: sub, msgs: msgs}, nil
}

func (n *natsSource) Next(ctx context.Context) (*Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-n.msgs:
		if !ok {
			return nil, ErrSourceClosed
		}
		m := &Message{Data: msg.Data}
		if msg.Reply != "" {
			m.Reply = msg.Respond
		}
		return m, nil
	}
}

func (n *natsSource) Close() error {
	if err := n.sub.Drain(); err != nil {
		return fmt.Errorf("failed to drain subscription: %w", err)
	}
	return nil
}
