package notify

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DeliveryResult records the outcome of one recipient's send.
type DeliveryResult struct {
	To  string
	Err error
}

// Broadcaster fans a batch of messages out through a Mailer. Every failure
// is logged and captured in the result list; Broadcast itself never fails.
type Broadcaster struct {
	mailer Mailer
	logger *zap.Logger
	limit  int
}

func NewBroadcaster(mailer Mailer, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		mailer: mailer,
		logger: logger,
		limit:  4,
	}
}

// Broadcast sends each message concurrently and returns one result per
// message, in input order.
func (b *Broadcaster) Broadcast(ctx context.Context, msgs []Message) []DeliveryResult {
	results := make([]DeliveryResult, len(msgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)

	for i, msg := range msgs {
		g.Go(func() error {
			err := b.mailer.Send(gctx, msg)
			results[i] = DeliveryResult{To: msg.To, Err: err}
			if err != nil {
				b.logger.Warn("notification delivery failed",
					zap.String("to", msg.To),
					zap.String("subject", msg.Subject),
					zap.Error(err),
				)
			}
			// Never abort the group: each recipient is independent.
			return nil
		})
	}

	_ = g.Wait()
	return results
}
