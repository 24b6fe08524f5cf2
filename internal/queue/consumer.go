package queue

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// HandlerFunc processes one message body.  A returned error rejects the
// message without requeueing it.
type HandlerFunc func(ctx context.Context, body []byte) error

// Consume connects to RabbitMQ, declares queue and feeds every delivery to
// handle.  It reconnects with exponential backoff (capped at 30s) until ctx
// is cancelled, which is the only way it returns.
func Consume(ctx context.Context, url, queue string, handle HandlerFunc) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("%s consumer: failed to dial broker: %v; retrying in %s", queue, err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, queue, handle)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("%s consumer: consume loop ended: %v; reconnecting", queue, err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, handle HandlerFunc) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("%s consumer: set QoS failed: %v", queue, err)
    }
    if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := handle(ctx, d.Body); err != nil {
                log.Printf("%s consumer: handle message failed: %v", queue, err)
                _ = d.Nack(false, false) // no requeue, avoids a hot loop on poison messages
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
