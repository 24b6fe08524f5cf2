package queue

import (
    "context"
    "encoding/json"
    "log"
    "time"

    "github.com/google/uuid"
    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends events to RabbitMQ.  Each publish dials the broker,
// declares the durable queue and sends a persistent message, so a broker
// restart never leaves the API holding a dead connection.  Errors are
// logged and returned; callers decide whether to ignore them.
type Publisher struct {
    URL string
}

func NewPublisher(url string) *Publisher { return &Publisher{URL: url} }

// PasswordReset implements service.Notifier.
func (p *Publisher) PasswordReset(ctx context.Context, m PasswordResetMail) error {
    return p.publish(ctx, PasswordResetQueue, m)
}

// ContentPublished implements service.Notifier.
func (p *Publisher) ContentPublished(ctx context.Context, ev ContentPublishedEvent) error {
    return p.publish(ctx, ContentPublishedQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, v any) error {
    body, err := json.Marshal(v)
    if err != nil {
        log.Printf("rabbitmq: marshal %s failed: %v", queue, err)
        return err
    }

    conn, err := amqp.Dial(p.URL)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
        log.Printf("rabbitmq: queue declare %s failed: %v", queue, err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    uuid.NewString(),
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
        log.Printf("rabbitmq: publish %s failed: %v", queue, err)
        return err
    }
    return nil
}
