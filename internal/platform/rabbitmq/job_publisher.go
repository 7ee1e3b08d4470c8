package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"sam-assistant/internal/model"
)

// JobPublisher puts scrape jobs on a durable queue.
type JobPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewJobPublisher(conn *amqp.Connection, queueName string) *JobPublisher {
	return &JobPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *JobPublisher) Publish(ctx context.Context, job model.ScrapeJob) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal scrape job failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    job.ID,
			Timestamp:    job.CreatedAt,
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish scrape job failed: %w", err)
	}
	return nil
}
