package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"sam-assistant/internal/app"
	"sam-assistant/internal/model"
	"sam-assistant/internal/platform/rabbitmq"
)

type JobRunner interface {
	Run(ctx context.Context, job model.ScrapeJob) (*app.ScrapeJobResult, error)
}

// ScrapeJobWorker consumes scrape jobs one at a time. Failed jobs are dropped,
// not requeued; operators re-enqueue them.
type ScrapeJobWorker struct {
	conn      *amqp.Connection
	runner    JobRunner
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScrapeJobWorker(conn *amqp.Connection, runner JobRunner, queueName string) *ScrapeJobWorker {
	return &ScrapeJobWorker{
		conn:      conn,
		runner:    runner,
		queueName: queueName,
	}
}

func (w *ScrapeJobWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker prefetch failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					log.Error().Err(err).Str("message_id", d.MessageId).Msg("scrape job failed")
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	log.Info().Str("queue", w.queueName).Msg("scrape job worker started")
	return nil
}

func (w *ScrapeJobWorker) handle(ctx context.Context, body []byte) error {
	var job model.ScrapeJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode scrape job failed: %w", err)
	}
	if len(job.URLs) == 0 {
		return fmt.Errorf("scrape job %s has no urls", job.ID)
	}
	_, err := w.runner.Run(ctx, job)
	return err
}

func (w *ScrapeJobWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
