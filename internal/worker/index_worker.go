package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"judgment-rag/internal/app"
	"judgment-rag/internal/model"
	"judgment-rag/internal/platform/rabbitmq"
)

const defaultPrefetch = 4

type disposition int

const (
	dispositionAck disposition = iota
	dispositionRequeue
	dispositionDrop
)

// IndexWorker consumes queued index jobs and runs them through an in-process
// indexer. Failed jobs are dropped and logged; the judgment stays persisted.
// Jobs interrupted by shutdown go back on the queue.
type IndexWorker struct {
	conn      *amqp.Connection
	indexer   app.Indexer
	queueName string
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIndexWorker(conn *amqp.Connection, indexer app.Indexer, queueName string, logger *slog.Logger) *IndexWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexWorker{
		conn:      conn,
		indexer:   indexer,
		queueName: queueName,
		logger:    logger.With("component", "index_worker", "queue", queueName),
	}
}

func (w *IndexWorker) Start(ctx context.Context) error {
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
	if err := ch.Qos(defaultPrefetch, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
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
					w.logger.Warn("delivery channel closed")
					return
				}
				switch w.handle(workerCtx, d.Body) {
				case dispositionAck:
					_ = d.Ack(false)
				case dispositionRequeue:
					_ = d.Nack(false, true)
				default:
					_ = d.Nack(false, false)
				}
			}
		}
	}()

	w.logger.Info("index worker started")
	return nil
}

// handle runs one job and decides what happens to its delivery.
func (w *IndexWorker) handle(ctx context.Context, body []byte) disposition {
	var job model.IndexJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.logger.Error("decode index job failed", "error", err)
		return dispositionDrop
	}
	if job.DocumentID == "" {
		w.logger.Error("index job without document id")
		return dispositionDrop
	}
	if ctx.Err() != nil {
		w.logger.Info("worker stopping, requeueing index job", "document_id", job.DocumentID)
		return dispositionRequeue
	}

	if err := w.indexer.Index(ctx, job.Text, job.DocumentID); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			w.logger.Warn("index job interrupted, requeueing", "document_id", job.DocumentID, "error", err)
			return dispositionRequeue
		}
		w.logger.Error("index job failed", "document_id", job.DocumentID, "error", err)
		return dispositionDrop
	}
	return dispositionAck
}

func (w *IndexWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
