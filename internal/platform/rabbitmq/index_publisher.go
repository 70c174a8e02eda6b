package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"judgment-rag/internal/model"
)

// IndexJobPublisher defers indexing to the index worker by queueing a job per
// persisted judgment. It satisfies the same Index contract as the in-process
// indexer.
type IndexJobPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewIndexJobPublisher(conn *amqp.Connection, queueName string) *IndexJobPublisher {
	return &IndexJobPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *IndexJobPublisher) Index(ctx context.Context, text, documentID string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	payload, err := json.Marshal(model.IndexJob{DocumentID: documentID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal index job failed: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			MessageId:    documentID,
		},
	); err != nil {
		return fmt.Errorf("publish index job failed: %w", err)
	}
	return nil
}
