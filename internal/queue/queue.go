package queue

import (
	"fmt"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/internal/util"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	ExportQueue = "export_queue"

	TopicExchange       = "pubsub_exchange"
	TopicChainsExported = "chains.exported"

	maxRetries   = 10
	retryDelayMs = 10000
)

// Queues lists every work queue the worker consumes.
var Queues = []string{ExportQueue}

// Channel is the subset of *amqp091.Channel used for publishing.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

func Init() *amqp091.Connection {
	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		util.GetEnv("RABBITMQ_HOST"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("[Queue] Failed to connect to RabbitMQ", "err", err)
	}
	return conn
}

// SetupQueues declares the topic exchange and, for every name, the durable
// work queue with its retry and dead letter companions. Messages in the
// retry queue expire back into the work queue.
func SetupQueues(ch Channel, queueNames []string) error {
	if err := ch.ExchangeDeclare(TopicExchange, "topic", false, true, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}

	for _, name := range queueNames {
		declare := []struct {
			name string
			args amqp091.Table
		}{
			{name, nil},
			{name + "_dlq", nil},
			{name + "_retry", amqp091.Table{
				"x-message-ttl":             int32(retryDelayMs),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			}},
		}
		for _, q := range declare {
			if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
				return fmt.Errorf("queue declare %s: %w", q.name, err)
			}
		}
	}
	return nil
}

func PublishFIFO(ch Channel, queueName string, data []byte) error {
	return ch.Publish("", queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}

func PublishTopic(ch Channel, topic string, data []byte) error {
	return ch.Publish(TopicExchange, topic, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}
