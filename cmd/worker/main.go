package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/laddering/backend/internal/queue"
	"github.com/OFFIS-RIT/laddering/backend/internal/storage"
	"github.com/OFFIS-RIT/laddering/backend/internal/util"
	"github.com/OFFIS-RIT/laddering/backend/pkg/leaselock"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger/console"
	pgstore "github.com/OFFIS-RIT/laddering/backend/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
		JSON:  util.GetEnvString("LOG_FORMAT", "text") == "json",
	})
	logger.Init(consoleLogger)

	bucket, err := storage.NewBucketFromEnv(ctx)
	if err != nil {
		logger.Fatal("Could not create s3 client", "err", err)
	}

	pgConn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	hostname, _ := os.Hostname()
	locker := leaselock.New(pgConn, "worker/"+hostname)

	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	processor := queue.NewExportProcessor(pgstore.NewInterviewDBStorage(pgConn), bucket, locker, ch)

	// One consumer channel with prefetch=1 so a worker handles a single job
	// at a time across all queues.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}
	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		msgs, err := consumerCh.Consume(
			queueName,
			fmt.Sprintf("%s_%s_consumer", hostname, queueName),
			false, // autoAck
			false, // exclusive
			false, // noLocal
			false, // noWait
			nil,   // args
		)
		if err != nil {
			logger.Fatal("Failed to start consuming", "queue", queueName, "err", err)
		}

		go func(qName string, msgs <-chan amqp.Delivery) {
			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						stop()
						return
					}
					select {
					case messageChan <- queuedMessage{msg: msg, queueName: qName}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(queueName, msgs)
	}

	logger.Info("Listening for messages", "queues", queue.Queues)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case qm := <-messageChan:
			startTime := time.Now()
			logger.Info("Received message", "queue", qm.queueName)

			var processingErr error
			switch qm.queueName {
			case queue.ExportQueue:
				processingErr = processor.ProcessExportMessage(ctx, qm.msg.Body)
			default:
				processingErr = fmt.Errorf("no handler for queue %s", qm.queueName)
			}

			if processingErr != nil {
				logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
				queue.HandleProcessingError(consumerCh, qm.msg, qm.queueName)
			} else {
				if err := qm.msg.Ack(false); err != nil {
					logger.Error("Failed to ack message", "err", err)
				}
				logger.Info("Message processed successfully", "queue", qm.queueName, "duration", time.Since(startTime))
			}
		}
	}
}
