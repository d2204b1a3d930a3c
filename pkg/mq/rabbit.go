package mq

import (
	"fmt"
	"log"
	"math"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/krish/fieldserve/config"
)

// RabbitMQ wraps an AMQP connection and channel for the notification
// exchange.
type RabbitMQ struct {
	Conn *amqp.Connection
	Chan *amqp.Channel
	URL  string
}

// NewRabbitMQ dials the broker with retries and opens a channel.
func NewRabbitMQ(cfg config.RabbitConfig) (*RabbitMQ, error) {
	rmq := &RabbitMQ{URL: cfg.URL()}

	if err := rmq.connect(); err != nil {
		return nil, err
	}
	return rmq, nil
}

func (r *RabbitMQ) connect() error {
	var conn *amqp.Connection
	var err error

	for i := 1; i <= 5; i++ {
		conn, err = amqp.Dial(r.URL)
		if err == nil {
			ch, chErr := conn.Channel()
			if chErr != nil {
				_ = conn.Close()
				return fmt.Errorf("rabbitmq: open channel: %w", chErr)
			}
			r.Conn = conn
			r.Chan = ch
			log.Println("[mq] connected to RabbitMQ")
			return nil
		}

		log.Printf("[mq] RabbitMQ connect attempt %d failed: %v", i, err)
		time.Sleep(time.Second * time.Duration(math.Pow(2, float64(i)))) // exponential backoff
	}

	return fmt.Errorf("rabbitmq: connect after retries: %w", err)
}

// HealthCheck reports whether the connection is still open.
func (r *RabbitMQ) HealthCheck() error {
	if r.Conn == nil || r.Conn.IsClosed() {
		return fmt.Errorf("rabbitmq: connection closed")
	}
	return nil
}

// Close shuts down the channel and connection.
func (r *RabbitMQ) Close() {
	if r.Chan != nil {
		_ = r.Chan.Close()
	}
	if r.Conn != nil {
		_ = r.Conn.Close()
	}
	r.Conn, r.Chan = nil, nil
	log.Println("[mq] RabbitMQ connection closed")
}
