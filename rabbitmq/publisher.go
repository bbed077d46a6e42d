package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"waterlog/models"
)

// Publisher publishes report events to a RabbitMQ exchange
type Publisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// NewPublisher connects to RabbitMQ and declares a durable topic exchange.
// An empty routingKey routes each event by its type.
func NewPublisher(amqpURL, exchangeName, routingKey string) (*Publisher, error) {
	conn, err := amqp.DialConfig(amqpURL, amqp.Config{
		Dial: amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:       conn,
		channel:    channel,
		exchange:   exchangeName,
		routingKey: routingKey,
	}, nil
}

func (p *Publisher) Name() string {
	return "rabbitmq"
}

// Send publishes evt as a persistent JSON message.
func (p *Publisher) Send(evt models.ReportEvent) error {
	key, msg, err := p.message(evt)
	if err != nil {
		return err
	}
	err = p.channel.Publish(
		p.exchange, // exchange
		key,        // routing key
		false,      // mandatory
		false,      // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.Type, err)
	}
	return nil
}

func (p *Publisher) message(evt models.ReportEvent) (string, amqp.Publishing, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return "", amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	key := p.routingKey
	if key == "" {
		key = evt.Type
	}
	return key, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    evt.Timestamp,
		Type:         evt.Type,
	}, nil
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
