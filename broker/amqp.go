package broker

import (
	"context"
	"sync"

	"github.com/inverseneural/lab/spec/protocol"

	extErrors "github.com/pkg/errors"
	"github.com/streadway/amqp"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

var _ Broker = &AMQPBroker{}

const (
	subscriptionEventsExchange = "subscription_events"
	statusChangedPrefix        = "subscription."
)

// AMQPBroker describes a message broker via RabbitMQ
type AMQPBroker struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	mu         sync.Mutex
}

// NewAMQPBroker returns a Message Broker over RabbitMQ
func NewAMQPBroker(amqpURI string) (*AMQPBroker, error) {
	amqpConn, err := amqp.Dial(amqpURI)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to Message Broker")
	}
	amqpChan, err := amqpConn.Channel()
	if err != nil {
		amqpConn.Close()
		return nil, extErrors.Wrap(err, "Cannot create broker channel")
	}
	broker := &AMQPBroker{
		connection: amqpConn,
		channel:    amqpChan,
	}
	if err := broker.setupSubscriptionExchange(); err != nil {
		broker.Close()
		return nil, extErrors.Wrap(err, "Cannot declare exchange for subscription events")
	}

	return broker, nil
}

func (a *AMQPBroker) setupSubscriptionExchange() error {
	return a.channel.ExchangeDeclare(
		subscriptionEventsExchange, // name
		"topic",                    // type
		true,                       // durable
		false,                      // auto-deleted
		false,                      // internal
		false,                      // no-wait
		nil,                        // arguments
	)
}

// Close will close the channel and connection to release resources
func (a *AMQPBroker) Close() {
	a.channel.Close()
	a.connection.Close()
}

func (a *AMQPBroker) publishViaRoutingKey(exchange, routingKey string, msg amqp.Publishing) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.channel.Publish(
		exchange,
		routingKey,
		false,
		false,
		msg,
	)
}

// encodeStatusChanged returns the routing key and message for msg. Consumers bind with subscription.<status>
func encodeStatusChanged(msg StatusChanged) (string, amqp.Publishing, error) {
	body, err := proto.Marshal(&protocol.StatusChanged{
		UserId:  msg.UserID,
		From:    msg.From,
		To:      msg.To,
		EventId: msg.EventID,
		At:      timestamppb.New(msg.At),
	})
	if err != nil {
		return "", amqp.Publishing{}, extErrors.Wrap(err, "Cannot encode message into bytes")
	}
	return statusChangedPrefix + msg.To, amqp.Publishing{
		ContentType:  "application/x-protobuf",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.EventID,
		Timestamp:    msg.At,
		Body:         body,
	}, nil
}

// PublishStatusChanged will announce a subscription status change to every bound consumer
func (a *AMQPBroker) PublishStatusChanged(ctx context.Context, msg StatusChanged) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	routingKey, publishing, err := encodeStatusChanged(msg)
	if err != nil {
		return err
	}
	if err := a.publishViaRoutingKey(subscriptionEventsExchange, routingKey, publishing); err != nil {
		return extErrors.Wrap(err, "Cannot publish status change")
	}
	return nil
}
