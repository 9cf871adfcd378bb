// Package notify publishes fire-and-forget customer notifications. Delivery
// failures are logged and never propagated to the caller.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const publishTimeout = 5 * time.Second

// Message is one notification event keyed by order id.
type Message struct {
	Kind        string    `json:"kind"`
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Recipient   string    `json:"recipient"`
	Timestamp   time.Time `json:"timestamp"`
}

type Notifier interface {
	OrderCreated(orderID, orderNumber, recipient string)
	PaymentConfirmed(orderID, orderNumber, recipient string)
}

// New returns a Kafka-backed notifier when a broker list is configured, and
// a log-only notifier otherwise.
func New(brokersCSV, topic string) Notifier {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return &logNotifier{}
	}
	return &kafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

type kafkaNotifier struct {
	writer *kafka.Writer
}

func (n *kafkaNotifier) OrderCreated(orderID, orderNumber, recipient string) {
	n.publish(Message{Kind: "order.created", OrderID: orderID, OrderNumber: orderNumber, Recipient: recipient})
}

func (n *kafkaNotifier) PaymentConfirmed(orderID, orderNumber, recipient string) {
	n.publish(Message{Kind: "payment.confirmed", OrderID: orderID, OrderNumber: orderNumber, Recipient: recipient})
}

func (n *kafkaNotifier) publish(msg Message) {
	msg.Timestamp = time.Now().UTC()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		data, err := json.Marshal(msg)
		if err != nil {
			log.Println("[NOTIFY] [ERROR] marshal failed:", err)
			return
		}
		err = n.writer.WriteMessages(ctx, kafka.Message{Key: []byte(msg.OrderID), Value: data})
		if err != nil {
			log.Printf("[NOTIFY] [ERROR] publish %s for order %s failed: %v", msg.Kind, msg.OrderID, err)
		}
	}()
}

type logNotifier struct{}

func (logNotifier) OrderCreated(orderID, orderNumber, recipient string) {
	log.Printf("[NOTIFY] [INFO] order.created order=%s number=%s to=%s", orderID, orderNumber, recipient)
}

func (logNotifier) PaymentConfirmed(orderID, orderNumber, recipient string) {
	log.Printf("[NOTIFY] [INFO] payment.confirmed order=%s number=%s to=%s", orderID, orderNumber, recipient)
}
