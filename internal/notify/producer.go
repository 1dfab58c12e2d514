// Package notify fans credential lifecycle changes out to the rest of the
// platform via an AMQP fanout exchange, so that services holding a token can
// re-read the store when the credential behind it is refreshed or dies.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/golden-vcr/creds"
)

// FormatConnectionString builds an amqp:// URL from discrete config values
func FormatConnectionString(host string, port int, vhost, user, password string) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", user, password, host, port, vhost)
}

type Producer struct {
	ch       *amqp.Channel
	exchange string
}

func NewProducer(conn *amqp.Connection, exchange string) (*Producer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchange, err)
	}
	return &Producer{
		ch:       ch,
		exchange: exchange,
	}, nil
}

// Send publishes one credential change to the exchange
func (p *Producer) Send(ctx context.Context, change creds.CredentialChange) error {
	body, err := formatMessage(change)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func formatMessage(change creds.CredentialChange) ([]byte, error) {
	return json.Marshal(change)
}
