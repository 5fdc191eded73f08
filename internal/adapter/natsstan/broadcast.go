package natsstan

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/storefront-commerce/internal/domain"
	stan "github.com/nats-io/stan.go"
)

// Connect — соединение со STAN; пустой clientID заменяется уникальным,
// чтобы экземпляры не выбивали друг друга.
func Connect(clusterID, clientID, url string) (stan.Conn, error) {
	if clientID == "" {
		clientID = fmt.Sprintf("commerce-%d", time.Now().UnixNano())
	}
	return stan.Connect(clusterID, clientID, stan.NatsURL(url))
}

// Publisher — издатель снимков состояния в топик рассылки.
type Publisher struct {
	Conn    stan.Conn
	Subject string
}

func (p *Publisher) Publish(_ context.Context, raw []byte) error {
	return p.Conn.Publish(p.Subject, raw)
}

var _ domain.StatePublisher = (*Publisher)(nil)

// Subscriber — подписчик снимков. Без durable и без queue-группы: каждый
// экземпляр обязан увидеть каждый снимок; при подключении доставляется
// последний разосланный, чтобы новый экземпляр сразу догнал остальных.
type Subscriber struct {
	Conn    stan.Conn
	Subject string
}

func (s *Subscriber) Subscribe(ctx context.Context, handler func(raw []byte)) error {
	sub, err := s.Conn.Subscribe(s.Subject, func(m *stan.Msg) {
		handler(m.Data)
	}, stan.StartWithLastReceived())
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("unsubscribe %s: %v", s.Subject, err)
		}
	}()
	return nil
}

var _ domain.StateSubscriber = (*Subscriber)(nil)
