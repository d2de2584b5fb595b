package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	minReconnectBackoff = time.Second
	maxReconnectBackoff = 30 * time.Second
)

// ErrNotConnected is returned by Publish while the broker connection is being
// re-established.
var ErrNotConnected = errors.New("rabbitmq publisher not connected")

// session is one connection and its publisher channel.
type session interface {
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error
	// NotifyClose yields an error when the channel or its connection dies
	// and is closed on a clean shutdown.
	NotifyClose() <-chan *amqp.Error
	Close() error
}

type dialFunc func(url, exchange string) (session, error)

// amqpSession is a session over a live broker connection.
type amqpSession struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed chan *amqp.Error
}

// dialAMQP connects, opens the publisher channel and declares the durable
// topic exchange.
func dialAMQP(url, exchange string) (session, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open publisher channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	// Closing the connection also closes the channel, so one watch covers both.
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	return &amqpSession{conn: conn, ch: ch, closed: closed}, nil
}

func (s *amqpSession) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	return s.ch.PublishWithContext(ctx, exchange, key, false, false, msg)
}

func (s *amqpSession) NotifyClose() <-chan *amqp.Error { return s.closed }

func (s *amqpSession) Close() error {
	if err := s.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		s.conn.Close()
		return err
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}

// RabbitPublisher publishes events to a topic exchange, using the event type
// as routing key. When the broker drops the channel or connection it redials
// in the background with growing backoff; publishes in the meantime fail
// with ErrNotConnected.
type RabbitPublisher struct {
	url      string
	exchange string
	dial     dialFunc
	log      logrus.FieldLogger

	minBackoff time.Duration
	maxBackoff time.Duration

	mu      sync.RWMutex // guards session
	session session

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRabbitPublisher dials url, declares a durable topic exchange and starts
// watching the connection.
func NewRabbitPublisher(url, exchange string, log logrus.FieldLogger) (*RabbitPublisher, error) {
	return newRabbitPublisher(url, exchange, dialAMQP, log, minReconnectBackoff, maxReconnectBackoff)
}

func newRabbitPublisher(url, exchange string, dial dialFunc, log logrus.FieldLogger, minBackoff, maxBackoff time.Duration) (*RabbitPublisher, error) {
	s, err := dial(url, exchange)
	if err != nil {
		return nil, err
	}

	p := &RabbitPublisher{
		url:        url,
		exchange:   exchange,
		dial:       dial,
		log:        log.WithField("exchange", exchange),
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		session:    s,
		done:       make(chan struct{}),
	}

	p.wg.Add(1)
	go p.reconnectLoop(s.NotifyClose())
	return p, nil
}

// Publish implements Publisher.
func (p *RabbitPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.session == nil {
		return ErrNotConnected
	}

	return p.session.Publish(ctx, p.exchange, event.Type, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Type:         event.Type,
		Body:         body,
	})
}

func (p *RabbitPublisher) reconnectLoop(closed <-chan *amqp.Error) {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				return
			}
			p.log.WithError(amqpErr).Warn("rabbitmq connection lost")

			p.mu.Lock()
			old := p.session
			p.session = nil
			p.mu.Unlock()
			if old != nil {
				_ = old.Close()
			}

			next := p.redial()
			if next == nil {
				return
			}
			closed = next.NotifyClose()
		}
	}
}

// redial retries until a session is up or the publisher is closed, in which
// case it returns nil.
func (p *RabbitPublisher) redial() session {
	backoff := p.minBackoff
	for {
		timer := time.NewTimer(backoff)
		select {
		case <-p.done:
			timer.Stop()
			return nil
		case <-timer.C:
		}

		s, err := p.dial(p.url, p.exchange)
		if err != nil {
			p.log.WithError(err).WithField("retry_in", backoff.String()).Warn("rabbitmq reconnect failed")
			backoff = min(backoff*3/2, p.maxBackoff)
			continue
		}

		p.mu.Lock()
		select {
		case <-p.done:
			p.mu.Unlock()
			_ = s.Close()
			return nil
		default:
		}
		p.session = s
		p.mu.Unlock()

		p.log.Info("rabbitmq connection re-established")
		return s
	}
}

// Close stops reconnecting and closes the current session.
func (p *RabbitPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		close(p.done)
		s := p.session
		p.session = nil
		p.mu.Unlock()

		if s != nil {
			err = s.Close()
		}
		p.wg.Wait()
	})
	return err
}
