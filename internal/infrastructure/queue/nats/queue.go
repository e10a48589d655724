package nats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/akazantsev/specqa/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// Queue carries the two document lifecycle subjects: "ingested" fans work
// out to the indexing workers, "indexed" notifies api processes so they can
// refresh resolver state.
type Queue struct {
	conn            *nats.Conn
	ingestedSubject string
	indexedSubject  string
	executor        *resilience.Executor
}

func New(url, ingestedSubject, indexedSubject string) (*Queue, error) {
	return NewWithOptions(url, ingestedSubject, indexedSubject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, ingestedSubject, indexedSubject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("specqa"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected: %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:            conn,
		ingestedSubject: ingestedSubject,
		indexedSubject:  indexedSubject,
		executor:        options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	return q.publish(ctx, q.ingestedSubject, documentID)
}

func (q *Queue) PublishDocumentIndexed(ctx context.Context, documentID string) error {
	return q.publish(ctx, q.indexedSubject, documentID)
}

func (q *Queue) publish(ctx context.Context, subject, documentID string) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, []byte(documentID)); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeDocumentIngested joins the "workers" queue group so a document
// is processed by exactly one worker.
func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, q.ingestedSubject, "workers", handler)
}

// SubscribeDocumentIndexed fans out to every api process; no queue group.
func (q *Queue) SubscribeDocumentIndexed(ctx context.Context, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, q.indexedSubject, "", handler)
}

func (q *Queue) subscribe(ctx context.Context, subject, group string, handler func(context.Context, string) error) error {
	callback := func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, string(msg.Data)); err != nil {
			log.Printf("handler error for doc=%s: %v", string(msg.Data), err)
		}
	}

	var sub *nats.Subscription
	var err error
	if group != "" {
		sub, err = q.conn.QueueSubscribe(subject, group, callback)
	} else {
		sub, err = q.conn.Subscribe(subject, callback)
	}
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
