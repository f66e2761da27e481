package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/raggae/internal/core/ports"
	"github.com/kirillkom/raggae/internal/infrastructure/resilience"
)

const (
	workersQueueGroup = "workers"
	drainFlushTimeout = 5 * time.Second
)

// Queue publishes document jobs for the worker and consumes them in a
// shared queue group, so each job reaches exactly one worker.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func (o Options) natsOptions() []nats.Option {
	connectTimeout := o.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := o.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := o.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := o.RetryOnFailedConnect == nil || *o.RetryOnFailedConnect

	return []nats.Option{
		nats.Name("raggae"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			slog.Info("nats_connection_closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			slog.Error("nats_async_error", "subject", subject, "error", err)
		}),
	}
}

func NewWithOptions(url, subject string, opts Options) (*Queue, error) {
	conn, err := nats.Connect(url, opts.natsOptions()...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &Queue{conn: conn, subject: subject, executor: opts.ResilienceExecutor}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// PublishDocumentUploaded hands the job to the worker. Connectivity failures
// come back as domain.ErrTemporary so the API can answer 503.
func (q *Queue) PublishDocumentUploaded(ctx context.Context, job ports.DocumentJob) error {
	msg, err := newJobMsg(q.subject, job)
	if err != nil {
		return err
	}
	publish := func(context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish %s: %w", q.subject, err)
		}
		return nil
	}

	if q.executor == nil {
		err = publish(ctx)
	} else {
		err = q.executor.Execute(ctx, "nats.publish", publish, classifyNATSError)
	}
	return wrapTemporaryIfNeeded(err)
}

// SubscribeDocumentUploaded blocks until ctx is done, then drains so that
// in-flight jobs finish before returning.
func (q *Queue) SubscribeDocumentUploaded(ctx context.Context, handle func(context.Context, ports.DocumentJob) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workersQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		q.dispatch(ctx, msg, handle)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", q.subject, err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(drainFlushTimeout); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) dispatch(ctx context.Context, msg *nats.Msg, handle func(context.Context, ports.DocumentJob) error) {
	job, err := decodeJob(msg.Data)
	if err != nil {
		slog.Error("worker_job_decode_failed", "subject", msg.Subject, "error", err)
		return
	}
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := handle(jobCtx, job); err != nil {
		slog.Error("worker_job_failed", "project_id", job.ProjectID, "document_id", job.DocumentID, "error", err)
		return
	}
	slog.Debug("worker_job_done", "project_id", job.ProjectID, "document_id", job.DocumentID)
}
