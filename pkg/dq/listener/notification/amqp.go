package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// TaskOutcome is a task row of a JobCompletedEvent.
type TaskOutcome struct {
	TaskID     int       `json:"task_id"`
	TaskName   string    `json:"task_name"`
	TaskRule   string    `json:"task_rule"`
	TaskStatus string    `json:"task_status"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

// JobCompletedEvent is published once per finalized batch.
type JobCompletedEvent struct {
	ID               string        `json:"id"`
	RunID            string        `json:"run_id"`
	Environment      string        `json:"environment"`
	BatchID          string        `json:"batch_id"`
	JobID            int           `json:"job_id"`
	JobName          string        `json:"job_name"`
	BatchType        string        `json:"batch_type"`
	JobStatus        string        `json:"job_status"`
	ValidationStatus *string       `json:"validation_status"`
	Status           string        `json:"status"`
	IsRestart        bool          `json:"is_restart"`
	FailFast         bool          `json:"fail_fast"`
	ExceptionType    *string       `json:"exception_type,omitempty"`
	ExceptionMessage *string       `json:"exception_message,omitempty"`
	Tasks            []TaskOutcome `json:"tasks"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       *time.Time    `json:"finished_at"`
	PublishedAt      time.Time     `json:"published_at"`
}

// NewJobCompletedEvent builds the event of a summary with a fresh message id.
func NewJobCompletedEvent(s *Summary, now time.Time) JobCompletedEvent {
	e := JobCompletedEvent{
		ID:               uuid.New().String(),
		RunID:            s.RunID,
		Environment:      s.EnvironmentLabel(),
		BatchID:          s.Log.BatchID,
		JobID:            s.Log.JobID,
		JobName:          s.Log.JobName,
		BatchType:        string(s.Log.BatchType),
		JobStatus:        string(s.Log.JobStatus),
		ValidationStatus: ptrString(s.Log.ValidationStatus),
		Status:           s.Status(),
		IsRestart:        s.Log.IsRestart != nil && *s.Log.IsRestart,
		FailFast:         s.Log.FailFast != nil && *s.Log.FailFast,
		ExceptionType:    s.Log.JobExceptionType,
		ExceptionMessage: s.Log.JobExceptionMessage,
		Tasks:            make([]TaskOutcome, 0, len(s.Tasks)),
		StartedAt:        s.Log.DWCreatedTS,
		FinishedAt:       s.Log.DWUpdatedTS,
		PublishedAt:      now,
	}
	for _, t := range s.Tasks {
		e.Tasks = append(e.Tasks, TaskOutcome{
			TaskID:     t.TaskID,
			TaskName:   t.TaskName,
			TaskRule:   string(t.TaskRule),
			TaskStatus: string(t.TaskStatus),
			StartTime:  t.StartTime,
			EndTime:    t.EndTime,
		})
	}
	return e
}

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a channel to the broker and returns a function closing the whole connection.
type Dialer func(url string) (Channel, func() error, error)

// DialAMQP opens a connection and a channel with amqp091.
func DialAMQP(url string) (Channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return ch, conn.Close, nil
}

// AMQPPublisher publishes JobCompletedEvent messages to a topic exchange.
// The connection is opened on first use and dropped after a failed publish.
type AMQPPublisher struct {
	url        string
	exchange   string
	routingKey string
	dial       Dialer
	executor   *retry.Executor
	now        func() time.Time

	mu      sync.Mutex
	channel Channel
	closeFn func() error
}

// NewAMQPPublisher creates a new AMQPPublisher. A nil dial uses DialAMQP.
func NewAMQPPublisher(url, exchange, routingKey string, dial Dialer, executor *retry.Executor) *AMQPPublisher {
	if dial == nil {
		dial = DialAMQP
	}
	return &AMQPPublisher{
		url:        url,
		exchange:   exchange,
		routingKey: routingKey,
		dial:       dial,
		executor:   executor,
		now:        time.Now,
	}
}

func (p *AMQPPublisher) ensureChannel() (Channel, error) {
	if p.channel != nil {
		return p.channel, nil
	}
	ch, closeFn, err := p.dial(p.url)
	if err != nil {
		return nil, exception.NewTransientError(moduleName, "Failed to connect to the AMQP broker", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	p.channel, p.closeFn = ch, closeFn
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.closeFn != nil {
		_ = p.closeFn()
	}
	p.channel, p.closeFn = nil, nil
}

// Publish sends the event as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, event JobCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.executor.Do(ctx, "publish job event", func(ctx context.Context) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		ch, err := p.ensureChannel()
		if err != nil {
			return err
		}
		err = ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.PublishedAt,
			Type:         "dq.job.completed",
			Body:         body,
		})
		if err != nil {
			p.reset()
			return exception.NewTransientError(moduleName, fmt.Sprintf("Failed to publish to %s/%s", p.exchange, p.routingKey), err)
		}
		logger.Debugf("Published job event %s for batch %s to %s/%s.", event.ID, event.BatchID, p.exchange, p.routingKey)
		return nil
	})
}

// Notify implements Notifier.
func (p *AMQPPublisher) Notify(ctx context.Context, s *Summary) error {
	return p.Publish(ctx, NewJobCompletedEvent(s, p.now()))
}

// Close closes the broker connection if one is open.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

func ptrString[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
