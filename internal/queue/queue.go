// Package queue runs background jobs on asynq with Redis as the backing store.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// Task is a job type plus an opaque payload. Handlers must be idempotent.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error schedules a retry.
type Handler func(ctx context.Context, task Task) error

// Client enqueues tasks.
type Client interface {
	Enqueue(ctx context.Context, t Task) (string, error)
	Close() error
}

const (
	QueueDefault       = "default"
	QueueNotifications = "notifications"

	defaultMaxRetry  = 5
	defaultRetention = 24 * time.Hour
)

// AsynqClient implements Client.
type AsynqClient struct {
	client *asynq.Client
	queue  string
}

var _ Client = (*AsynqClient)(nil)

// NewAsynqClient connects to the Redis instance at redisURI. Tasks go to queueName.
func NewAsynqClient(redisURI, queueName string) (*AsynqClient, error) {
	opt, err := asynq.ParseRedisURI(redisURI)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis uri: %w", err)
	}
	if queueName == "" {
		queueName = QueueDefault
	}
	return &AsynqClient{client: asynq.NewClient(opt), queue: queueName}, nil
}

func (a *AsynqClient) Enqueue(ctx context.Context, t Task) (string, error) {
	if t.Type == "" {
		return "", errors.New("asynq: task type is required")
	}
	info, err := a.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload),
		asynq.Queue(a.queue),
		asynq.MaxRetry(defaultMaxRetry),
		asynq.Retention(defaultRetention),
	)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (a *AsynqClient) Close() error {
	return a.client.Close()
}

// Server runs registered handlers until its context ends.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewServer builds a worker. queues is a CSV like "notifications=6,default=1".
func NewServer(redisURI string, concurrency int, queues string) (*Server, error) {
	opt, err := asynq.ParseRedisURI(redisURI)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis uri: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	weights := ParseQueueWeights(queues)
	if len(weights) == 0 {
		weights = map[string]int{QueueNotifications: 2, QueueDefault: 1}
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      weights,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			slog.Error("task failed", "type", task.Type(), "error", err)
		}),
	})
	return &Server{server: srv, mux: asynq.NewServeMux()}, nil
}

func (s *Server) Register(taskType string, h Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, Task{Type: t.Type(), Payload: t.Payload()})
	})
}

// Run starts processing and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}

// ParseQueueWeights parses "critical=6,default=3,low=1" into a map.
func ParseQueueWeights(s string) map[string]int {
	res := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		name := strings.TrimSpace(kv[0])
		if name == "" {
			continue
		}
		w := 1
		if len(kv) == 2 {
			if i, err := strconv.Atoi(strings.TrimSpace(kv[1])); err == nil && i > 0 {
				w = i
			}
		}
		res[name] = w
	}
	return res
}
