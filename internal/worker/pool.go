package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueReconcile = "jobs:reconcile"

	JobReconcile = "reconcile"

	// MaxJobAttempts is how often a job runs before it goes to the DLQ.
	MaxJobAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

type ReconcilePayload struct {
	Apply bool `json:"apply"`
}

// Dispatcher hands admin jobs to whoever runs them. A nil report means the
// job was queued rather than run.
type Dispatcher interface {
	EnqueueReconcile(ctx context.Context, apply bool) (*dto.ReconcileReport, error)
}

// RedisDispatcher enqueues jobs into Redis lists; the worker pool dequeues
// them via BRPOP.
type RedisDispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *RedisDispatcher {
	return &RedisDispatcher{rdb: rdb}
}

func (d *RedisDispatcher) EnqueueReconcile(ctx context.Context, apply bool) (*dto.ReconcileReport, error) {
	job, err := newJob(JobReconcile, ReconcilePayload{Apply: apply})
	if err != nil {
		return nil, err
	}
	return nil, push(ctx, d.rdb, QueueReconcile, job)
}

// InlineDispatcher runs jobs in the calling goroutine. Used when no Redis is
// configured.
type InlineDispatcher struct {
	reconciler service.Reconciler
}

func NewInlineDispatcher(r service.Reconciler) *InlineDispatcher {
	return &InlineDispatcher{reconciler: r}
}

func (d *InlineDispatcher) EnqueueReconcile(ctx context.Context, apply bool) (*dto.ReconcileReport, error) {
	return d.reconciler.Reconcile(ctx, apply)
}

func newJob(jobType string, payload interface{}) (Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Job{}, err
	}
	return Job{Type: jobType, Payload: data}, nil
}

func push(ctx context.Context, rdb *redis.Client, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming the job queues.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, reconciler service.Reconciler) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, reconciler, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, reconciler service.Reconciler, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, QueueReconcile).Result()
			if err != nil {
				continue
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, reconciler, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, reconciler service.Reconciler, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, rdb, queue, Job{Type: "unknown", Payload: json.RawMessage(`null`)}, "malformed job: "+err.Error())
		return
	}
	job.Attempts++
	log.Info().Str("type", job.Type).Str("queue", queue).Int("attempt", job.Attempts).Msg("processing job")

	err := handleJob(ctx, reconciler, job)
	if err == nil {
		return
	}
	if job.Attempts >= MaxJobAttempts || errors.Is(err, errUnknownJob) {
		SendToDLQ(ctx, rdb, queue, job, err.Error())
		return
	}
	log.Warn().Err(err).Str("type", job.Type).Int("attempt", job.Attempts).Msg("job failed, requeued")
	if perr := push(ctx, rdb, queue, job); perr != nil {
		log.Error().Err(perr).Str("queue", queue).Msg("requeue failed, job lost")
	}
}

var errUnknownJob = errors.New("unknown job type")

func handleJob(ctx context.Context, reconciler service.Reconciler, job Job) error {
	switch job.Type {
	case JobReconcile:
		var p ReconcilePayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("reconcile payload: %w", err)
		}
		_, err := reconciler.Reconcile(ctx, p.Apply)
		return err
	default:
		return fmt.Errorf("%w %q", errUnknownJob, job.Type)
	}
}
