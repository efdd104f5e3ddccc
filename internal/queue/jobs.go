package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmylchreest/cliparr/internal/models"
)

// Job hash field names.
const (
	fieldState      = "state"
	fieldPayload    = "payload"
	fieldProgress   = "progress"
	fieldResult     = "result"
	fieldError      = "error"
	fieldWorker     = "worker"
	fieldQueue      = "queue"
	fieldCancel     = "cancel"
	fieldEnqueuedAt = "enqueued_at"
	fieldStartedAt  = "started_at"
	fieldEndedAt    = "ended_at"
)

// Claim is one job handed to a worker by DequeueBlocking. The payload stays
// raw so that a corrupt submission can still be failed with a structured
// error instead of being lost.
type Claim struct {
	JobID      string
	RawPayload []byte
}

// Request parses the claim payload into a JobRequest.
func (c *Claim) Request() (*models.JobRequest, error) {
	var req models.JobRequest
	if err := json.Unmarshal(c.RawPayload, &req); err != nil {
		return nil, fmt.Errorf("parsing job payload: %w", err)
	}
	return &req, nil
}

// Enqueue atomically registers a job under the caller-chosen id and pushes
// it onto the queue. Ids holding a non-terminal job are rejected with
// ErrDuplicateJob; terminal leftovers from a previous run are replaced.
func (b *Broker) Enqueue(ctx context.Context, req *models.JobRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding job payload: %w", err)
	}

	jobKey := b.jobKey(req.JobID)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	txn := func(tx *redis.Tx) error {
		state, err := tx.HGet(ctx, jobKey, fieldState).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil && !models.JobState(state).IsTerminal() {
			return ErrDuplicateJob
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, jobKey)
			pipe.HSet(ctx, jobKey,
				fieldState, string(models.JobStateQueued),
				fieldPayload, payload,
				fieldQueue, b.queue,
				fieldEnqueuedAt, now,
			)
			pipe.RPush(ctx, b.queueKey(b.queue), req.JobID)
			return nil
		})
		return err
	}

	err = b.client.Watch(ctx, txn, jobKey)
	if errors.Is(err, ErrDuplicateJob) {
		return ErrDuplicateJob
	}
	if errors.Is(err, redis.TxFailedErr) {
		// Raced with another submitter for the same id.
		return ErrDuplicateJob
	}
	if err != nil {
		return brokerErr("enqueue", err)
	}

	b.logger.Info("job enqueued",
		slog.String("job_id", req.JobID),
		slog.String("queue", b.queue),
	)
	return nil
}

// DequeueBlocking claims the oldest queued job, marking it PROCESSING under
// the given worker name. It blocks up to timeout and returns ErrNoJob when
// the queue stays empty.
func (b *Broker) DequeueBlocking(ctx context.Context, workerName string, timeout time.Duration) (*Claim, error) {
	res, err := b.client.BLPop(ctx, timeout, b.queueKey(b.queue)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, brokerErr("dequeue", err)
	}
	// BLPOP returns [key, value].
	jobID := res[1]

	jobKey := b.jobKey(jobID)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, jobKey,
		fieldState, string(models.JobStateProcessing),
		fieldWorker, workerName,
		fieldStartedAt, now,
	)
	pipe.SAdd(ctx, b.runningKey(), jobID)
	payloadCmd := pipe.HGet(ctx, jobKey, fieldPayload)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, brokerErr("claim", err)
	}

	payload, err := payloadCmd.Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, brokerErr("claim payload", err)
	}

	b.logger.Info("job claimed",
		slog.String("job_id", jobID),
		slog.String("worker", workerName),
	)
	return &Claim{JobID: jobID, RawPayload: payload}, nil
}

// UpdateProgress stores the latest snapshot on the job hash. It performs no
// state transition and is a no-op for unknown ids.
func (b *Broker) UpdateProgress(ctx context.Context, jobID string, snap models.ProgressSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}
	if err := b.client.HSet(ctx, b.jobKey(jobID), fieldProgress, data).Err(); err != nil {
		return brokerErr("update progress", err)
	}
	return nil
}

// Complete marks the job COMPLETED with its result. Terminal transitions are
// idempotent: a job already terminal keeps its first outcome.
func (b *Broker) Complete(ctx context.Context, jobID string, result *models.JobResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return b.finish(ctx, jobID, models.JobStateCompleted, fieldResult, data)
}

// Fail marks the job FAILED with a structured error. Idempotent like
// Complete.
func (b *Broker) Fail(ctx context.Context, jobID string, jobErr *models.JobError) error {
	data, err := json.Marshal(jobErr)
	if err != nil {
		return fmt.Errorf("encoding job error: %w", err)
	}
	return b.finish(ctx, jobID, models.JobStateFailed, fieldError, data)
}

// finish performs an idempotent terminal transition and arms the retention
// TTL so old terminal jobs age out of the broker.
func (b *Broker) finish(ctx context.Context, jobID string, state models.JobState, field string, data []byte) error {
	jobKey := b.jobKey(jobID)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	txn := func(tx *redis.Tx) error {
		cur, err := tx.HGet(ctx, jobKey, fieldState).Result()
		if errors.Is(err, redis.Nil) {
			// Job hash already expired; nothing to transition.
			return nil
		}
		if err != nil {
			return err
		}
		if models.JobState(cur).IsTerminal() {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, jobKey,
				fieldState, string(state),
				field, data,
				fieldEndedAt, now,
			)
			pipe.SRem(ctx, b.runningKey(), jobID)
			if b.terminalRetention > 0 {
				pipe.Expire(ctx, jobKey, b.terminalRetention)
			}
			return nil
		})
		return err
	}

	if err := b.client.Watch(ctx, txn, jobKey); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// Lost the race to another terminal transition; first writer wins.
			return nil
		}
		return brokerErr("finish", err)
	}

	b.logger.Info("job finished",
		slog.String("job_id", jobID),
		slog.String("state", string(state)),
	)
	return nil
}

// RequestCancel raises the cancellation flag on a non-terminal job. Workers
// observe it at stage boundaries. Returns false when the job is unknown or
// already terminal.
func (b *Broker) RequestCancel(ctx context.Context, jobID string) (bool, error) {
	jobKey := b.jobKey(jobID)
	state, err := b.client.HGet(ctx, jobKey, fieldState).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, brokerErr("request cancel", err)
	}
	if models.JobState(state).IsTerminal() {
		return false, nil
	}
	if err := b.client.HSet(ctx, jobKey, fieldCancel, "1").Err(); err != nil {
		return false, brokerErr("request cancel", err)
	}
	return true, nil
}

// CancelRequested reports whether cancellation was requested for the job.
func (b *Broker) CancelRequested(ctx context.Context, jobID string) bool {
	v, err := b.client.HGet(ctx, b.jobKey(jobID), fieldCancel).Result()
	if err != nil {
		return false
	}
	return v == "1"
}

// Get returns the broker-side view of one job. Unknown ids come back with
// the not_found sentinel state rather than an error so pollers can retry.
func (b *Broker) Get(ctx context.Context, jobID string) (*models.JobStatus, error) {
	fields, err := b.client.HGetAll(ctx, b.jobKey(jobID)).Result()
	if err != nil {
		return nil, brokerErr("get", err)
	}
	if len(fields) == 0 {
		return &models.JobStatus{JobID: jobID, State: models.JobStateNotFound}, nil
	}

	status := &models.JobStatus{
		JobID:  jobID,
		State:  models.JobState(fields[fieldState]),
		Worker: fields[fieldWorker],
	}

	if raw := fields[fieldProgress]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &status.Progress); err != nil {
			b.logger.Warn("corrupt progress snapshot", slog.String("job_id", jobID), slog.Any("error", err))
		}
	}
	if raw := fields[fieldResult]; raw != "" {
		var result models.JobResult
		if err := json.Unmarshal([]byte(raw), &result); err == nil {
			status.Result = &result
		}
	}
	if raw := fields[fieldError]; raw != "" {
		var jobErr models.JobError
		if err := json.Unmarshal([]byte(raw), &jobErr); err == nil {
			status.Error = &jobErr
		}
	}
	status.EnqueuedAt = parseBrokerTime(fields[fieldEnqueuedAt])
	status.StartedAt = parseBrokerTime(fields[fieldStartedAt])
	status.EndedAt = parseBrokerTime(fields[fieldEndedAt])

	return status, nil
}

// QueueDepth returns the number of jobs waiting on the queue.
func (b *Broker) QueueDepth(ctx context.Context) (int64, error) {
	n, err := b.client.LLen(ctx, b.queueKey(b.queue)).Result()
	if err != nil {
		return 0, brokerErr("queue depth", err)
	}
	return n, nil
}

// ReleaseStale requeues jobs claimed by workers that stopped heartbeating.
// Jobs whose hash vanished under retention are dropped from the running set.
func (b *Broker) ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := b.client.SMembers(ctx, b.runningKey()).Result()
	if err != nil {
		return 0, brokerErr("release stale", err)
	}

	released := 0
	for _, jobID := range ids {
		jobKey := b.jobKey(jobID)
		vals, err := b.client.HMGet(ctx, jobKey, fieldState, fieldWorker, fieldQueue).Result()
		if err != nil {
			continue
		}
		state, _ := vals[0].(string)
		worker, _ := vals[1].(string)
		queueName, _ := vals[2].(string)

		if state == "" || models.JobState(state).IsTerminal() {
			b.client.SRem(ctx, b.runningKey(), jobID)
			continue
		}
		if worker != "" && b.workerAlive(ctx, worker, olderThan) {
			continue
		}
		if queueName == "" {
			queueName = b.queue
		}

		pipe := b.client.TxPipeline()
		pipe.HSet(ctx, jobKey, fieldState, string(models.JobStateQueued), fieldWorker, "")
		pipe.HDel(ctx, jobKey, fieldStartedAt)
		pipe.SRem(ctx, b.runningKey(), jobID)
		pipe.RPush(ctx, b.queueKey(queueName), jobID)
		if _, err := pipe.Exec(ctx); err != nil {
			b.logger.Warn("failed to release stale claim",
				slog.String("job_id", jobID), slog.Any("error", err))
			continue
		}
		released++
		b.logger.Info("released stale claim",
			slog.String("job_id", jobID),
			slog.String("worker", worker),
		)
	}
	return released, nil
}

// parseBrokerTime parses an RFC3339Nano hash field, zero on absence.
func parseBrokerTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
