package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"bookshop/internal/util"
	"github.com/redis/go-redis/v9"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// ErrCorruptJob marks a stored job whose fields cannot be decoded.
var ErrCorruptJob = errors.New("corrupt cleanup job")

// CleanupJob asks a worker to delete the cart items a payment already
// covers, after the inline deletion failed.
type CleanupJob struct {
	ID           string    `json:"id"`
	PaymentID    string    `json:"paymentId"`
	CartIDs      []string  `json:"cartIds"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Attempts     int       `json:"attempts"`
	Deleted      int64     `json:"deleted"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Handler deletes the job's cart ids and reports how many were removed.
type Handler func(ctx context.Context, job CleanupJob) (int64, error)

type Config struct {
	Stream      string
	Group       string
	Consumer    string
	JobTTL      time.Duration
	MaxAttempts int
	Block       time.Duration
	ClaimIdle   time.Duration
	RetryDelay  time.Duration
	MaxLen      int64
	ReadCount   int64
}

// CartCleanupQueue is a Redis stream with a consumer group. Job state lives
// in a hash per job so callers can look it up by id.
type CartCleanupQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	jobTTL       time.Duration
	maxAttempts  int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	readCount    int64
	groupOnce    sync.Once
	groupErr     error
}

func NewCartCleanupQueue(client *redis.Client, cfg Config) (*CartCleanupQueue, error) {
	if client == nil {
		return nil, errors.New("cart cleanup queue requires a redis client")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	q := &CartCleanupQueue{
		client:       client,
		stream:       stream,
		group:        orDefault(strings.TrimSpace(cfg.Group), "cart-cleanup"),
		consumerBase: orDefault(strings.TrimSpace(cfg.Consumer), util.NewID()),
		jobTTL:       positive(cfg.JobTTL, 24*time.Hour),
		maxAttempts:  cfg.MaxAttempts,
		block:        positive(cfg.Block, 5*time.Second),
		claimIdle:    positive(cfg.ClaimIdle, 30*time.Second),
		retryDelay:   positive(cfg.RetryDelay, 2*time.Second),
		maxLen:       cfg.MaxLen,
		readCount:    cfg.ReadCount,
	}
	if q.maxAttempts <= 0 {
		q.maxAttempts = 5
	}
	if q.maxLen <= 0 {
		q.maxLen = 10000
	}
	if q.readCount <= 0 {
		q.readCount = 10
	}
	return q, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func positive(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Enqueue records a queued job and appends it to the stream.
func (q *CartCleanupQueue) Enqueue(ctx context.Context, paymentID string, cartIDs []string) (CleanupJob, error) {
	if len(cartIDs) == 0 {
		return CleanupJob{}, errors.New("cart ids required")
	}
	now := time.Now().UTC()
	job := CleanupJob{
		ID:        util.NewID(),
		PaymentID: strings.TrimSpace(paymentID),
		CartIDs:   append([]string(nil), cartIDs...),
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return CleanupJob{}, fmt.Errorf("write cleanup job: %w", err)
	}
	if err := q.client.XAdd(ctx, q.addArgs(job.ID)).Err(); err != nil {
		return CleanupJob{}, fmt.Errorf("enqueue cleanup job: %w", err)
	}
	return job, nil
}

func (q *CartCleanupQueue) addArgs(jobID string) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{"job_id": jobID},
	}
}

// Job returns the stored state of a job.
func (q *CartCleanupQueue) Job(ctx context.Context, jobID string) (CleanupJob, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return CleanupJob{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return CleanupJob{}, false, err
	}
	if len(data) == 0 {
		return CleanupJob{}, false, nil
	}
	job, err := decodeJob(jobID, data)
	if err != nil {
		return job, true, err
	}
	return job, true, nil
}

// Run consumes jobs with the given number of consumers until ctx is done.
func (q *CartCleanupQueue) Run(ctx context.Context, concurrency int, handler Handler) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				if _, err := q.poll(ctx, consumer, handler); err != nil && ctx.Err() == nil {
					slog.Warn("cart cleanup poll failed", "consumer", consumer, "err", err)
					sleepCtx(ctx, time.Second)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

func (q *CartCleanupQueue) ensureGroup(ctx context.Context) error {
	q.groupOnce.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			q.groupErr = fmt.Errorf("create consumer group: %w", err)
		}
	})
	return q.groupErr
}

// poll reclaims stale deliveries, then reads new ones, and handles each.
func (q *CartCleanupQueue) poll(ctx context.Context, consumer string, handler Handler) (int, error) {
	claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.readCount,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("claim pending: %w", err)
	}
	handled := 0
	for _, msg := range claimed {
		q.handle(ctx, msg, handler)
		handled++
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    q.readCount,
		Block:    q.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return handled, nil
		}
		return handled, fmt.Errorf("read group: %w", err)
	}
	for _, s := range streams {
		for _, msg := range s.Messages {
			q.handle(ctx, msg, handler)
			handled++
		}
	}
	return handled, nil
}

func (q *CartCleanupQueue) handle(ctx context.Context, msg redis.XMessage, handler Handler) {
	jobID, _ := msg.Values["job_id"].(string)
	job, ok, err := q.Job(ctx, jobID)
	if errors.Is(err, ErrCorruptJob) {
		job.Status = StatusFailed
		job.ErrorMessage = err.Error()
		job.UpdatedAt = time.Now().UTC()
		_ = q.writeStatus(ctx, job)
		q.ackAndDel(ctx, msg.ID)
		slog.Error("cart cleanup job unreadable", "job_id", jobID, "err", err)
		return
	}
	if err != nil {
		slog.Warn("cart cleanup job lookup failed", "job_id", jobID, "err", err)
		return
	}
	if !ok || len(job.CartIDs) == 0 {
		q.ackAndDel(ctx, msg.ID)
		return
	}

	job.Attempts++
	job.Status = StatusProcessing
	job.UpdatedAt = time.Now().UTC()
	if err := q.writeStatus(ctx, job); err != nil {
		slog.Warn("cart cleanup status write failed", "job_id", job.ID, "err", err)
		return
	}

	deleted, herr := handler(ctx, job)
	job.UpdatedAt = time.Now().UTC()
	if herr == nil {
		job.Status = StatusDone
		job.ErrorMessage = ""
		job.Deleted = deleted
		_ = q.writeStatus(ctx, job)
		q.ackAndDel(ctx, msg.ID)
		return
	}

	job.ErrorMessage = herr.Error()
	if job.Attempts >= q.maxAttempts {
		job.Status = StatusFailed
		_ = q.writeStatus(ctx, job)
		q.ackAndDel(ctx, msg.ID)
		slog.Error("cart cleanup gave up", "job_id", job.ID, "payment_id", job.PaymentID, "attempts", job.Attempts, "err", herr)
		return
	}
	job.Status = StatusQueued
	_ = q.writeStatus(ctx, job)
	sleepCtx(ctx, q.retryDelay)
	if err := q.requeueAndAck(ctx, msg.ID, job.ID); err != nil {
		// The first delivery stays pending and is reclaimed after claimIdle.
		slog.Warn("cart cleanup requeue failed", "job_id", job.ID, "err", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (q *CartCleanupQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func (q *CartCleanupQueue) requeueAndAck(ctx context.Context, msgID, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, q.addArgs(jobID))
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *CartCleanupQueue) writeStatus(ctx context.Context, job CleanupJob) error {
	ids, err := json.Marshal(job.CartIDs)
	if err != nil {
		return err
	}
	key := q.jobKey(job.ID)
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"paymentId": job.PaymentID,
		"cartIds":   string(ids),
		"status":    job.Status,
		"error":     job.ErrorMessage,
		"attempts":  strconv.Itoa(job.Attempts),
		"deleted":   strconv.FormatInt(job.Deleted, 10),
		"createdAt": job.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": job.UpdatedAt.Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, q.jobTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (q *CartCleanupQueue) jobKey(jobID string) string {
	return fmt.Sprintf("job:%s:%s", q.stream, jobID)
}

func decodeJob(jobID string, data map[string]string) (CleanupJob, error) {
	job := CleanupJob{
		ID:           jobID,
		PaymentID:    data["paymentId"],
		Status:       data["status"],
		ErrorMessage: data["error"],
	}
	job.Attempts, _ = strconv.Atoi(data["attempts"])
	job.Deleted, _ = strconv.ParseInt(data["deleted"], 10, 64)
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, data["createdAt"])
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, data["updatedAt"])
	if v := data["cartIds"]; v != "" {
		if err := json.Unmarshal([]byte(v), &job.CartIDs); err != nil {
			job.CartIDs = nil
			return job, fmt.Errorf("%w %s: cartIds: %v", ErrCorruptJob, jobID, err)
		}
	}
	return job, nil
}
