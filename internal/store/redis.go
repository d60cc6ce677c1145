package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"clipforge/internal/models"
)

const keyPrefix = "job:"

// RedisStore keeps each job as a JSON document under job:<id>.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func jobKey(id string) string {
	return keyPrefix + id
}

// Put upserts the full job record.
func (s *RedisStore) Put(ctx context.Context, job models.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.client.Set(ctx, jobKey(job.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("set job: %w", err)
	}
	return nil
}

// Get fetches a job by id. The second return value is false if absent.
func (s *RedisStore) Get(ctx context.Context, id string) (models.Job, bool, error) {
	raw, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Job{}, false, nil
	}
	if err != nil {
		return models.Job{}, false, fmt.Errorf("get job: %w", err)
	}
	var job models.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return models.Job{}, false, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, true, nil
}

// ListAll scans every job record. O(n) over all jobs, which is acceptable at
// this deployment's volume; a larger install would index by status.
func (s *RedisStore) ListAll(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", iter.Val(), err)
		}
		var job models.Job
		if err := json.Unmarshal(raw, &job); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", iter.Val(), err)
		}
		jobs = append(jobs, job)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan jobs: %w", err)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// claimScript swaps the status field in place only when the current status
// matches, so two activations racing on the same pending job cannot both win.
var claimScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return nil
end
local job = cjson.decode(raw)
if job['status'] ~= ARGV[1] then
  return nil
end
job['status'] = ARGV[2]
local out = cjson.encode(job)
redis.call('SET', KEYS[1], out)
return out
`)

// Claim atomically moves the job from fromStatus to toStatus. It returns the
// updated record and true when the swap happened; a missing job or a status
// mismatch returns false with no error.
func (s *RedisStore) Claim(ctx context.Context, id, fromStatus, toStatus string) (models.Job, bool, error) {
	res, err := claimScript.Run(ctx, s.client, []string{jobKey(id)}, fromStatus, toStatus).Result()
	if errors.Is(err, redis.Nil) {
		return models.Job{}, false, nil
	}
	if err != nil {
		return models.Job{}, false, fmt.Errorf("claim job: %w", err)
	}
	raw, ok := res.(string)
	if !ok {
		return models.Job{}, false, fmt.Errorf("unexpected type from claim script: %T", res)
	}
	var job models.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return models.Job{}, false, fmt.Errorf("unmarshal claimed job: %w", err)
	}
	return job, true, nil
}

func (s *RedisStore) Close() {
	_ = s.client.Close()
}
