package service

import (
	"context"
	"sync"
	"time"

	id "veridata/pkg/domain"
	dErrors "veridata/pkg/domain-errors"
)

// numInstanceShards spreads per-instance locks across sharded mutexes so
// unrelated instances rarely contend while operations on the same instance
// always serialize.
const numInstanceShards = 128

// defaultInstanceTxTimeout bounds how long one reconciliation operation may
// hold an instance's scope.
const defaultInstanceTxTimeout = 5 * time.Second

// ShardedTx is the in-memory transaction runner: a coarse per-instance lock
// with no rollback. The Postgres runner in cmd/server supplies real
// commit/rollback semantics; this one backs unit tests and single-node runs,
// where serializing load-decide-mutate per instance is the property that
// matters (two concurrent second entries must not both pass the gate).
type ShardedTx struct {
	shards  [numInstanceShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTx() *ShardedTx {
	return &ShardedTx{}
}

func (t *ShardedTx) RunInstanceTx(ctx context.Context, formInstanceID id.FormInstanceID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultInstanceTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := shardFor(formInstanceID)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring the lock.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

// shardFor hashes the instance ID with FNV-1a for even shard distribution.
func shardFor(formInstanceID id.FormInstanceID) int {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	s := formInstanceID.String()
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return int(h % numInstanceShards)
}
