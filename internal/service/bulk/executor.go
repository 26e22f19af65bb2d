// Package bulk executes large multi-row mutations in fixed-size batches.
// Each batch commits in its own transaction, so a cascading mutation is
// deliberately not atomic as a whole: a failed batch is recorded and the
// remaining batches still run.
package bulk

import (
	"context"
	"log/slog"

	"teamdrive/internal/config"
	"teamdrive/internal/domain/repositories"
)

// Operation is a caller-supplied multi-row write applied to one chunk of
// ids inside a transaction-bearing context.
type Operation func(ctx context.Context, ids []string) error

// Failure names one id a batch could not process and why.
type Failure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Result partitions the input ids by outcome.
type Result struct {
	Succeeded []string  `json:"succeeded"`
	Failed    []Failure `json:"failed"`
}

// Executor splits id sets into chunks and runs an operation per chunk,
// each inside its own committed transaction.
type Executor struct {
	txManager repositories.TransactionManager
	batchSize int
	logger    *slog.Logger
}

// NewExecutor creates an executor with the default batch size.
func NewExecutor(txManager repositories.TransactionManager, logger *slog.Logger) *Executor {
	return NewExecutorWithBatchSize(txManager, config.DefaultBatchSize, logger)
}

// NewExecutorWithBatchSize creates an executor with an explicit batch size.
func NewExecutorWithBatchSize(txManager repositories.TransactionManager, batchSize int, logger *slog.Logger) *Executor {
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}
	return &Executor{
		txManager: txManager,
		batchSize: batchSize,
		logger:    logger,
	}
}

// BatchSize returns the chunk size in effect.
func (e *Executor) BatchSize() int {
	return e.batchSize
}

// Execute applies op to ids in fixed-size chunks, committing each chunk
// independently. A chunk failure marks its member ids failed and moves
// on; earlier chunks are never rolled back.
func (e *Executor) Execute(ctx context.Context, ids []string, op Operation) Result {
	var result Result

	for start := 0; start < len(ids); start += e.batchSize {
		end := start + e.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		err := e.txManager.ExecTx(ctx, func(txCtx context.Context) error {
			return op(txCtx, chunk)
		})
		if err != nil {
			e.logger.Error("batch failed",
				"chunk_start", start,
				"chunk_size", len(chunk),
				"error", err,
			)
			for _, id := range chunk {
				result.Failed = append(result.Failed, Failure{ID: id, Reason: err.Error()})
			}
			continue
		}

		result.Succeeded = append(result.Succeeded, chunk...)
	}

	return result
}
