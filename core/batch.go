package core

import (
	"context"
	"fmt"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("csp-risk.core")

// AssessBatch runs PerformRiskAssessment over inputs with at most concurrency
// workers (GOMAXPROCS when concurrency < 1). Results keep input order. The
// first failure or a cancelled ctx stops the batch and no results are returned.
func (e *Engine) AssessBatch(ctx context.Context, inputs []*DatasetInput, concurrency int) ([]*RiskAssessmentResult, error) {
	if concurrency < 1 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	ctx, span := tracer.Start(ctx, "core.AssessBatch",
		trace.WithAttributes(
			attribute.Int("batch.size", len(inputs)),
			attribute.Int("batch.concurrency", concurrency),
		),
	)
	defer span.End()

	results := make([]*RiskAssessmentResult, len(inputs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			result, err := e.PerformRiskAssessment(input)
			if err != nil {
				return fmt.Errorf("batch item %d: %w", i, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("batch assessment failed", "size", len(inputs), "error", err)
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	e.logger.Info("batch assessment completed", "size", len(inputs), "concurrency", concurrency)
	return results, nil
}

// PerformanceAdvice is a suggested batch configuration; nothing enforces it
type PerformanceAdvice struct {
	BatchSize        int      `json:"batch_size"`
	Concurrency      int      `json:"concurrency"`
	EstimatedBatches int      `json:"estimated_batches"`
	Notes            []string `json:"notes"`
}

// Sizing assumptions of OptimizePerformance
const (
	recordsPerMB      = 500
	memoryPerWorkerMB = 256
	minBatchSize      = 100
	maxBatchSize      = 10000
)

// OptimizePerformance suggests batch size and concurrency for a dataset of
// datasetSize records given memoryMB of available memory
func OptimizePerformance(memoryMB, datasetSize int) (PerformanceAdvice, error) {
	const op = "OptimizePerformance"
	if memoryMB <= 0 {
		return PerformanceAdvice{}, newRiskError(op, KindInvalidInput, "memory must be positive, got %d MB", memoryMB)
	}
	if datasetSize < 0 {
		return PerformanceAdvice{}, newRiskError(op, KindInvalidInput, "dataset size must not be negative, got %d", datasetSize)
	}

	// A quarter of memory is budgeted for records in flight
	batch := memoryMB * recordsPerMB / 4
	batch = max(minBatchSize, min(batch, maxBatchSize))
	if datasetSize > 0 && datasetSize < batch {
		batch = datasetSize
	}

	workers := max(1, min(memoryMB/memoryPerWorkerMB, runtime.NumCPU()))

	advice := PerformanceAdvice{
		BatchSize:   batch,
		Concurrency: workers,
		Notes:       []string{},
	}
	if datasetSize > 0 {
		advice.EstimatedBatches = (datasetSize + batch - 1) / batch
	}
	if memoryMB < memoryPerWorkerMB {
		advice.Notes = append(advice.Notes, "Available memory is below one worker budget; running sequentially")
	}
	if datasetSize > 100000 {
		advice.Notes = append(advice.Notes, "Large dataset: consider sampling records before assessment")
	}
	return advice, nil
}
