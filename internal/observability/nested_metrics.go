package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// NestedMetrics holds custom metrics for mutations and the nested relation
// operations they carry.
type NestedMetrics struct {
	mutationCounter   metric.Int64Counter
	relationOpCounter metric.Int64Counter
	inputDepth        metric.Int64Histogram
	inputBulk         metric.Int64Histogram
	contractRegistry  metric.Int64Gauge
}

// InitNestedMetrics initializes mutation and relation operation metrics.
func InitNestedMetrics() (*NestedMetrics, error) {
	meter := otel.Meter("nestql")

	mutationCounter, err := meter.Int64Counter(
		"graphql.mutations.total",
		metric.WithDescription("Total number of mutation resolver executions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mutation counter: %w", err)
	}

	relationOpCounter, err := meter.Int64Counter(
		"graphql.relation_ops.total",
		metric.WithDescription("Total number of nested relation operations dispatched"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create relation op counter: %w", err)
	}

	inputDepth, err := meter.Int64Histogram(
		"graphql.mutation.input_depth",
		metric.WithDescription("Nesting depth of mutation input trees"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input depth histogram: %w", err)
	}

	inputBulk, err := meter.Int64Histogram(
		"graphql.mutation.input_bulk",
		metric.WithDescription("Largest relation list carried by a mutation input"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input bulk histogram: %w", err)
	}

	contractRegistry, err := meter.Int64Gauge(
		"graphql.relation_contracts.registry_size",
		metric.WithDescription("Number of relation operation contracts in the generator cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create contract registry gauge: %w", err)
	}

	return &NestedMetrics{
		mutationCounter:   mutationCounter,
		relationOpCounter: relationOpCounter,
		inputDepth:        inputDepth,
		inputBulk:         inputBulk,
		contractRegistry:  contractRegistry,
	}, nil
}

// RecordMutation counts one mutation resolver execution. The outcome is
// "success" or a stable error code.
func (m *NestedMetrics) RecordMutation(ctx context.Context, action, outcome string) {
	m.mutationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

// RecordRelationOp counts one nested relation operation dispatch.
func (m *NestedMetrics) RecordRelationOp(ctx context.Context, verb, outcome string) {
	m.relationOpCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("verb", verb),
		attribute.String("outcome", outcome),
	))
}

// RecordInputShape records the measured depth and bulk of a mutation input,
// for tuning the configured limits.
func (m *NestedMetrics) RecordInputShape(ctx context.Context, action string, depth, bulk int64) {
	attrs := metric.WithAttributes(attribute.String("action", action))
	m.inputDepth.Record(ctx, depth, attrs)
	if bulk > 0 {
		m.inputBulk.Record(ctx, bulk, attrs)
	}
}

// SetContractRegistrySize reports the current contract cache size.
func (m *NestedMetrics) SetContractRegistrySize(ctx context.Context, size int) {
	m.contractRegistry.Record(ctx, int64(size))
}
