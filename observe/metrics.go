// Package observe provides the logging and OpenTelemetry metrics plumbing
// for parley.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs an SDK meter provider backed by a Prometheus exporter so the
// counters can be scraped from /metrics. Tests should build a [Metrics] with
// [NewMetrics] over their own provider. Every Record method is safe to call
// on a nil *Metrics, which records nothing.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all parley metrics.
const meterName = "github.com/nathoo/parley"

// Metrics holds the conversation instruments.
type Metrics struct {
	// ConversationsStarted counts successful starts. Attributes: npc_id, dialogue_id, forced.
	ConversationsStarted metric.Int64Counter

	// ConversationsEnded counts ends. Attributes: npc_id, dialogue_id, completed.
	ConversationsEnded metric.Int64Counter

	// LinesAdvanced counts line changes. Attribute: npc_id.
	LinesAdvanced metric.Int64Counter

	// ChoicesMade counts resolved choices. Attributes: npc_id, dialogue_id.
	ChoicesMade metric.Int64Counter

	// Rejections counts operations refused for a precondition. Attributes: op, reason.
	Rejections metric.Int64Counter

	// SaveWrites counts save backend writes. Attribute: status.
	SaveWrites metric.Int64Counter

	// ActiveConversations is 1 while a conversation is in progress.
	ActiveConversations metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ConversationsStarted, err = m.Int64Counter("parley.conversations.started",
		metric.WithDescription("Conversations started by NPC and dialogue."),
	); err != nil {
		return nil, err
	}
	if met.ConversationsEnded, err = m.Int64Counter("parley.conversations.ended",
		metric.WithDescription("Conversations ended by NPC, dialogue, and whether they completed."),
	); err != nil {
		return nil, err
	}
	if met.LinesAdvanced, err = m.Int64Counter("parley.lines.advanced",
		metric.WithDescription("Line changes by NPC."),
	); err != nil {
		return nil, err
	}
	if met.ChoicesMade, err = m.Int64Counter("parley.choices.made",
		metric.WithDescription("Choices made by NPC and dialogue."),
	); err != nil {
		return nil, err
	}
	if met.Rejections, err = m.Int64Counter("parley.operations.rejected",
		metric.WithDescription("Engine operations refused by operation and reason."),
	); err != nil {
		return nil, err
	}
	if met.SaveWrites, err = m.Int64Counter("parley.save.writes",
		metric.WithDescription("Save backend writes by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveConversations, err = m.Int64UpDownCounter("parley.conversations.active",
		metric.WithDescription("Number of conversations in progress."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordStart records a successful conversation start.
func (m *Metrics) RecordStart(ctx context.Context, npcID, dialogueID string, forced bool) {
	if m == nil {
		return
	}
	m.ConversationsStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("npc_id", npcID),
		attribute.String("dialogue_id", dialogueID),
		attribute.Bool("forced", forced),
	))
	m.ActiveConversations.Add(ctx, 1)
}

// RecordEnd records a conversation end.
func (m *Metrics) RecordEnd(ctx context.Context, npcID, dialogueID string, completed bool) {
	if m == nil {
		return
	}
	m.ConversationsEnded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("npc_id", npcID),
		attribute.String("dialogue_id", dialogueID),
		attribute.Bool("completed", completed),
	))
	m.ActiveConversations.Add(ctx, -1)
}

// RecordLine records a line change.
func (m *Metrics) RecordLine(ctx context.Context, npcID string) {
	if m == nil {
		return
	}
	m.LinesAdvanced.Add(ctx, 1, metric.WithAttributes(attribute.String("npc_id", npcID)))
}

// RecordChoice records a resolved choice.
func (m *Metrics) RecordChoice(ctx context.Context, npcID, dialogueID string) {
	if m == nil {
		return
	}
	m.ChoicesMade.Add(ctx, 1, metric.WithAttributes(
		attribute.String("npc_id", npcID),
		attribute.String("dialogue_id", dialogueID),
	))
}

// RecordRejection records an operation refused for a precondition.
func (m *Metrics) RecordRejection(ctx context.Context, op, reason string) {
	if m == nil {
		return
	}
	m.Rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("reason", reason),
	))
}

// RecordSave records a save backend write; status is "ok" or "error".
func (m *Metrics) RecordSave(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.SaveWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
