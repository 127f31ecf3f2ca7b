package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	routingKey string
	events     []any
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, event any) error {
	p.routingKey = routingKey
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestAuditEmitterBuildsEnvelope(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewAuditEmitter(pub, "audit.log", "dm-service", "test")
	userID := "u1"

	emitter.Emit(context.Background(), "INFO", "audit test", "req-1", &userID)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "audit.log", pub.routingKey)
	envelope := pub.events[0].(AuditEnvelope)
	assert.Equal(t, "audit_log", envelope.EventType)
	assert.Equal(t, "dm-service", envelope.Service)
	assert.Equal(t, "req-1", envelope.RequestID)
	assert.Equal(t, "u1", *envelope.UserID)
	assert.Equal(t, AuditPayload{Level: "INFO", Text: "audit test"}, envelope.Payload)
}

func TestNilAuditEmitterIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "x", "", nil)
	})
}

func TestInitTracingWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "dm-service", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
