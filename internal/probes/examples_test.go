package probes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExampleProbesProduceValidatorPassingEvents(t *testing.T) {
	fleet := []Probe{
		NewProcessProbe(time.Second),
		NewFlowProbe(time.Second),
		NewAuthProbe(time.Second),
		NewDNSProbe(time.Second),
		NewFileChangeProbe(time.Second),
		NewPeripheralProbe(time.Second),
	}

	for _, p := range fleet {
		events, err := p.Collect(context.Background())
		require.NoError(t, err, "probe %s", p.Name())

		validate, ok := Validators[p.Variant()]
		require.True(t, ok, "no validator registered for variant %q", p.Variant())

		for _, ev := range events {
			assert.Equal(t, p.Variant(), ev.Variant)
			assert.NotEmpty(t, ev.IdempotencyKey)
			assert.NoError(t, validate(ev.Payload), "probe %s produced an invalid payload", p.Name())
		}
	}
}

func TestPeripheralProbeProducesNoEvents(t *testing.T) {
	p := NewPeripheralProbe(time.Second)
	events, err := p.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestExampleProbeReportsConfiguredInterval(t *testing.T) {
	p := NewFlowProbe(5 * time.Second)
	assert.Equal(t, 5*time.Second, p.Interval())
	assert.Equal(t, "flow", p.Name())
}
