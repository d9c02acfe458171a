package publisher

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
	closed   bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func (f *fakeConn) Close() { f.closed = true }

type countingMetrics struct {
	published, errs, observed int
}

func (m *countingMetrics) NATSPublishedInc()            { m.published++ }
func (m *countingMetrics) NATSPublishErrInc()           { m.errs++ }
func (m *countingMetrics) PublishObserve(time.Duration) { m.observed++ }
func (m *countingMetrics) NATSSetConnected(bool)        {}

func TestPublishRoutePlanned(t *testing.T) {
	nc := &fakeConn{}
	m := &countingMetrics{}
	p := newPublisher(nc, "", m)

	evt := RoutePlannedEvent{
		Modality:  "flight",
		RouteIDs:  []string{"r1"},
		Start:     [2]float64{47.6062, -122.3321},
		End:       [2]float64{34.0522, -118.2437},
		ZoneStart: "America/Los_Angeles",
		ZoneEnd:   "America/Los_Angeles",
		PlannedAt: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishRoutePlanned(evt))

	require.Len(t, nc.subjects, 1)
	assert.Equal(t, "tripplan.route.planned.flight", nc.subjects[0])

	var decoded RoutePlannedEvent
	require.NoError(t, json.Unmarshal(nc.payloads[0], &decoded))
	assert.Equal(t, evt, decoded)

	assert.Equal(t, 1, m.published)
	assert.Equal(t, 1, m.observed)
}

func TestPublishRoutePlanned_Error(t *testing.T) {
	nc := &fakeConn{err: errors.New("nats: connection closed")}
	m := &countingMetrics{}
	p := newPublisher(nc, "staging", m)

	err := p.PublishRoutePlanned(RoutePlannedEvent{Modality: "car"})
	assert.Error(t, err)
	assert.Equal(t, 1, m.errs)
	assert.Equal(t, 0, m.published)
}

func TestClose(t *testing.T) {
	nc := &fakeConn{}
	newPublisher(nc, "", nil).Close()
	assert.True(t, nc.drained)
	assert.True(t, nc.closed)
}

func TestSubjectToken(t *testing.T) {
	tests := map[string]string{
		"flight":       "flight",
		" two words ":  "two_words",
		"a.b":          "a_b",
		"wild*card>":   "wild_card_",
		"path/segment": "path_segment",
		"":             "_",
	}
	for in, want := range tests {
		assert.Equal(t, want, subjectToken(in), "subjectToken(%q)", in)
	}
}
