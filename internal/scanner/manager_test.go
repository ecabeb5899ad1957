package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"Corsgo/internal/httpclient"
	"Corsgo/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScanner struct {
	name  string
	calls int32
	fail  bool
}

func (s *stubScanner) Name() string { return s.name }

func (s *stubScanner) Scan(_ context.Context, target Target, _ *httpclient.Client, _ *logger.Logger, _ ScannerOptions) ([]Finding, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.fail {
		return nil, errors.New("boom")
	}
	return []Finding{{URL: target.URL, Name: s.name}}, nil
}

func TestManager_RunScans(t *testing.T) {
	log := logger.Discard()
	m := NewManager(nil, log, ScannerOptions{Concurrency: 3})

	a := &stubScanner{name: "a"}
	b := &stubScanner{name: "b", fail: true}
	m.RegisterScanner(a)
	m.RegisterScanner(b)

	targets := []Target{{URL: "http://x.test/1"}, {URL: "http://x.test/2"}, {URL: "http://x.test/3"}, {URL: "http://x.test/4"}}
	findings := m.RunScans(context.Background(), targets)

	require.Len(t, findings, 4)
	for i, f := range findings {
		assert.Equal(t, targets[i].URL, f.URL, "findings keep target order")
	}
	assert.EqualValues(t, 4, a.calls)
	assert.EqualValues(t, 4, b.calls)
	assert.Equal(t, []string{"a", "b"}, m.ScannerNames())
}

func TestManager_NothingToDo(t *testing.T) {
	m := NewManager(nil, logger.Discard(), ScannerOptions{})
	assert.Nil(t, m.RunScans(context.Background(), []Target{{URL: "http://x.test"}}))

	m.RegisterScanner(&stubScanner{name: "a"})
	assert.Nil(t, m.RunScans(context.Background(), nil))
}

func TestSeverity_Text(t *testing.T) {
	raw, err := json.Marshal(Finding{Severity: SeverityHigh})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"severity":"High"`)

	var f Finding
	require.NoError(t, json.Unmarshal([]byte(`{"severity":"Information"}`), &f))
	assert.Equal(t, SeverityInfo, f.Severity)

	assert.Error(t, json.Unmarshal([]byte(`{"severity":"critical"}`), &f))
	assert.True(t, SeverityHigh > SeverityMedium && SeverityMedium > SeverityLow && SeverityLow > SeverityInfo)
}
