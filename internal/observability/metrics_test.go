package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMetrics_ObserveEvaluation(t *testing.T) {
	m := NewMetrics()
	m.ObserveEvaluation(time.Millisecond, nil)
	m.ObserveEvaluation(time.Millisecond, nil)
	m.ObserveEvaluation(time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.evaluations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues("error")))
}

func TestMetrics_ObserveCall(t *testing.T) {
	m := NewMetrics()
	m.ObserveCall("/odds.v1.OddsService/Evaluate", "OK", time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("/odds.v1.OddsService/Evaluate", "OK")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveEvaluation(2*time.Millisecond, nil)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `odds_evaluations_total{outcome="ok"} 1`)
	assert.Contains(t, string(body), "odds_evaluation_seconds_bucket")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.ObserveEvaluation(0, nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.evaluations.WithLabelValues("ok")))
}

func TestPropertyMetrics_CountsEveryObservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := NewMetrics()
		ok := rapid.IntRange(0, 50).Draw(t, "ok")
		failed := rapid.IntRange(0, 50).Draw(t, "failed")
		for i := 0; i < ok; i++ {
			m.ObserveEvaluation(0, nil)
		}
		for i := 0; i < failed; i++ {
			m.ObserveEvaluation(0, errors.New("x"))
		}
		assert.Equal(t, float64(ok), testutil.ToFloat64(m.evaluations.WithLabelValues("ok")))
		assert.Equal(t, float64(failed), testutil.ToFloat64(m.evaluations.WithLabelValues("error")))
	})
}
