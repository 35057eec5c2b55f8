package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
)

// gathered returns the value of the first sample of family name whose labels
// include every pair in want.
func gathered(t *testing.T, reg *prom.Registry, name string, want map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue next
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("no sample %s%v", name, want)
	return 0
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncMessage("runtime_action", MessageSent)
	pr.IncMessage("runtime_action", MessageSent)
	pr.IncMessage("timer_change", MessageCoalesced)
	pr.IncMerge(MergeDiscarded)
	pr.IncRuntimeTransition("started", "local")
	pr.IncStoreFailure("commit")
	pr.SetPeerReachable(true)
	pr.SetRunningTimers(1)

	if got := gathered(t, reg, "pairtimer_messages_total", map[string]string{"type": "runtime_action", "outcome": "sent"}); got != 2 {
		t.Errorf("messages{runtime_action,sent} = %v, want 2", got)
	}
	if got := gathered(t, reg, "pairtimer_merges_total", map[string]string{"result": "discarded"}); got != 1 {
		t.Errorf("merges{discarded} = %v, want 1", got)
	}
	if got := gathered(t, reg, "pairtimer_peer_reachable", nil); got != 1 {
		t.Errorf("peer_reachable = %v, want 1", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 6 {
		t.Errorf("gathered %d metric families, want 6", len(mfs))
	}
}

func TestNilPrometheusRecorder(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncMessage("full_sync", MessageDropped)
	pr.SetPeerReachable(false)
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopRecorder); !ok {
		t.Error("OrNoop(nil) is not NoopRecorder")
	}
}

func TestHTTPHandler(t *testing.T) {
	reg := NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncMerge(MergeApplied)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `pairtimer_merges_total{result="applied"} 1`) {
		t.Errorf("body missing merges counter:\n%s", rec.Body.String())
	}
}
