package metrics

import (
	"strings"
	"testing"
)

func TestRenderIncludesJobCounters(t *testing.T) {
	IncJobsCreated()
	IncJobCompleted()
	AddFilesRejected(2)
	ObserveJobDurationMs(300)

	out := Render()
	for _, want := range []string{
		"# TYPE jobs_created_total counter",
		"files_rejected_total",
		"job_duration_ms_bucket{le=\"500\"}",
		"job_duration_ms_bucket{le=\"+Inf\"}",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestHistogramCumulativeBuckets(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	snap := h.Snapshot()
	if snap.count != 3 || snap.sum != 555 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.counts[0] != 1 || snap.counts[1] != 2 {
		t.Fatalf("unexpected bucket counts %v", snap.counts)
	}
}
