package internaldefs

import (
	"strings"
	"testing"

	portalAuth "github.com/MrEthical07/portalAuth"
)

func TestDefsCoverEverySnapshotSeries(t *testing.T) {
	m := portalAuth.NewMetrics(portalAuth.MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	snap := m.Snapshot()

	names := map[string]struct{}{}
	counters := map[portalAuth.MetricID]struct{}{}
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "dvss_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %q", def.Name)
		}
		if _, dup := names[def.Name]; dup {
			t.Fatalf("duplicate name %q", def.Name)
		}
		names[def.Name] = struct{}{}
		counters[def.ID] = struct{}{}
	}
	for id := range snap.Counters {
		if _, ok := counters[id]; !ok {
			t.Fatalf("counter %d has no export definition", id)
		}
	}

	for _, def := range HistogramDefs {
		if _, ok := snap.Histograms[def.ID]; !ok {
			t.Fatalf("histogram %q missing from snapshot", def.Name)
		}
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 0, 2, 0, 0, 0, 0, 3, 9}))
	want := [8]uint64{1, 1, 3, 3, 3, 3, 3, 6}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}
