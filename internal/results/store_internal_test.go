package results

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/saveenergy/sockreport/internal/config"
	"github.com/saveenergy/sockreport/internal/loader"
	"github.com/saveenergy/sockreport/pkg/sockperf"
)

func newTestStore(t *testing.T, maxResults int) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "runs.db"), maxResults)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func sampleRun() *loader.Run {
	tests := config.DefaultConfig().Dual.Tests
	return &loader.Run{
		Label: "Dual Board",
		Results: []loader.Result{
			{Test: tests[0], Path: "a.txt", Metrics: sockperf.Extract("avg-latency=12.500 (std-dev=3.250)\npercentile 99.9 = 40.000\n")},
			{Test: tests[5], Path: "b.txt", Metrics: sockperf.Extract("BandWidth is 118.500 MBps (948.000 Mbps)\n")},
		},
		Missing: []loader.Missing{{Test: tests[1], Path: "c.txt"}},
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	s := newTestStore(t, 0)
	id, err := s.Save("Dual Board", sampleRun())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, err := s.Get(id)
	if err != nil || rec == nil {
		t.Fatalf("Get: rec=%v err=%v", rec, err)
	}
	if rec.Label != "Dual Board" || len(rec.Results) != 2 || len(rec.Missing) != 1 {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Results[0].Test != config.TestPingPongDefault || rec.Results[1].Kind != config.KindThroughput {
		t.Fatalf("result order/kind lost: %+v", rec.Results)
	}
	m := rec.Results[0].Metrics
	if m.AvgLatencyUs == nil || *m.AvgLatencyUs != 12.5 || m.Percentiles[99.9] != 40 {
		t.Fatalf("metrics = %+v", m)
	}
	if rec.Results[1].Metrics.AvgLatencyUs != nil {
		t.Fatal("absent field materialised by the archive")
	}

	run := rec.Run(config.DefaultConfig().Dual)
	if run.Results[0].Test.PayloadBytes != 14 || run.Missing[0].Test.Name != config.TestPingPong64 {
		t.Fatalf("rebuilt run = %+v", run)
	}
}

func TestGetUnknownID(t *testing.T) {
	s := newTestStore(t, 0)
	for _, id := range []string{"not-a-uuid", "1b4e28ba-2fa1-11d2-883f-0016d3cca427"} {
		rec, err := s.Get(id)
		if err != nil || rec != nil {
			t.Fatalf("Get(%q) = %v, %v; want nil, nil", id, rec, err)
		}
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t, 0)
	first, _ := s.Save("first", sampleRun())
	time.Sleep(5 * time.Millisecond)
	second, _ := s.Save("second", sampleRun())

	entries, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != second || entries[1].ID != first {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Tests != 2 || entries[0].Missing != 1 {
		t.Fatalf("entry counts = %+v", entries[0])
	}

	limited, err := s.List(1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("List(1) = %v, %v", limited, err)
	}
}

func TestCleanupTrimsToMax(t *testing.T) {
	s := newTestStore(t, 2)
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.Save("run", sampleRun())
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		ids = append(ids, id)
		time.Sleep(5 * time.Millisecond)
	}
	s.cleanup()

	if rec, _ := s.Get(ids[0]); rec != nil {
		t.Fatal("oldest run survived trimming")
	}
	entries, _ := s.List(0)
	if len(entries) != 2 {
		t.Fatalf("entries after trim = %d, want 2", len(entries))
	}
	var orphans int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM run_results WHERE run_id = ?`, ids[0]).Scan(&orphans); err != nil {
		t.Fatal(err)
	}
	if orphans != 0 {
		t.Fatalf("orphaned results = %d", orphans)
	}
}

func TestCleanupRemovesExpired(t *testing.T) {
	s := newTestStore(t, 0)
	id, _ := s.Save("old", sampleRun())
	old := time.Now().UTC().Add(-(retentionDays + 1) * 24 * time.Hour)
	if _, err := s.db.Exec(`UPDATE runs SET created_at = ? WHERE id = ?`, old, id); err != nil {
		t.Fatal(err)
	}
	s.cleanup()
	if rec, _ := s.Get(id); rec != nil {
		t.Fatal("expired run survived cleanup")
	}
}

func TestSaveNilRun(t *testing.T) {
	s := newTestStore(t, 0)
	if _, err := s.Save("x", nil); err == nil {
		t.Fatal("saving a nil run should fail")
	}
}
