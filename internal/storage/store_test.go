package storage

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/qctrl/internal/optim"
	"github.com/san-kum/qctrl/internal/stats"
)

func testResult() *optim.Result {
	col := stats.New()
	col.Inc(stats.Iterations, 12)
	return &optim.Result{
		State:         optim.Converged,
		Reason:        "fidelity error reached target",
		InitialAmps:   [][]float64{{0.1, -0.2}, {0.3, 0.4}, {1e-17, 5}},
		FinalAmps:     [][]float64{{1, 2}, {3, 4}, {5, math.Pi}},
		InitialFidErr: 0.8,
		FinalFidErr:   1e-5,
		Iterations:    12,
		WallTime:      1500 * time.Millisecond,
		Stats:         col.Snapshot(),
	}
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	meta := NewMetadata("pi_pulse", 42, 3, math.Pi, 2, optim.DefaultOptions())
	runID, err := st.Save(meta, testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	got, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Name != "pi_pulse" {
		t.Errorf("expected name 'pi_pulse', got '%s'", got.Name)
	}
	if got.Seed != 42 {
		t.Errorf("expected seed 42, got %d", got.Seed)
	}
	if got.State != "CONVERGED" || got.PropType != "DIAG" || got.PhaseOption != "PSU" {
		t.Errorf("enum fields not stored: %s %s %s", got.State, got.PropType, got.PhaseOption)
	}
	if got.FinalFidErr == nil || *got.FinalFidErr != 1e-5 {
		t.Errorf("expected final fid err 1e-5, got %v", got.FinalFidErr)
	}
	if got.WallTime != 1.5 {
		t.Errorf("expected wall time 1.5, got %f", got.WallTime)
	}
	if got.Stats["iterations"] != 12 {
		t.Errorf("expected 12 iterations in stats, got %f", got.Stats["iterations"])
	}

	final, err := st.LoadAmplitudes(runID, Final)
	if err != nil {
		t.Fatalf("load amplitudes failed: %v", err)
	}
	want := testResult().FinalAmps
	for i := range want {
		for c := range want[i] {
			if final[i][c] != want[i][c] {
				t.Errorf("final[%d][%d] = %g, want %g", i, c, final[i][c], want[i][c])
			}
		}
	}

	initial, err := st.LoadAmplitudes(runID, Initial)
	if err != nil {
		t.Fatalf("load amplitudes failed: %v", err)
	}
	if initial[2][0] != 1e-17 {
		t.Errorf("tiny amplitude not preserved: %g", initial[2][0])
	}
}

func TestStoreNonFiniteError(t *testing.T) {
	st := New(t.TempDir())
	res := testResult()
	res.State = optim.Failed
	res.FinalFidErr = math.NaN()

	runID, err := st.Save(RunMetadata{Name: "failed"}, res)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.FinalFidErr != nil {
		t.Errorf("NaN should be stored as null, got %v", *got.FinalFidErr)
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	first, _ := st.Save(RunMetadata{Name: "a"}, testResult())
	time.Sleep(2 * time.Millisecond)
	second, _ := st.Save(RunMetadata{Name: "b"}, testResult())

	// stray entries are skipped
	os.MkdirAll(filepath.Join(tmpDir, "junk"), 0755)
	os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0644)

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("expected newest first, got %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runID, err := st.Save(RunMetadata{}, testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	for _, name := range []string{"metadata.json", "amps_initial.txt", "amps_final.txt"} {
		if _, err := os.Stat(filepath.Join(tmpDir, runID, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
}

func TestAmplitudeText(t *testing.T) {
	var buf bytes.Buffer
	amps := [][]float64{{0.5, -1}, {2, 3.25}}
	if err := WriteAmplitudes(&buf, amps); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one line per slot, got %q", buf.String())
	}
	if len(strings.Fields(lines[0])) != 2 {
		t.Errorf("expected 2 columns, got %q", lines[0])
	}

	got, err := ReadAmplitudes(strings.NewReader("# header\n0.5\t-1\n\n  2   3.25  \n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1][1] != 3.25 || got[0][1] != -1 {
		t.Errorf("unexpected parse: %v", got)
	}

	if _, err := ReadAmplitudes(strings.NewReader("1 2\n3\n")); err == nil {
		t.Error("ragged rows should fail")
	}
	if _, err := ReadAmplitudes(strings.NewReader("1 x\n")); err == nil {
		t.Error("non-numeric field should fail")
	}
}

func TestExport(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.Save(RunMetadata{Name: "exp"}, testResult())
	if err != nil {
		t.Fatal(err)
	}

	data, err := st.Export(runID)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "run.json")
	if err := ExportJSON(path, data); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["name"] != "exp" {
		t.Errorf("expected name exp, got %v", decoded["name"])
	}
	if amps, ok := decoded["final_amps"].([]any); !ok || len(amps) != 3 {
		t.Errorf("final amps missing: %v", decoded["final_amps"])
	}
}
