package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/qctrl/internal/optim"
)

const (
	metadataFile    = "metadata.json"
	initialAmpsFile = "amps_initial.txt"
	finalAmpsFile   = "amps_final.txt"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Seed      int64     `json:"seed"`

	NumTS       int     `json:"n_ts"`
	EvoTime     float64 `json:"evo_time"`
	NumCtrls    int     `json:"n_ctrls"`
	PropType    string  `json:"prop_type"`
	FidType     string  `json:"fid_type"`
	PhaseOption string  `json:"phase_option"`
	FidErrTarg  float64 `json:"fid_err_targ"`
	MaxIter     int     `json:"max_iter"`
	MaxWallTime float64 `json:"max_wall_time"`

	State         string             `json:"state"`
	Reason        string             `json:"reason"`
	InitialFidErr *float64           `json:"initial_fid_err"`
	FinalFidErr   *float64           `json:"final_fid_err"`
	Iterations    int                `json:"iterations"`
	WallTime      float64            `json:"wall_time"`
	Stats         map[string]float64 `json:"stats"`
}

// NewMetadata fills the problem fields from the options the run used.
func NewMetadata(name string, seed int64, nTS int, evoTime float64, nCtrls int, opts optim.Options) RunMetadata {
	return RunMetadata{
		Name:        name,
		Seed:        seed,
		NumTS:       nTS,
		EvoTime:     evoTime,
		NumCtrls:    nCtrls,
		PropType:    opts.PropType.String(),
		FidType:     opts.FidType.String(),
		PhaseOption: opts.PhaseOption.String(),
		FidErrTarg:  opts.FidErrTarg,
		MaxIter:     opts.MaxIter,
		MaxWallTime: opts.MaxWallTime.Seconds(),
	}
}

// finite maps NaN and Inf to null, which JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Save writes a run directory holding the metadata and the initial and
// final amplitude tables, and returns the new run ID.
func (s *Store) Save(meta RunMetadata, result *optim.Result) (string, error) {
	meta.ID = uuid.NewString()
	meta.Timestamp = time.Now()
	meta.State = result.State.String()
	meta.Reason = result.Reason
	meta.InitialFidErr = finite(result.InitialFidErr)
	meta.FinalFidErr = finite(result.FinalFidErr)
	meta.Iterations = result.Iterations
	meta.WallTime = result.WallTime.Seconds()
	meta.Stats = result.Stats.Values()

	runDir := s.Dir(meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := WriteAmplitudesFile(filepath.Join(runDir, initialAmpsFile), result.InitialAmps); err != nil {
		return "", err
	}
	if err := WriteAmplitudesFile(filepath.Join(runDir, finalAmpsFile), result.FinalAmps); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Which selects one of the stored amplitude tables.
type Which int

const (
	Initial Which = iota
	Final
)

func (s *Store) LoadAmplitudes(runID string, which Which) ([][]float64, error) {
	name := finalAmpsFile
	switch which {
	case Initial:
		name = initialAmpsFile
	case Final:
	default:
		return nil, fmt.Errorf("unknown amplitude table %d", which)
	}
	return ReadAmplitudesFile(filepath.Join(s.Dir(runID), name))
}
