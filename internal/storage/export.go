package storage

import (
	"encoding/json"
	"io"
	"os"
)

type ExportData struct {
	RunMetadata
	InitialAmps [][]float64 `json:"initial_amps"`
	FinalAmps   [][]float64 `json:"final_amps"`
}

// Export gathers a stored run into one document.
func (s *Store) Export(runID string) (*ExportData, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	initial, err := s.LoadAmplitudes(runID, Initial)
	if err != nil {
		return nil, err
	}
	final, err := s.LoadAmplitudes(runID, Final)
	if err != nil {
		return nil, err
	}
	return &ExportData{RunMetadata: *meta, InitialAmps: initial, FinalAmps: final}, nil
}

func WriteJSON(w io.Writer, data *ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSON(path string, data *ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, data)
}
