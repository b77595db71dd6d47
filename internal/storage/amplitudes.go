package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// WriteAmplitudes writes one slot per line, controls separated by a space.
func WriteAmplitudes(w io.Writer, amps [][]float64) error {
	bw := bufio.NewWriter(w)
	for _, row := range amps {
		for c, v := range row {
			if c > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.FormatFloat(v, 'e', -1, 64))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// ReadAmplitudes parses whitespace-separated rows. Blank lines and lines
// starting with # are skipped; every row must have the same width.
func ReadAmplitudes(r io.Reader) ([][]float64, error) {
	var amps [][]float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			row[i] = v
		}
		if len(amps) > 0 && len(row) != len(amps[0]) {
			return nil, fmt.Errorf("line %d has %d columns, want %d", line, len(row), len(amps[0]))
		}
		amps = append(amps, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return amps, nil
}

func WriteAmplitudesFile(path string, amps [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteAmplitudes(f, amps); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ReadAmplitudesFile(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAmplitudes(f)
}
