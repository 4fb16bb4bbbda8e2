// Package density reads the text reports lasinfo writes next to each
// point-cloud file and turns the measured point densities into a tile edge
// length.
package density

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lidarflow/internal/logging"
	"lidarflow/internal/manifest"
)

const (
	densityMarker = "point density:"
	recordsMarker = "number of point records:"
)

// ParseError reports a report file that does not yield the expected value.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "density report " + msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Sample is the measured density of one point-cloud file.
type Sample struct {
	File    string
	Report  string
	Density float64
}

// ReportPath returns the lasinfo -otxt artifact for a point-cloud file:
// the same path with a .txt extension.
func ReportPath(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file)) + ".txt"
}

// ParseDensity scans a lasinfo report for the "point density:" line and
// returns the value following the word "only" (last-return density).
func ParseDensity(r io.Reader) (float64, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, densityMarker) {
			continue
		}
		fields := strings.Fields(line)
		for i, f := range fields {
			if f != "only" {
				continue
			}
			if i+1 >= len(fields) {
				return 0, &ParseError{Reason: "no value after \"only\""}
			}
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return 0, &ParseError{Reason: fmt.Sprintf("non-numeric density %q", fields[i+1]), Err: err}
			}
			return v, nil
		}
		return 0, &ParseError{Reason: "density line has no \"only\" token"}
	}
	if err := scanner.Err(); err != nil {
		return 0, &ParseError{Reason: "read failed", Err: err}
	}
	return 0, &ParseError{Reason: "no \"point density:\" line"}
}

// ParsePointCount returns the value of the "number of point records:" line.
func ParsePointCount(r io.Reader) (int64, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, recordsMarker) {
			continue
		}
		raw := strings.TrimSpace(strings.TrimPrefix(line, recordsMarker))
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, &ParseError{Reason: fmt.Sprintf("non-numeric point count %q", raw), Err: err}
		}
		return n, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, &ParseError{Reason: "read failed", Err: err}
	}
	return 0, &ParseError{Reason: "no \"number of point records:\" line"}
}

// Probe returns the density of every point-cloud file in dir, in manifest
// order. Every file must have a parseable report.
func Probe(dir string) ([]Sample, error) {
	files, err := manifest.List(dir)
	if err != nil {
		return nil, err
	}

	samples := make([]Sample, 0, len(files))
	for _, file := range files {
		report := ReportPath(file)
		d, err := readReport(report, ParseDensity)
		if err != nil {
			return nil, err
		}
		logging.DensityDebug("%s: %.4g points per square unit", filepath.Base(file), d)
		samples = append(samples, Sample{File: file, Report: report, Density: d})
	}
	return samples, nil
}

func readReport[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, &ParseError{Path: path, Reason: "missing report", Err: err}
	}
	defer f.Close()

	v, err := parse(f)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
			return zero, pe
		}
		return zero, err
	}
	return v, nil
}

// Densities extracts the density values of samples.
func Densities(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Density
	}
	return out
}
