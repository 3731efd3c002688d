// Package problemio reads problems from and writes plans to files and
// streams in JSON, YAML or a plain-text report.
package problemio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gitrdm/gokanplan/pkg/schedule"
)

// Format names an encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	Text Format = "text"
)

// ParseFormat accepts json, yaml, yml and text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "text", "txt":
		return Text, nil
	}
	return "", fmt.Errorf("unknown format %q (want json, yaml or text)", s)
}

// FormatFromPath guesses from the extension. The empty format means
// "sniff the content".
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON
	case ".yaml", ".yml":
		return YAML
	}
	return ""
}

// sniff treats anything starting with '{' as JSON.
func sniff(data []byte) Format {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return JSON
	}
	return YAML
}

// DecodeProblem decodes one problem. Unknown fields are ignored.
func DecodeProblem(r io.Reader, f Format) (schedule.Problem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return schedule.Problem{}, fmt.Errorf("read problem: %w", err)
	}
	return UnmarshalProblem(data, f)
}

// UnmarshalProblem decodes a problem held in memory.
func UnmarshalProblem(data []byte, f Format) (schedule.Problem, error) {
	if f == "" {
		f = sniff(data)
	}
	var p schedule.Problem
	switch f {
	case JSON:
		if err := json.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("%w: json: %w", schedule.ErrInvalidProblem, err)
		}
	case YAML:
		if err := yaml.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("%w: yaml: %w", schedule.ErrInvalidProblem, err)
		}
	default:
		return p, fmt.Errorf("cannot decode a problem from %s", f)
	}
	return p, nil
}

// ReadProblemFile loads a problem, choosing the decoder from the file
// extension or, failing that, the content.
func ReadProblemFile(path string) (schedule.Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schedule.Problem{}, err
	}
	p, err := UnmarshalProblem(data, FormatFromPath(path))
	if err != nil {
		return p, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// EncodePlan writes plan to w.
func EncodePlan(w io.Writer, plan *schedule.Plan, f Format) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(plan); err != nil {
			return err
		}
		return enc.Close()
	case Text:
		return WriteReport(w, plan)
	}
	return fmt.Errorf("cannot encode a plan as %q", f)
}

// WriteReport prints the makespan followed by one line per assignment.
func WriteReport(w io.Writer, plan *schedule.Plan) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "=== Total duration: %d\n", plan.Makespan)
	for _, a := range plan.Assignments {
		fmt.Fprintf(bw, "Task %s: Worker %s and Machine %s at time %d\n",
			a.TaskID, a.WorkerID, a.MachineID, a.Start)
	}
	return bw.Flush()
}

// WriteSummary prints the problem the way operators read it before a solve.
func WriteSummary(w io.Writer, p schedule.Problem) error {
	bw := bufio.NewWriter(w)
	for _, r := range p.Workers {
		fmt.Fprintf(bw, "Worker %s types:  %s\n", r.ID, strings.Join(r.Types.Sorted(), ", "))
	}
	for _, r := range p.Machines {
		fmt.Fprintf(bw, "Machine %s types: %s\n", r.ID, strings.Join(r.Types.Sorted(), ", "))
	}
	for _, t := range p.Tasks {
		fmt.Fprintf(bw, "Task %s: %d units in [%d, %d], type %s\n",
			t.ID, t.Duration, t.EarliestStart, t.Deadline, t.Type)
	}
	return bw.Flush()
}
