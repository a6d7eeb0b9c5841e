package output

import (
	"encoding/json"
	"fmt"

	"dagestimator/internal/core/errors"
	"dagestimator/internal/engine/analysis"
)

// Report is the JSON document written for one run. Callees are listed by
// name; their records appear once under the module's routines.
type Report struct {
	RunID    string          `json:"run_id,omitempty"`
	Program  string          `json:"program"`
	Frontend string          `json:"frontend,omitempty"`
	Module   *ReportRecord   `json:"module"`
	Failures []ReportFailure `json:"failures,omitempty"`
}

type ReportRecord struct {
	analysis.Record
	CalleeNames []string        `json:"callees,omitempty"`
	SubLoops    []*ReportRecord `json:"sub_loops,omitempty"`
	Routines    []*ReportRecord `json:"routines,omitempty"`
}

type ReportFailure struct {
	Routine string `json:"routine"`
	Path    string `json:"path"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

func NewReport(runID, frontend string, res *analysis.Result) *Report {
	r := &Report{RunID: runID, Frontend: frontend}
	if res == nil || res.Module == nil {
		return r
	}
	r.Program = res.Module.Name
	r.Module = reportRecord(res.Module)
	for _, f := range res.Failures {
		r.Failures = append(r.Failures, ReportFailure{
			Routine: f.Routine,
			Path:    f.Path,
			Code:    string(errors.CodeOf(f.Err)),
			Error:   f.Err.Error(),
		})
	}
	return r
}

func reportRecord(rec *analysis.Record) *ReportRecord {
	out := &ReportRecord{Record: *rec, CalleeNames: rec.CalleeNames()}
	out.Record.SubLoops, out.Record.Routines, out.Record.Callees = nil, nil, nil
	for _, sub := range rec.SubLoops {
		out.SubLoops = append(out.SubLoops, reportRecord(sub))
	}
	for _, routine := range rec.Routines {
		out.Routines = append(out.Routines, reportRecord(routine))
	}
	return out
}

// GenerateJSON renders the report as indented JSON.
func GenerateJSON(report *Report) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
