package session

import (
	"encoding/json"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// resultJSON is the on-disk shape for Options.ResultJSONPath: a stable,
// tool-friendly rendering of a Result that callers can diff across runs.
type resultJSON struct {
	SourcePackageName string   `json:"source_package"`
	Unneeded          []string `json:"unneeded"`
}

// writeResultJSON atomically writes result as JSON to path, so a reader
// never observes a partially written file.
func writeResultJSON(path string, result *Result) error {
	strs := make([]string, len(result.Unneeded))
	for i, req := range result.Unneeded {
		strs[i] = string(req)
	}
	data, err := json.MarshalIndent(resultJSON{
		SourcePackageName: result.SourcePackageName,
		Unneeded:          strs,
	}, "", "  ")
	if err != nil {
		return xerrors.Errorf("marshaling result: %w", err)
	}
	data = append(data, '\n')
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return xerrors.Errorf("writing %s: %w", path, err)
	}
	return nil
}
