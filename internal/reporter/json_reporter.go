package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// WriteJSON serializes reportData as indented JSON to w.
func WriteJSON(w io.Writer, reportData *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reportData); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// WriteJSONReport serializes reportData as indented JSON and saves it to outputPath.
func WriteJSONReport(reportData *Report, outputPath string) error {
	f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := WriteJSON(f, reportData); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
