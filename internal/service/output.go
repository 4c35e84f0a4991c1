package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// artifactWriter writes the per-entity outputs of one league run.
type artifactWriter struct {
	dir       string
	leagueID  int64
	artifacts map[string]string
}

func newArtifactWriter(dir string, leagueID int64) *artifactWriter {
	return &artifactWriter{dir: dir, leagueID: leagueID, artifacts: map[string]string{}}
}

func (w *artifactWriter) path(entity, ext string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_league_%d.%s", entity, w.leagueID, ext))
}

// writeEntity writes rows as JSON and Parquet.
func writeEntity[T any](w *artifactWriter, entity string, rows []T) error {
	if rows == nil {
		rows = []T{}
	}

	jsonPath := w.path(entity, "json")
	if err := writeJSONFile(jsonPath, rows); err != nil {
		return err
	}
	w.artifacts[entity+".json"] = jsonPath

	parquetPath := w.path(entity, "parquet")
	if err := os.MkdirAll(filepath.Dir(parquetPath), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(parquetPath), err)
	}
	if err := parquet.WriteFile(parquetPath, rows); err != nil {
		return fmt.Errorf("write %s: %w", parquetPath, err)
	}
	w.artifacts[entity+".parquet"] = parquetPath
	return nil
}

func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
