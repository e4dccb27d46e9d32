// Package worker consumes run.requested events and drives the ingestion,
// dedupe and scoring pipeline for each run.
package worker

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	pointerFileName = "current-db.txt"
	runsDirName     = "runs"
)

// ResolveActiveDBPath reads db/current-db.txt and returns the absolute path
// of the active run database. An absent or empty pointer means no database
// is active yet.
func ResolveActiveDBPath(dataDir string) (string, error) {
	pointerPath := filepath.Join(dataDir, "db", pointerFileName)
	data, err := os.ReadFile(pointerPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read database pointer: %w", err)
	}

	relative := strings.TrimSpace(string(data))
	if relative == "" {
		return "", nil
	}
	if filepath.IsAbs(relative) {
		return relative, nil
	}
	return filepath.Join(dataDir, "db", relative), nil
}

// PrepareRunDatabase creates the run's database file under db/runs/. When a
// database is currently active, its bytes are copied so the run starts from
// the accumulated history; otherwise an empty file is created.
func PrepareRunDatabase(dataDir, runID string) (string, error) {
	runsDir := filepath.Join(dataDir, "db", runsDirName)
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create runs directory: %w", err)
	}

	runPath := filepath.Join(runsDir, runID+".db")

	activePath, err := ResolveActiveDBPath(dataDir)
	if err != nil {
		return "", err
	}

	if activePath != "" {
		if _, statErr := os.Stat(activePath); statErr == nil {
			if err := copyFile(activePath, runPath); err != nil {
				return "", fmt.Errorf("failed to snapshot active database: %w", err)
			}
			return runPath, nil
		}
	}

	file, err := os.OpenFile(runPath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create run database: %w", err)
	}
	file.Close()
	return runPath, nil
}

// UpdateDBPointer atomically points db/current-db.txt at the run's database.
// The stored path is relative to the db directory.
func UpdateDBPointer(dataDir, runID string) error {
	dbDir := filepath.Join(dataDir, "db")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("failed to create db directory: %w", err)
	}

	relative := filepath.Join(runsDirName, runID+".db")
	tempPath := filepath.Join(dbDir, pointerFileName+".tmp")
	if err := os.WriteFile(tempPath, []byte(relative+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write pointer temp file: %w", err)
	}
	if err := os.Rename(tempPath, filepath.Join(dbDir, pointerFileName)); err != nil {
		return fmt.Errorf("failed to swap database pointer: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
