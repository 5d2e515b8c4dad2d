package migrate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pieczasz-labs/qb/plan"
)

// Snapshot is the persisted record of the last emitted migration plan (§3.6).
type Snapshot struct {
	Plan      *plan.MigrationPlan `json:"plan"`
	Hash      string              `json:"hash"`
	UpdatedAt string              `json:"updatedAt"`
}

// SnapshotPath returns {workspaceRoot}/.qb/model-snapshot.{dialect}.json.
func SnapshotPath(workspaceRoot string, dialect string) string {
	return filepath.Join(workspaceRoot, ".qb", fmt.Sprintf("model-snapshot.%s.json", dialect))
}

// ReadSnapshot reads and parses the snapshot at path tolerantly: a missing
// file, an empty file, malformed JSON, or an object lacking a usable plan
// all yield (nil, nil) so the caller treats the prior plan as absent rather
// than failing the whole generate run. A bare plan object (no {plan,...}
// wrapper, but with "tables" and "dialect" at the root) is accepted as a
// legacy snapshot and upgraded in memory.
func ReadSnapshot(path string, logger *zap.Logger) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("migrate: read snapshot %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var wrapped struct {
		Plan      *plan.MigrationPlan `json:"plan"`
		Hash      string              `json:"hash"`
		UpdatedAt string              `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Plan != nil {
		return &Snapshot{Plan: wrapped.Plan, Hash: wrapped.Hash, UpdatedAt: wrapped.UpdatedAt}, nil
	}

	var bare plan.MigrationPlan
	if err := json.Unmarshal(data, &bare); err == nil && bare.Dialect != "" && bare.Tables != nil {
		if logger != nil {
			logger.Warn("migrate: upgrading legacy bare-plan snapshot", zap.String("path", path))
		}
		return &Snapshot{Plan: &bare, Hash: plan.Hash(&bare)}, nil
	}

	if logger != nil {
		logger.Warn("migrate: snapshot unreadable, treating prior plan as absent", zap.String("path", path))
	}
	return nil, nil
}

// WriteSnapshot writes the snapshot atomically: marshal to a temp file in
// the same directory, then rename over the final path.
func WriteSnapshot(path string, s *Snapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("migrate: create snapshot dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("migrate: marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".model-snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("migrate: create temp snapshot file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("migrate: write temp snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("migrate: close temp snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("migrate: rename temp snapshot into place: %w", err)
	}
	return nil
}

// NewSnapshot builds the snapshot record written after a successful
// migration emit: {plan: current, hash: hash(current), updatedAt: now}.
func NewSnapshot(current *plan.MigrationPlan, now time.Time) *Snapshot {
	return &Snapshot{
		Plan:      current,
		Hash:      plan.Hash(current),
		UpdatedAt: now.UTC().Format(time.RFC3339),
	}
}

// DeleteSnapshot removes the snapshot file for a single dialect, implementing
// the §4.7 deleteMigrationFiles helper. Absence of the file is not an error.
func DeleteSnapshot(workspaceRoot, dialect string) error {
	path := SnapshotPath(workspaceRoot, dialect)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("migrate: delete snapshot %s: %w", path, err)
	}
	return nil
}
