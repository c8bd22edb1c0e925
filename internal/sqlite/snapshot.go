package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// snapshotTimeout bounds the backup call so a write-locked source cannot
// stall the clean filter.
const snapshotTimeout = 5 * time.Second

// Snapshot produces a lock-free on-disk copy of the database at path using
// the engine's own backup facility (VACUUM INTO). The returned path is owned
// by the caller and must be removed on every exit path.
func Snapshot(ctx context.Context, reg *Registry, path string) (string, error) {
	target := filepath.Join(os.TempDir(), "git-sqlite-snap-"+uuid.NewString()+".sqlite")

	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	db, err := reg.Open(path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	// VACUUM INTO refuses an existing target, so the name is generated but
	// never pre-created.
	stmt := fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(target, "'", "''"))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("snapshot %s: %w", path, err)
	}
	return target, nil
}
