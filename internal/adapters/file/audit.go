package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AuditLog implements ports.AuditLog using the local filesystem.
// It appends each submitted snippet to a per-session log file so runs
// can be inspected after the fact.
type AuditLog struct {
	BasePath string
}

// NewAuditLog creates a new AuditLog with the given base path.
// If basePath is empty, it defaults to ".canopy/audit".
func NewAuditLog(basePath string) *AuditLog {
	if basePath == "" {
		basePath = filepath.Join(".canopy", "audit")
	}
	return &AuditLog{BasePath: basePath}
}

// Record appends the code snippet to the session's audit file, framed
// with a timestamp header so entries stay readable when concatenated.
func (a *AuditLog) Record(ctx context.Context, sessionID string, code string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}

	if err := os.MkdirAll(a.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure audit directory: %w", err)
	}

	path := filepath.Join(a.BasePath, sessionID+".log")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	defer f.Close()

	entry := fmt.Sprintf("# %s\n%s\n\n", time.Now().UTC().Format(time.RFC3339), code)
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	// Flush to disk so the trail survives a crash mid-run.
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit file: %w", err)
	}

	return nil
}
