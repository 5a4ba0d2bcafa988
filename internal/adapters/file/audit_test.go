package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog_RecordAppends(t *testing.T) {
	dir := t.TempDir()
	log := NewAuditLog(dir)
	ctx := context.Background()

	require.NoError(t, log.Record(ctx, "s1", "print('one')"))
	require.NoError(t, log.Record(ctx, "s1", "print('two')"))

	data, err := os.ReadFile(filepath.Join(dir, "s1.log"))
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, "print('one')")
	assert.Contains(t, content, "print('two')")
	assert.Less(t, strings.Index(content, "print('one')"), strings.Index(content, "print('two')"))
}

func TestAuditLog_EmptySessionID(t *testing.T) {
	log := NewAuditLog(t.TempDir())
	err := log.Record(context.Background(), "", "code")
	assert.Error(t, err)
}

func TestAuditLog_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "audit")
	log := NewAuditLog(dir)

	require.NoError(t, log.Record(context.Background(), "s1", "x = 1"))
	_, err := os.Stat(filepath.Join(dir, "s1.log"))
	assert.NoError(t, err)
}
