package shelf

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jaym/shelf/persist"
)

func TestRunBackupShardedFiles(t *testing.T) {
	cfg := persist.Config{Backend: string(persist.KindShardedFile), DataDir: t.TempDir()}

	adapter, err := persist.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := adapter.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	adapter.Close()

	var out bytes.Buffer
	if err := runBackup(context.Background(), cfg, &out); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Errorf("printed %d paths, want 3:\n%s", len(lines), out.String())
	}
}

func TestRunBackupUnsupported(t *testing.T) {
	var out bytes.Buffer
	err := runBackup(context.Background(), persist.Config{Backend: string(persist.KindNone)}, &out)
	if !errors.Is(err, persist.ErrBackupUnsupported) {
		t.Fatalf("err = %v, want ErrBackupUnsupported", err)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected output %q", out.String())
	}
}
