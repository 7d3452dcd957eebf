package hist_test

import (
	"context"
	"testing"
	"time"

	"hist-go/internal/core"
	"hist-go/internal/hist"
	"hist-go/internal/testutil"
)

var t0 = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// at returns t0 plus m minutes.
func at(m int) time.Time { return t0.Add(time.Duration(m) * time.Minute) }

func addFile(ts time.Time, pathname, content string) *core.Change {
	return core.NewChange([]core.Operation{
		core.NewAddFileOperation(pathname, core.FileFromString(content, nil)),
	}, ts, nil)
}

func editFile(ts time.Time, pathname string, op core.EditOperation) *core.Change {
	return core.NewChange([]core.Operation{core.NewEditFileOperation(pathname, op)}, ts, nil)
}

func removeFile(ts time.Time, pathname string) *core.Change {
	return core.NewChange([]core.Operation{core.NewRemoveFileOperation(pathname)}, ts, nil)
}

// appendText inserts text at the end of a document of length n.
func appendText(n int, text string) *core.TextOperation {
	op := core.NewTextOperation()
	if n > 0 {
		op.Retain(n)
	}
	return op.Insert(text)
}

func persist(t *testing.T, svc *hist.HistoryService, projectID string, endVersion int, changes ...*core.Change) *hist.PersistResult {
	t.Helper()
	res, err := svc.PersistChanges(context.Background(), projectID, endVersion, changes)
	if err != nil {
		t.Fatalf("PersistChanges(end=%d) error = %v", endVersion, err)
	}
	return res
}

// fiveChanges builds a project whose history is split into chunks
// [0,2] [2,4] [4,5]. Change i is stamped at(i) and sets main.tex to
// "1".."12345".
func fiveChanges(t *testing.T) (*testutil.Env, string) {
	t.Helper()
	env := testutil.NewEnv(t, testutil.WithMaxChunkChanges(2))
	projectID := env.InitProject(t)
	changes := []*core.Change{addFile(at(1), "main.tex", "1")}
	for i := 2; i <= 5; i++ {
		changes = append(changes, editFile(at(i), "main.tex", appendText(i-1, string(rune('0'+i)))))
	}
	res := persist(t, env.Service, projectID, 0, changes...)
	if res.EndVersion != 5 {
		t.Fatalf("EndVersion = %d, want 5", res.EndVersion)
	}
	return env, projectID
}

func fileContent(t *testing.T, svc *hist.HistoryService, projectID string, version int, pathname string) string {
	t.Helper()
	content, err := svc.GetFileContent(context.Background(), projectID, version, pathname)
	if err != nil {
		t.Fatalf("GetFileContent(%d, %q) error = %v", version, pathname, err)
	}
	return content
}
