package hist

import (
	"context"
	"fmt"
	"io"

	"hist-go/internal/core"
)

// ImportDirectory adds every non-ignored file below dir to the project in a
// single change and returns the number of files added. Text files are added
// with their content; binary files are uploaded and added by hash.
func (s *HistoryService) ImportDirectory(ctx context.Context, projectID string, dir string) (int, error) {
	if err := s.ensureProject(ctx, projectID); err != nil {
		return 0, err
	}
	root, err := s.fsmgr.Resolve(dir)
	if err != nil {
		return 0, fmt.Errorf("resolving directory: %w", err)
	}
	if !root.IsDir() {
		return 0, fmt.Errorf("path is not a directory: %s", root)
	}
	paths, err := s.fsmgr.FindFiles(root)
	if err != nil {
		return 0, fmt.Errorf("finding files: %w", err)
	}

	store := s.BlobStore(projectID)
	var ops []core.Operation
	for _, p := range paths {
		rel, err := p.Rel(root)
		if err != nil {
			return 0, fmt.Errorf("computing pathname of %s: %w", p, err)
		}
		pathname := core.CleanPathname(rel)
		if !core.IsCleanPathname(pathname) {
			s.logger.Warn("skipping file with unusable pathname", "path", p.String())
			continue
		}
		file, err := s.importFile(ctx, store, p)
		if err != nil {
			return 0, fmt.Errorf("importing %s: %w", pathname, err)
		}
		ops = append(ops, core.NewAddFileOperation(pathname, file))
		s.logger.Debug("file imported", "project", projectID, "pathname", pathname)
	}
	if len(ops) == 0 {
		return 0, nil
	}

	latest, err := s.chunks.LoadLatestRaw(ctx, projectID)
	if err != nil {
		return 0, err
	}
	change := core.NewChange(ops, s.clock.Now(), nil)
	if _, err := s.PersistChanges(ctx, projectID, latest.EndVersion, []*core.Change{change}); err != nil {
		return 0, err
	}
	s.logger.Info("directory imported", "project", projectID, "path", root.String(), "files", len(ops))
	return len(ops), nil
}

func (s *HistoryService) importFile(ctx context.Context, store *ProjectBlobStore, p *Path) (*core.File, error) {
	r, err := s.fsmgr.Open(p)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if core.ComputeStringLength(content) != nil {
		return core.FileFromString(string(content), nil), nil
	}
	blob, err := store.PutString(ctx, string(content))
	if err != nil {
		return nil, err
	}
	return core.FileFromBlob(blob, nil), nil
}
