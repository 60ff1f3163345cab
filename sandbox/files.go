package sandbox

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	fileTreeMaxDepth   = 3
	fileTreeMaxEntries = 500
	artifactMaxBytes   = 32 << 20 // per-file export cap
)

// FileInfo is one workspace entry, path relative to the workspace root.
type FileInfo struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	IsDir bool   `json:"isDir"`
}

// Artifact is one exported workspace file.
type Artifact struct {
	Path string `json:"path"`
	Data []byte `json:"-"`
}

// safeJoin resolves a user-supplied relative path against the workspace
// root and rejects anything that would escape it.
func safeJoin(root, userInput string) (string, error) {
	if strings.Contains(userInput, "..") {
		return "", ErrPathEscape
	}
	cleaned := filepath.Join(root, filepath.Clean("/"+userInput))
	if cleaned != root && !strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return cleaned, nil
}

func (m *Manager) workspace(sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sessionID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotRunning, sessionID)
	}
	return rec.workspaceDir, nil
}

// FileTree lists the session's workspace under a relative path, walked
// on the host side of the bind mount, bounded in depth and entry count.
// Paths outside the workspace yield an empty listing, never an error.
func (m *Manager) FileTree(ctx context.Context, sessionID, relPath string) ([]FileInfo, error) {
	root, err := m.workspace(sessionID)
	if err != nil {
		return nil, err
	}
	start, err := safeJoin(root, relPath)
	if err != nil {
		m.logger.Warn("sandbox: file tree path escapes workspace", "session_id", sessionID, "path", relPath)
		return nil, nil
	}

	var files []FileInfo
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			m.logger.Warn("sandbox: file tree walk", "session_id", sessionID, "path", p, "error", walkErr)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator)) + 1
		if depth > fileTreeMaxDepth {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if len(files) >= fileTreeMaxEntries {
			return fs.SkipAll
		}

		var size int64
		if info, err := d.Info(); err == nil && !d.IsDir() {
			size = info.Size()
		}
		files = append(files, FileInfo{
			Path:  filepath.ToSlash(rel),
			Size:  size,
			IsDir: d.IsDir(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sandbox: file tree: %w", err)
	}
	return files, nil
}

// ExportArtifacts reads the requested workspace files from the host side
// of the bind mount. Paths that escape the workspace are silently
// skipped, never surfaced, so a bad path reveals nothing about the
// host layout; the valid files still export.
func (m *Manager) ExportArtifacts(ctx context.Context, sessionID string, relPaths []string) ([]Artifact, error) {
	root, err := m.workspace(sessionID)
	if err != nil {
		return nil, err
	}

	var out []Artifact
	for _, rel := range relPaths {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		abs, err := safeJoin(root, rel)
		if err != nil {
			m.logger.Warn("sandbox: export path rejected", "session_id", sessionID, "path", rel)
			continue
		}

		info, err := os.Stat(abs)
		if err != nil {
			m.logger.Warn("sandbox: export stat", "session_id", sessionID, "path", abs, "error", err)
			continue
		}
		if !info.Mode().IsRegular() {
			m.logger.Warn("sandbox: export skipping non-regular file", "session_id", sessionID, "path", abs)
			continue
		}
		if info.Size() > artifactMaxBytes {
			m.logger.Warn("sandbox: artifact too large", "session_id", sessionID, "path", abs, "size", info.Size())
			continue
		}

		data, err := os.ReadFile(abs)
		if err != nil {
			m.logger.Warn("sandbox: export read", "session_id", sessionID, "path", abs, "error", err)
			continue
		}
		relOut, err := filepath.Rel(root, abs)
		if err != nil {
			relOut = rel
		}
		out = append(out, Artifact{Path: filepath.ToSlash(relOut), Data: data})
	}
	return out, nil
}
