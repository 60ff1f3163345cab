package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSafeJoin(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "ws")
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", root, false},
		{".", root, false},
		{"out.txt", filepath.Join(root, "out.txt"), false},
		{"a/b/c.csv", filepath.Join(root, "a", "b", "c.csv"), false},
		{"/already/rooted", filepath.Join(root, "already", "rooted"), false},
		{"../etc/passwd", "", true},
		{"a/../../etc", "", true},
		{"..", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := safeJoin(root, tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrPathEscape) {
					t.Fatalf("err = %v, want ErrPathEscape", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("safeJoin(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// seededSandbox creates a manager with one provisioned sandbox whose
// workspace contains a small file tree.
func seededSandbox(t *testing.T) (*Manager, string) {
	t.Helper()
	ws := t.TempDir()
	writeFile := func(rel, content string) {
		p := filepath.Join(ws, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeFile("out.csv", "a,b\n1,2\n")
	writeFile("plots/fig1.png", "not-really-png")
	writeFile("deep/a/b/c/too-deep.txt", "below the depth bound")

	m := testSandbox(newFakeRuntime(), time.Second)
	if _, err := m.Create(context.Background(), CreateOptions{SessionID: "s1", WorkspaceDir: ws}); err != nil {
		t.Fatal(err)
	}
	return m, ws
}

func TestFileTree(t *testing.T) {
	m, _ := seededSandbox(t)

	files, err := m.FileTree(context.Background(), "s1", "")
	if err != nil {
		t.Fatal(err)
	}
	byPath := make(map[string]FileInfo, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}

	got, ok := byPath["out.csv"]
	if !ok || got.IsDir || got.Size != int64(len("a,b\n1,2\n")) {
		t.Errorf("out.csv = %+v (present=%v)", got, ok)
	}
	if d, ok := byPath["plots"]; !ok || !d.IsDir {
		t.Errorf("plots = %+v (present=%v)", d, ok)
	}
	if _, ok := byPath["plots/fig1.png"]; !ok {
		t.Error("nested file missing")
	}
	if _, ok := byPath["deep/a/b/c/too-deep.txt"]; ok {
		t.Error("walk descended past the depth bound")
	}
}

func TestFileTreeSubdirAndContainment(t *testing.T) {
	m, _ := seededSandbox(t)
	ctx := context.Background()

	files, err := m.FileTree(ctx, "s1", "plots")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Path != "plots/fig1.png" {
		t.Errorf("files = %+v", files)
	}

	// Escaping paths are silently rejected; the caller sees an empty
	// listing, not an error it could use to map the host.
	escaped, err := m.FileTree(ctx, "s1", "../..")
	if err != nil {
		t.Fatalf("escape err = %v", err)
	}
	if len(escaped) != 0 {
		t.Errorf("escaping path listed %d entries", len(escaped))
	}
	if _, err := m.FileTree(ctx, "ghost", ""); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("unknown session err = %v", err)
	}
}

func TestExportArtifacts(t *testing.T) {
	m, _ := seededSandbox(t)

	arts, err := m.ExportArtifacts(context.Background(), "s1", []string{
		"out.csv",
		"../etc/passwd", // silently skipped
		"plots/fig1.png",
		"missing.txt", // skipped, not fatal
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(arts) != 2 {
		t.Fatalf("arts = %+v", arts)
	}
	if arts[0].Path != "out.csv" || string(arts[0].Data) != "a,b\n1,2\n" {
		t.Errorf("first = %+v", arts[0])
	}
	if arts[1].Path != "plots/fig1.png" {
		t.Errorf("second = %+v", arts[1])
	}
}
