package main_test

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

var (
	buildOnce sync.Once
	binPath   string
	buildErr  error
	buildOut  []byte
)

// buildItmsBinary compiles cmd/itms once per test run
func buildItmsBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "itms-e2e-")
		if err != nil {
			buildErr = err
			return
		}
		name := "itms"
		if runtime.GOOS == "windows" {
			name += ".exe"
		}
		binPath = filepath.Join(dir, name)
		cmd := exec.Command("go", "build", "-o", binPath, "./cmd/itms")
		cmd.Dir = repoRoot(t)
		buildOut, buildErr = cmd.CombinedOutput()
	})
	if buildErr != nil {
		t.Fatalf("build itms: %v\n%s", buildErr, buildOut)
	}
	return binPath
}

func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

// harness runs the binary against an isolated data dir
type harness struct {
	t       *testing.T
	bin     string
	dataDir string
	workDir string
	apiURL  string
}

func newHarness(t *testing.T, apiURL string) *harness {
	t.Helper()
	return &harness{
		t:       t,
		bin:     buildItmsBinary(t),
		dataDir: t.TempDir(),
		workDir: t.TempDir(),
		apiURL:  apiURL,
	}
}

type result struct {
	stdout string
	stderr string
	err    error
}

func (h *harness) run(stdin string, args ...string) result {
	h.t.Helper()
	cmd := exec.Command(h.bin, args...)
	cmd.Dir = h.workDir
	cmd.Env = append(os.Environ(),
		"ITMS_DATA_DIR="+h.dataDir,
		"TERM=dumb",
	)
	if h.apiURL != "" {
		cmd.Env = append(cmd.Env, "ITMS_API_URL="+h.apiURL)
	}
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func (h *harness) mustRun(stdin string, args ...string) result {
	h.t.Helper()
	res := h.run(stdin, args...)
	if res.err != nil {
		h.t.Fatalf("itms %s failed: %v\nstdout=%s\nstderr=%s", strings.Join(args, " "), res.err, res.stdout, res.stderr)
	}
	return res
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
