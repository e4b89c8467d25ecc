package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chrootctl/config"
	"chrootctl/environment"
	"chrootctl/log"
	"chrootctl/mount"
	"chrootctl/proc"
	"chrootctl/service"

	"gopkg.in/ini.v1"
)

type testApp struct {
	app       *app
	configDir string
	driver    *mount.MockDriver
	launcher  *environment.MockLauncher
	signalled []int
}

// newTestApp returns an app over mocks whose config dir holds an ini file
// pointing at a temp resolv.conf.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}

	resolv := filepath.Join(tmpDir, "resolv.conf")
	if err := os.WriteFile(resolv, []byte("nameserver 192.0.2.53\n"), 0644); err != nil {
		t.Fatal(err)
	}

	f := ini.Empty()
	sec, err := f.NewSection("Global Configuration")
	if err != nil {
		t.Fatal(err)
	}
	sec.NewKey("Resolv_conf", resolv)
	sec.NewKey("Lock_timeout", "2")
	if err := f.SaveTo(filepath.Join(configDir, config.ConfigFileName)); err != nil {
		t.Fatal(err)
	}

	ta := &testApp{
		configDir: configDir,
		driver:    mount.NewMockDriver(),
		launcher:  environment.NewMockLauncher(),
	}
	ta.app = &app{deps: service.Deps{
		Driver:   ta.driver,
		Launcher: ta.launcher,
		Terminate: func(pid int, logger log.LibraryLogger) proc.Result {
			ta.signalled = append(ta.signalled, pid)
			return proc.Result{PID: pid, Signalled: true}
		},
		Alive: func(pid int) bool { return true },
	}}
	return ta
}

// execute runs args with --config-dir appended and returns the exit code
// and captured output.
func (ta *testApp) execute(args ...string) (int, string, string) {
	root := newRootCommand(ta.app)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(""))

	args = append(args, "--config-dir", ta.configDir)
	code := run(root, args, &stderr)
	return code, stdout.String(), stderr.String()
}

func chrootDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestVersion(t *testing.T) {
	ta := newTestApp(t)
	code, out, _ := ta.execute("version")
	if code != 0 || strings.TrimSpace(out) != "chrootctl version dev" {
		t.Errorf("version = %d, %q", code, out)
	}
}

func TestStart(t *testing.T) {
	ta := newTestApp(t)
	base := chrootDir(t)

	code, _, stderr := ta.execute("start", base, "--shell", "/bin/sh", "--chroot", "/usr/sbin/chroot")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}

	cmd := ta.launcher.GetLastStartCall()
	if cmd == nil || cmd.Chroot != "/usr/sbin/chroot" || cmd.Shell != "/bin/sh" || cmd.BaseDir != base {
		t.Errorf("launched %+v", cmd)
	}
	if n := len(ta.driver.CallsByOp("mount")); n != 4 {
		t.Errorf("mounts = %d, want 4", n)
	}
	if !strings.Contains(stderr, "[INFO] Session") {
		t.Errorf("expected session log on stderr, got:\n%s", stderr)
	}

	logFile, err := os.ReadFile(filepath.Join(ta.configDir, log.LogFileName))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(logFile), "INFO: Session") {
		t.Errorf("log file = %q", logFile)
	}
}

func TestStart_PropagatesExitCode(t *testing.T) {
	ta := newTestApp(t)
	ta.launcher.ExitCode = 5

	code, _, stderr := ta.execute("start", chrootDir(t))
	if code != 5 {
		t.Errorf("exit code = %d, want 5", code)
	}
	if strings.Contains(stderr, "Error:") {
		t.Errorf("a failing shell is not a chrootctl error:\n%s", stderr)
	}
}

func TestStart_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing base dir", []string{"start"}, "accepts 1 arg"},
		{"unsupported host type", []string{"start", "/", "--host-type", "gentoo"}, "gentoo"},
		{"nonexistent base dir", []string{"start", "/nonexistent/chroot/dir"}, "no such file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)
			code, _, stderr := ta.execute(tt.args...)
			if code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
			if !strings.Contains(stderr, "Error:") || !strings.Contains(stderr, tt.want) {
				t.Errorf("stderr = %q, want Error containing %q", stderr, tt.want)
			}
			if ta.launcher.GetStartCallCount() != 0 {
				t.Error("launcher should not be called")
			}
		})
	}
}

func TestStart_DebugFlag(t *testing.T) {
	ta := newTestApp(t)
	base := chrootDir(t)

	_, _, quiet := ta.execute("start", base)
	if strings.Contains(quiet, "[DEBUG]") {
		t.Errorf("debug output without -d:\n%s", quiet)
	}

	_, _, verbose := ta.execute("start", base, "-d")
	if !strings.Contains(verbose, "[DEBUG]") {
		t.Errorf("no debug output with -d:\n%s", verbose)
	}
}

func TestShutdown_NothingToDo(t *testing.T) {
	ta := newTestApp(t)

	code, out, _ := ta.execute("shutdown")
	if code != 0 || !strings.Contains(out, "Nothing to shut down") {
		t.Errorf("shutdown = %d, %q", code, out)
	}

	code, _, stderr := ta.execute("shutdown", "--nothing-exit-code", "3")
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if strings.Contains(stderr, "Error:") {
		t.Errorf("nothing to do is not an error:\n%s", stderr)
	}
}

func TestShutdown_AfterStart(t *testing.T) {
	ta := newTestApp(t)
	base := chrootDir(t)
	for i := 0; i < 2; i++ {
		if code, _, stderr := ta.execute("start", base); code != 0 {
			t.Fatalf("start failed:\n%s", stderr)
		}
	}

	code, out, stderr := ta.execute("shutdown", base, "debian")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(out, "Shut down "+base) || !strings.Contains(out, "Signalled 2 session(s)") {
		t.Errorf("stdout = %q", out)
	}
	if len(ta.signalled) != 2 {
		t.Errorf("signalled = %v", ta.signalled)
	}
	if n := len(ta.driver.CallsByOp("unmount")); n != 4 {
		t.Errorf("unmounts = %d, want 4", n)
	}

	code, out, _ = ta.execute("shutdown", base)
	if code != 0 || !strings.Contains(out, "Nothing to shut down") {
		t.Errorf("second shutdown = %d, %q", code, out)
	}
}

func TestShutdown_Errors(t *testing.T) {
	ta := newTestApp(t)

	code, _, stderr := ta.execute("shutdown", "/srv/a", "solaris")
	if code != 1 || !strings.Contains(stderr, "solaris") {
		t.Errorf("bad host type = %d, %q", code, stderr)
	}

	code, _, stderr = ta.execute("shutdown", "/srv/a", "debian", "extra")
	if code != 1 || !strings.Contains(stderr, "accepts at most 2 arg") {
		t.Errorf("too many args = %d, %q", code, stderr)
	}
}

func TestStatus(t *testing.T) {
	ta := newTestApp(t)

	_, out, _ := ta.execute("status")
	if !strings.Contains(out, "No registered sessions") {
		t.Errorf("empty status = %q", out)
	}

	base := chrootDir(t)
	if code, _, stderr := ta.execute("start", base, "--shell", "/bin/sh"); code != 0 {
		t.Fatalf("start failed:\n%s", stderr)
	}

	code, out, _ := ta.execute("status")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	for _, want := range []string{base + " [debian]", "pid 1000", "running", "/bin/sh", "mounted: " + filepath.Join(base, "proc")} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestMigrate(t *testing.T) {
	ta := newTestApp(t)

	_, out, _ := ta.execute("migrate")
	if !strings.Contains(out, "No legacy count file") {
		t.Errorf("migrate without file = %q", out)
	}

	legacy := filepath.Join(ta.configDir, config.LegacyRegistryFileName)
	if err := os.WriteFile(legacy, []byte("/srv/a;10;debian\n"), 0644); err != nil {
		t.Fatal(err)
	}
	code, out, _ := ta.execute("migrate")
	if code != 0 || !strings.Contains(out, "Imported 1 session(s)") {
		t.Errorf("migrate = %d, %q", code, out)
	}
}
