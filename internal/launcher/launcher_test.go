package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/omp-launcher/internal/apperr"
)

type fakeSpawner struct {
	pid  uint32
	err  error
	reqs []Request
}

func (s *fakeSpawner) Spawn(req Request) (uint32, error) {
	s.reqs = append(s.reqs, req)
	return s.pid, s.err
}

// orderedProcess fails every payload listed in fail and records the rest.
type orderedProcess struct {
	fail     map[string]bool
	injected []string
}

func (p *orderedProcess) Inject(path string) error {
	if p.fail[path] {
		return errors.New("load failed")
	}
	p.injected = append(p.injected, path)
	return nil
}

func (p *orderedProcess) Modules() ([]string, error) { return []string{"vorbis.dll"}, nil }
func (p *orderedProcess) Close() error               { return nil }

type orderedAPI struct{ proc *orderedProcess }

func (a orderedAPI) Open(uint32) (Process, error) { return a.proc, nil }

func validRequest() Request {
	return Request{
		Name:     "Player",
		Host:     "127.0.0.1",
		Port:     7777,
		GameDir:  `C:\Games\GTA San Andreas`,
		Password: " pw\x00 ",
		Payloads: []string{`C:\Games\GTA San Andreas\samp.dll`, `C:\omp\omp-client.dll`},
	}
}

func noSleepInjector(api ProcessAPI) *Injector {
	inj := NewInjector(api, DefaultPolicy())
	inj.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return inj
}

func TestLaunchInjectsPayloadsInOrder(t *testing.T) {
	proc := &orderedProcess{}
	spawner := &fakeSpawner{pid: 1234}
	l := New(spawner, noSleepInjector(orderedAPI{proc}))

	req := validRequest()
	require.NoError(t, l.Launch(context.Background(), req))

	require.Len(t, spawner.reqs, 1)
	assert.Equal(t, "pw", spawner.reqs[0].Password)
	assert.Equal(t, req.Payloads, proc.injected)
}

func TestLaunchStopsWhenBasePayloadFails(t *testing.T) {
	req := validRequest()
	proc := &orderedProcess{fail: map[string]bool{req.Payloads[0]: true}}
	l := New(&fakeSpawner{pid: 1234}, noSleepInjector(orderedAPI{proc}))

	err := l.Launch(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Injection))
	assert.Empty(t, proc.injected, "extension must not be loaded without the base library")
}

func TestLaunchSkipsEmptyExtension(t *testing.T) {
	proc := &orderedProcess{}
	l := New(&fakeSpawner{pid: 1}, noSleepInjector(orderedAPI{proc}))

	req := validRequest()
	req.Payloads = []string{req.Payloads[0], ""}
	require.NoError(t, l.Launch(context.Background(), req))
	assert.Equal(t, req.Payloads[:1], proc.injected)
}

func TestLaunchSpawnFailure(t *testing.T) {
	spawner := &fakeSpawner{err: apperr.New(apperr.AccessDenied, "Failed to spawn process")}
	proc := &orderedProcess{}
	l := New(spawner, noSleepInjector(orderedAPI{proc}))

	err := l.Launch(context.Background(), validRequest())
	assert.Equal(t, apperr.NeedAdmin, apperr.UserMessage(err))
	assert.Empty(t, proc.injected)
}

func TestLaunchRejectsInvalidRequest(t *testing.T) {
	spawner := &fakeSpawner{}
	l := New(spawner, noSleepInjector(orderedAPI{&orderedProcess{}}))

	for _, mutate := range []func(*Request){
		func(r *Request) { r.Name = " " },
		func(r *Request) { r.Host = "" },
		func(r *Request) { r.Port = 0 },
		func(r *Request) { r.GameDir = "" },
		func(r *Request) { r.Payloads = nil },
	} {
		req := validRequest()
		mutate(&req)
		err := l.Launch(context.Background(), req)
		assert.True(t, apperr.IsKind(err, apperr.InvalidInput), "%+v", req)
	}
	assert.Empty(t, spawner.reqs)
}

func TestBuildArgs(t *testing.T) {
	req := Request{Name: "Player", Host: "play.open.mp", Port: 7777}
	assert.Equal(t, []string{"-c", "-n", "Player", "-h", "play.open.mp", "-p", "7777"}, BuildArgs(req))

	req.Password = "secret"
	assert.Equal(t, []string{"-c", "-n", "Player", "-h", "play.open.mp", "-p", "7777", "-z", "secret"}, BuildArgs(req))
}

func TestExecutablePath(t *testing.T) {
	dir := t.TempDir()

	_, err := ExecutablePath(Request{GameDir: dir})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.Process))
	assert.Contains(t, err.Error(), "Invalid executable path")

	custom := filepath.Join(dir, "custom.exe")
	require.NoError(t, os.WriteFile(custom, []byte("MZ"), 0o644))
	got, err := ExecutablePath(Request{GameDir: dir, Executable: "custom.exe"})
	require.NoError(t, err)
	assert.Equal(t, "custom.exe", filepath.Base(got))
}

func TestExecSpawnerStartsProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as the game executable")
	}

	dir := t.TempDir()
	marker := filepath.Join(dir, "args.txt")
	script := "#!/bin/sh\necho \"$@\" > " + marker + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "game.sh"), []byte(script), 0o755))

	pid, err := ExecSpawner{}.Spawn(Request{
		Name:       "Player",
		Host:       "127.0.0.1",
		Port:       7777,
		GameDir:    dir,
		Executable: "game.sh",
		Password:   "pw",
	})
	require.NoError(t, err)
	assert.NotZero(t, pid)

	assert.Eventually(t, func() bool {
		b, err := os.ReadFile(marker)
		return err == nil && string(b) == "-c -n Player -h 127.0.0.1 -p 7777 -z pw\n"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestExecSpawnerPermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("needs a non-root POSIX user")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, GameExecutable), []byte("MZ"), 0o644))

	_, err := ExecSpawner{}.Spawn(Request{Name: "Player", Host: "h", Port: 1, GameDir: dir})
	require.Error(t, err)
	assert.Equal(t, apperr.AccessDenied, apperr.KindOf(err))
}
