package mcp

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deixis/aptmcp/internal/apt"
	"github.com/deixis/aptmcp/internal/config"
	"github.com/deixis/aptmcp/internal/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const lockStderr = "E: Could not get lock /var/lib/dpkg/lock-frontend. It is held by process 4242 (apt-get)\n"

// fakeRunner returns queued outcomes per command line and succeeds with no
// output otherwise.
type fakeRunner struct {
	mu       sync.Mutex
	Outcomes map[string][]*runner.Outcome
	calls    []string
}

func (f *fakeRunner) Run(_ context.Context, spec runner.CommandSpec) *runner.Outcome {
	key := spec.String()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	q := f.Outcomes[key]
	if len(q) == 0 {
		return &runner.Outcome{Command: key}
	}
	f.Outcomes[key] = q[1:]
	return q[0]
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func fail(stderr string) *runner.Outcome {
	return &runner.Outcome{
		Stderr: stderr,
		Err:    &runner.ErrorInfo{Kind: runner.ExitFailure, ExitCode: 100, Message: "exit status 100", RawStderr: stderr},
	}
}

// notifications collects what the server sends to the client.
type notifications struct {
	mu       sync.Mutex
	progress []*mcp.ProgressNotificationParams
	logs     []*mcp.LoggingMessageParams
}

func (n *notifications) progressCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.progress)
}

func (n *notifications) logCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.logs)
}

// setup creates an aptmcp server and client over in-memory transports.
func setup(t *testing.T, fr *fakeRunner) (*mcp.ClientSession, *notifications) {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{Privilege: config.PrivilegeConfig{Disabled: true}}
	engine := apt.NewEngine(cfg, fr)
	engine.Retry.Sleep = func(time.Duration) {}

	server := NewServer(engine, nil)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}

	n := &notifications{}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, &mcp.ClientOptions{
		ProgressNotificationHandler: func(_ context.Context, req *mcp.ProgressNotificationClientRequest) {
			n.mu.Lock()
			n.progress = append(n.progress, req.Params)
			n.mu.Unlock()
		},
		LoggingMessageHandler: func(_ context.Context, req *mcp.LoggingMessageRequest) {
			n.mu.Lock()
			n.logs = append(n.logs, req.Params)
			n.mu.Unlock()
		},
	})
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})

	return cs, n
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// waitFor polls cond until it holds or a second has passed.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestListTools(t *testing.T) {
	cs, _ := setup(t, &fakeRunner{})

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	got := map[string]bool{}
	for _, tool := range res.Tools {
		got[tool.Name] = true
	}
	for _, op := range apt.Operations() {
		if !got[op.Name] {
			t.Errorf("tool %s not registered", op.Name)
		}
	}
	if len(res.Tools) != len(apt.Operations()) {
		t.Errorf("got %d tools, want %d", len(res.Tools), len(apt.Operations()))
	}
}

func TestAptInstall(t *testing.T) {
	fr := &fakeRunner{Outcomes: map[string][]*runner.Outcome{
		"apt-get install -y curl": {{Stdout: "Setting up curl..."}},
	}}
	cs, _ := setup(t, fr)

	res := callTool(t, cs, "apt_install", map[string]any{"packages": []string{"curl"}})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	want := "Result: SUCCESS\nSummary: Apt install succeeded for: curl\n\n[stdout]\nSetting up curl...\n"
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}

	sc, ok := res.StructuredContent.(map[string]any)
	if !ok {
		t.Fatalf("StructuredContent = %T, want object", res.StructuredContent)
	}
	if sc["success"] != true || sc["summary"] != "Apt install succeeded for: curl" {
		t.Errorf("StructuredContent = %v", sc)
	}
}

func TestAptRemove_Failure(t *testing.T) {
	fr := &fakeRunner{Outcomes: map[string][]*runner.Outcome{
		"apt-get remove -y curl": {fail("E: Unable to locate package curl")},
	}}
	cs, _ := setup(t, fr)

	res := callTool(t, cs, "apt_remove", map[string]any{"packages": []string{"curl"}})
	text := resultText(res)
	if !res.IsError {
		t.Fatalf("expected IsError, got:\n%s", text)
	}
	if !strings.Contains(text, "Result: ERROR") {
		t.Errorf("expected Result: ERROR, got:\n%s", text)
	}
	if !strings.Contains(text, "E: Unable to locate package curl") {
		t.Errorf("expected stderr in output, got:\n%s", text)
	}
}

func TestAptInstall_InvalidPackage(t *testing.T) {
	fr := &fakeRunner{}
	cs, _ := setup(t, fr)

	res := callTool(t, cs, "apt_install", map[string]any{"packages": []string{"-o=APT::Get::Assume-Yes=true"}})
	text := resultText(res)
	if !res.IsError {
		t.Fatalf("expected IsError, got:\n%s", text)
	}
	if !strings.Contains(text, "not a valid package name") {
		t.Errorf("expected validation message, got:\n%s", text)
	}
	if calls := fr.Calls(); len(calls) != 0 {
		t.Errorf("commands ran for invalid input: %v", calls)
	}
}

func TestAptInstall_EmptyPackages(t *testing.T) {
	fr := &fakeRunner{}
	cs, _ := setup(t, fr)

	res := callTool(t, cs, "apt_install", map[string]any{"packages": []string{}})
	if !res.IsError {
		t.Fatalf("expected IsError, got:\n%s", resultText(res))
	}
	if calls := fr.Calls(); len(calls) != 0 {
		t.Errorf("commands ran for empty input: %v", calls)
	}
}

func TestAptPackageStatus(t *testing.T) {
	fr := &fakeRunner{Outcomes: map[string][]*runner.Outcome{
		"apt list --installed curl": {{Stdout: "Listing...\ncurl/jammy,now 7.81.0 amd64 [installed]\n"}},
		"apt-cache show curl":       {{Stdout: "Package: curl\n"}},
	}}
	cs, _ := setup(t, fr)

	res := callTool(t, cs, "apt_package_status", map[string]any{"package": "curl"})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	for _, want := range []string{"Summary: Status for curl", "Installed: installed", "Upgradable: no", "Available: available"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestAptUpdateUpgrade_Progress(t *testing.T) {
	cs, n := setup(t, &fakeRunner{})

	// SetProgressToken only writes into an existing Meta map.
	params := &mcp.CallToolParams{Name: "apt_update_upgrade", Arguments: map[string]any{}, Meta: mcp.Meta{}}
	params.SetProgressToken("upgrade-1")
	if params.GetProgressToken() != "upgrade-1" {
		t.Fatalf("progress token not set: %v", params.GetProgressToken())
	}
	res, err := cs.CallTool(context.Background(), params)
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(res))
	}

	if !waitFor(t, func() bool { return n.progressCount() == 3 }) {
		t.Fatalf("got %d progress notifications, want 3", n.progressCount())
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, p := range n.progress {
		if p.Progress != float64(i) || p.Total != 2 {
			t.Errorf("progress[%d] = %v/%v, want %d/2", i, p.Progress, p.Total, i)
		}
		if p.ProgressToken != "upgrade-1" {
			t.Errorf("progress[%d] token = %v", i, p.ProgressToken)
		}
	}
}

func TestAptRemove_RetryLogged(t *testing.T) {
	fr := &fakeRunner{Outcomes: map[string][]*runner.Outcome{
		"apt-get remove -y curl": {fail(lockStderr), {Stdout: "Removing curl ..."}},
	}}
	cs, n := setup(t, fr)
	if err := cs.SetLoggingLevel(context.Background(), &mcp.SetLoggingLevelParams{Level: "warning"}); err != nil {
		t.Fatalf("SetLoggingLevel: %v", err)
	}

	res := callTool(t, cs, "apt_remove", map[string]any{"packages": []string{"curl"}})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "[logs]\nwarn: Package database locked, retrying") {
		t.Errorf("expected retry in logs block, got:\n%s", text)
	}
	if !waitFor(t, func() bool { return n.logCount() > 0 }) {
		t.Fatal("no logging notification received")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.logs[0].Level != "warning" {
		t.Errorf("log level = %q, want warning", n.logs[0].Level)
	}
}

func TestValidate(t *testing.T) {
	valid := []string{"curl", "libssl3:amd64", "g++", "python3.12", "curl=7.81.0-1ubuntu1.15", "nginx/jammy-backports", "libc6=2:2.35-0ubuntu3"}
	for _, name := range valid {
		if err := Validate(PackageParams{Package: name}); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", name, err)
		}
	}
	invalid := []string{"", "-y", "Curl", "curl; rm -rf /", "curl vim", "../etc"}
	for _, name := range invalid {
		if err := Validate(PackageParams{Package: name}); err == nil {
			t.Errorf("Validate(%q) = nil, want error", name)
		}
	}
	if err := Validate(PackagesParams{}); err == nil {
		t.Error("Validate(empty list) = nil, want error")
	}
	if err := Validate(NoParams{}); err != nil {
		t.Errorf("Validate(NoParams) = %v", err)
	}
}

func TestInstructions(t *testing.T) {
	if !strings.Contains(Instructions, "apt_package_status") {
		t.Error("instructions do not mention the tools")
	}
}
