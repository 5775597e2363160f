package apt

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/aptmcp/internal/result"
	"github.com/deixis/aptmcp/internal/runner"
	"golang.org/x/sync/errgroup"
)

// PackageStatus is the composed answer of apt_package_status.
type PackageStatus struct {
	Package    string
	Installed  bool
	Upgradable bool
	Available  bool
}

// Report renders the status as the operation's stdout.
func (s PackageStatus) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Package: %s\n", s.Package)
	fmt.Fprintf(&b, "Installed: %s\n", choose(s.Installed, "installed", "not installed"))
	fmt.Fprintf(&b, "Upgradable: %s\n", choose(s.Upgradable, "yes", "no"))
	fmt.Fprintf(&b, "Available: %s\n", choose(s.Available, "available", "not available"))
	return b.String()
}

func choose(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// statusCheck is one of the concurrent checks of apt_package_status.
type statusCheck struct {
	name  string
	spec  runner.CommandSpec
	match func(stdout string) bool
	dst   *bool
}

// packageStatus runs the installed, upgradable and available checks
// concurrently. A check that fails to run counts as a negative answer; only
// a fault in the fan-out itself fails the operation.
func packageStatus(ctx context.Context, e *Engine, req Request) *result.OperationResult {
	pkg := req.Package
	st := PackageStatus{Package: pkg}
	name, arch := statusTarget(pkg)
	query := name
	if arch != "" {
		query = name + ":" + arch
	}

	checks := []statusCheck{
		{
			name:  "installed",
			spec:  e.local(e.Config.AptPath(), "list", "--installed", name),
			match: listed(name, arch),
			dst:   &st.Installed,
		},
		{
			name:  "upgradable",
			spec:  e.privileged(e.Config.AptPath(), "list", "--upgradable"),
			match: listed(name, arch),
			dst:   &st.Upgradable,
		},
		{
			name:  "available",
			spec:  e.local(e.Config.AptCachePath(), "show", query),
			match: func(stdout string) bool { return strings.Contains(stdout, "Package:") },
			dst:   &st.Available,
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range checks {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s check: %v", c.name, r)
				}
			}()
			*c.dst = e.runCheck(gctx, req, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		req.Log.Error("Status fan-out failed", "package", pkg, "error", err)
		return result.AggregationFailure("Failed to get status for "+pkg, err)
	}

	return result.Succeeded("Status for "+pkg, st.Report())
}

func (e *Engine) runCheck(ctx context.Context, req Request, c statusCheck) bool {
	out := e.invoke(ctx, c.spec)
	if !out.OK() {
		req.Log.Warn("Status check failed, assuming no",
			"check", c.name,
			"command", out.Command,
			"error", out.Detail(),
		)
		return false
	}
	return c.match(out.Stdout)
}

// statusTarget splits a package argument into its bare name and optional
// architecture. Version and release pins do not change the answer and are
// dropped.
func statusTarget(arg string) (name, arch string) {
	if i := strings.IndexAny(arg, "=/"); i >= 0 {
		arg = arg[:i]
	}
	name, arch, _ = strings.Cut(arg, ":")
	return name, arch
}

// listed matches apt list output containing a "<name>/<suite>" line. apt
// list prints the architecture as the third field; when arch is set, that
// field must be arch or "all". Foreign architectures may also be printed as
// "<name>:<arch>/<suite>".
func listed(name, arch string) func(string) bool {
	return func(stdout string) bool {
		for _, line := range strings.Split(stdout, "\n") {
			line = strings.TrimSpace(line)
			if arch != "" && strings.HasPrefix(line, name+":"+arch+"/") {
				return true
			}
			if !strings.HasPrefix(line, name+"/") {
				continue
			}
			if arch == "" {
				return true
			}
			if f := strings.Fields(line); len(f) >= 3 && (f[2] == arch || f[2] == "all") {
				return true
			}
		}
		return false
	}
}
