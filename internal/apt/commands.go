package apt

import (
	"context"
	"strings"

	"github.com/deixis/aptmcp/internal/progress"
	"github.com/deixis/aptmcp/internal/result"
)

// installedFormat is the dpkg-query output format for apt_list_installed.
// dpkg-query expands the escapes itself.
const installedFormat = `-f=${Package}\t${Version}\n`

func (e *Engine) aptGet(args ...string) []string {
	return append([]string{e.Config.AptGetPath()}, args...)
}

func install(ctx context.Context, e *Engine, req Request) *result.OperationResult {
	targets := strings.Join(req.Packages, " ")
	tr := progress.NewTracker(req.Progress, 2)
	tr.Start(ctx)

	if e.Config.Apt.SkipUpdateBeforeInstall {
		req.Log.Info("Skipping package index update")
	} else {
		up := e.exec(ctx, req, e.privileged(e.aptGet("update")...))
		if !up.OK() {
			return result.FromOutcome(up, "", "Apt update failed before install of: "+targets)
		}
	}
	tr.Step(ctx)

	out := e.exec(ctx, req, e.privileged(e.aptGet(append([]string{"install", "-y"}, req.Packages...)...)...))
	tr.Step(ctx)

	return result.FromOutcome(out,
		"Apt install succeeded for: "+targets,
		"Apt install failed for: "+targets,
	)
}

func remove(ctx context.Context, e *Engine, req Request) *result.OperationResult {
	targets := strings.Join(req.Packages, " ")
	out := e.exec(ctx, req, e.privileged(e.aptGet(append([]string{"remove", "-y"}, req.Packages...)...)...))
	return result.FromOutcome(out,
		"Apt remove succeeded for: "+targets,
		"Apt remove failed for: "+targets,
	)
}

func upgradePackage(ctx context.Context, e *Engine, req Request) *result.OperationResult {
	out := e.exec(ctx, req, e.privileged(e.aptGet("install", "--only-upgrade", "-y", req.Package)...))
	return result.FromOutcome(out,
		"Apt upgrade succeeded for: "+req.Package,
		"Apt upgrade failed for: "+req.Package,
	)
}

// updateUpgrade runs update then upgrade. The upgrade is skipped when the
// update fails, and the failure is attributed to the update step.
func updateUpgrade(ctx context.Context, e *Engine, req Request) *result.OperationResult {
	tr := progress.NewTracker(req.Progress, 2)
	tr.Start(ctx)

	up := e.exec(ctx, req, e.privileged(e.aptGet("update")...))
	steps := []result.Step{{Name: "update", Outcome: up}}
	tr.Step(ctx)

	if up.OK() {
		upg := e.exec(ctx, req, e.privileged(e.aptGet("upgrade", "-y")...))
		steps = append(steps, result.Step{Name: "upgrade", Outcome: upg})
		tr.Step(ctx)
	} else {
		req.Log.Info("Skipping upgrade after failed update")
	}

	return result.FromSteps(steps, "System update and upgrade succeeded")
}

func autoremove(ctx context.Context, e *Engine, req Request) *result.OperationResult {
	out := e.exec(ctx, req, e.privileged(e.aptGet("autoremove", "-y")...))
	return result.FromOutcome(out, "Apt autoremove succeeded", "Apt autoremove failed")
}

func listUpgradable(ctx context.Context, e *Engine, req Request) *result.OperationResult {
	out := e.exec(ctx, req, e.privileged(e.Config.AptPath(), "list", "--upgradable"))
	return result.FromOutcome(out, "Listed upgradable packages", "Failed to list upgradable packages")
}

func listInstalled(ctx context.Context, e *Engine, req Request) *result.OperationResult {
	out := e.exec(ctx, req, e.local(e.Config.DpkgQueryPath(), "-W", installedFormat))
	return result.FromOutcome(out, "Listed installed packages", "Failed to list installed packages")
}
