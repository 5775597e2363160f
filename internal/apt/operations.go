package apt

import (
	"context"
	"errors"
	"fmt"

	"github.com/deixis/aptmcp/internal/logging"
	"github.com/deixis/aptmcp/internal/metrics"
	"github.com/deixis/aptmcp/internal/progress"
	"github.com/deixis/aptmcp/internal/result"
	"github.com/deixis/aptmcp/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrUnknownOperation is returned by Dispatch for names not in the table.
var ErrUnknownOperation = errors.New("unknown operation")

// ErrMissingArgument is returned by Dispatch when a required argument is empty.
var ErrMissingArgument = errors.New("missing argument")

// ArgKind describes the arguments an operation takes.
type ArgKind int

const (
	NoArgs        ArgKind = iota
	PackageList           // one or more package names
	SinglePackage         // exactly one package name
)

// Request carries the arguments and sinks for one operation.
type Request struct {
	Packages []string          // PackageList operations
	Package  string            // SinglePackage operations
	Log      logging.Logger    // nil discards
	Progress progress.Reporter // nil discards

	journal *journal
}

// Handler runs one operation and always returns a result.
type Handler func(ctx context.Context, e *Engine, req Request) *result.OperationResult

// Operation is one entry of the dispatch table.
type Operation struct {
	Name        string
	Description string
	Args        ArgKind
	Handler     Handler
}

// operations is the dispatch table, in presentation order.
var operations = []Operation{
	{
		Name:        "apt_install",
		Description: "Refresh the package index, then install one or more packages with apt-get install -y.",
		Args:        PackageList,
		Handler:     install,
	},
	{
		Name:        "apt_remove",
		Description: "Remove one or more packages with apt-get remove -y.",
		Args:        PackageList,
		Handler:     remove,
	},
	{
		Name:        "apt_upgrade_package",
		Description: "Upgrade a single installed package with apt-get install --only-upgrade -y.",
		Args:        SinglePackage,
		Handler:     upgradePackage,
	},
	{
		Name:        "apt_update_upgrade",
		Description: "Refresh the package index, then upgrade every installed package. The upgrade only runs when the update succeeds.",
		Args:        NoArgs,
		Handler:     updateUpgrade,
	},
	{
		Name:        "apt_autoremove",
		Description: "Remove packages that were installed as dependencies and are no longer needed.",
		Args:        NoArgs,
		Handler:     autoremove,
	},
	{
		Name:        "apt_list_upgradable",
		Description: "List packages with a newer version available.",
		Args:        NoArgs,
		Handler:     listUpgradable,
	},
	{
		Name:        "apt_list_installed",
		Description: "List installed packages and their versions, one per line, tab separated.",
		Args:        NoArgs,
		Handler:     listInstalled,
	},
	{
		Name:        "apt_package_status",
		Description: "Report whether a package is installed, upgradable and available from the configured sources.",
		Args:        SinglePackage,
		Handler:     packageStatus,
	},
}

// Operations returns a copy of the dispatch table.
func Operations() []Operation {
	return append([]Operation(nil), operations...)
}

// Lookup returns the operation registered under name.
func Lookup(name string) (Operation, bool) {
	for _, op := range operations {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// Dispatch runs the named operation. An error is returned only when the
// operation cannot start: unknown name or missing argument. Once started,
// every failure is reported in the result, and the result carries the
// warnings and errors logged while it ran.
func (e *Engine) Dispatch(ctx context.Context, name string, req Request) (*result.OperationResult, error) {
	op, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}
	switch op.Args {
	case PackageList:
		if len(req.Packages) == 0 {
			return nil, fmt.Errorf("%w: %s requires at least one package", ErrMissingArgument, name)
		}
	case SinglePackage:
		if req.Package == "" {
			return nil, fmt.Errorf("%w: %s requires a package", ErrMissingArgument, name)
		}
	}
	return e.run(ctx, op, req), nil
}

func (e *Engine) run(ctx context.Context, op Operation, req Request) (res *result.OperationResult) {
	j := newJournal(op.Name, req.Log)
	req.journal = j
	req.Log = j
	if req.Progress == nil {
		req.Progress = progress.Nop
	}

	ctx, span := tracing.Tracer().Start(ctx, "apt."+op.Name, trace.WithAttributes(
		attribute.String("operation", op.Name),
		attribute.String("op.id", j.id),
	))
	if id := tracing.TraceIDFromContext(ctx); id != "" {
		j.sink = logging.With(j.sink, "trace_id", id)
	}
	metrics.OperationsInProgress.Inc()
	j.enter(result.StateRunning)

	defer func() {
		if r := recover(); r != nil {
			j.Error("Operation panicked", "panic", fmt.Sprint(r))
			res = result.AggregationFailure(fmt.Sprintf("Operation %s failed", op.Name), fmt.Errorf("%v", r))
		}

		label := "success"
		if res.Success {
			j.enter(result.StateSucceeded)
		} else {
			label = "failure"
			j.enter(result.StateFailed)
			span.SetStatus(codes.Error, res.Summary)
		}
		res = res.WithLogs(j.Lines())

		metrics.OperationsInProgress.Dec()
		metrics.Operations.WithLabelValues(op.Name, label).Inc()
		span.End()
	}()

	return op.Handler(ctx, e, req)
}
