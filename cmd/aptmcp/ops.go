package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/deixis/aptmcp/internal/apt"
	"github.com/deixis/aptmcp/internal/logging"
	aptmcpserver "github.com/deixis/aptmcp/internal/mcp"
	"github.com/deixis/aptmcp/internal/progress"
	"github.com/deixis/aptmcp/internal/result"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// commandName maps an operation name to its subcommand, e.g.
// apt_update_upgrade to update-upgrade.
func commandName(op string) string {
	return strings.ReplaceAll(strings.TrimPrefix(op, "apt_"), "_", "-")
}

func newOperationCommand(a *app, op apt.Operation) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   commandName(op.Name),
		Short: op.Description,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, params := operationRequest(op.Args, args)
			if err := aptmcpserver.Validate(params); err != nil {
				return fmt.Errorf("%s: %w", cmd.Name(), err)
			}

			req.Log = logging.Zerolog(a.log)
			req.Progress = logProgress(a.log, op.Name)

			res, err := a.engine().Dispatch(cmd.Context(), op.Name, req)
			if err != nil {
				return err
			}
			if err := writeResult(cmd.OutOrStdout(), res, jsonOutput); err != nil {
				return err
			}
			if !res.Success {
				return exitError{code: 1}
			}
			return nil
		},
	}

	switch op.Args {
	case apt.PackageList:
		cmd.Use += " <package>..."
		cmd.Args = cobra.MinimumNArgs(1)
	case apt.SinglePackage:
		cmd.Use += " <package>"
		cmd.Args = cobra.ExactArgs(1)
	default:
		cmd.Args = cobra.NoArgs
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the result as JSON")

	return cmd
}

// operationRequest maps positional arguments onto the request and the
// parameter struct used for validation.
func operationRequest(kind apt.ArgKind, args []string) (apt.Request, any) {
	switch kind {
	case apt.PackageList:
		return apt.Request{Packages: args}, aptmcpserver.PackagesParams{Packages: args}
	case apt.SinglePackage:
		var pkg string
		if len(args) > 0 {
			pkg = args[0]
		}
		return apt.Request{Package: pkg}, aptmcpserver.PackageParams{Package: pkg}
	default:
		return apt.Request{}, aptmcpserver.NoParams{}
	}
}

func logProgress(log zerolog.Logger, op string) progress.Reporter {
	return progress.Func(func(_ context.Context, completed, total int) {
		log.Info().Str("operation", op).Int("completed", completed).Int("total", total).Msg("Progress")
	})
}

func writeResult(w io.Writer, res *result.OperationResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err := fmt.Fprint(w, res.Render())
	return err
}
