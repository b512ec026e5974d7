package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pixora/internal/api"
	"pixora/internal/daemonctl"
)

const (
	startWaitTimeout = 15 * time.Second
	stopGracePeriod  = 10 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startDiagnostic bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the pixora daemon in the background",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return startDaemon(cmd, ctx, startDiagnostic)
		},
	}
	startCmd.Flags().BoolVar(&startDiagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background pixora daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return stopDaemon(cmd, ctx)
		},
	}

	var restartDiagnostic bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the background pixora daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := stopDaemon(cmd, ctx); err != nil {
				return err
			}
			return startDaemon(cmd, ctx, restartDiagnostic)
		},
	}
	restartCmd.Flags().BoolVar(&restartDiagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")

	return []*cobra.Command{startCmd, stopCmd, restartCmd}
}

func startDaemon(cmd *cobra.Command, ctx *commandContext, diagnostic bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	bind := ctx.apiBind()
	if bind == "" {
		return errors.New("no daemon address: set paths.api_bind or pass --api")
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	client, err := api.NewClient(bind, cfg.Paths.APIToken, 5*time.Second)
	if err != nil {
		return fmt.Errorf("api client: %w", err)
	}

	opts := daemonctl.LaunchOptions{
		Executable: exe,
		ConfigPath: ctx.configPath(),
		APIBind:    ctx.apiOverride(),
		Diagnostic: diagnostic,
	}

	result, err := daemonctl.EnsureStarted(cmd.Context(), client, opts, startWaitTimeout)
	if err != nil {
		return fmt.Errorf("%w (see logs with `pixora logs`)", err)
	}
	out := cmd.OutOrStdout()
	switch result.State {
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintf(out, "Daemon already running on %s\n", bind)
	case daemonctl.StartStateStarted:
		fmt.Fprintf(out, "Daemon started (pid %d) on %s\n", result.PID, bind)
	}
	return nil
}

func stopDaemon(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	result, err := daemonctl.StopAndTerminate(cfg.PIDPath(), stopGracePeriod)
	if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}
	if result.ForcedKill {
		fmt.Fprintf(out, "Daemon did not exit within %s; killed pid %d\n", stopGracePeriod, result.PID)
	}
	fmt.Fprintln(out, "Daemon stopped")
	return nil
}
