package app

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Acknowledge flags one alert as seen.
func (a *App) Acknowledge(ctx context.Context, alertID string) error {
	monitor, cleanup, err := a.newMonitor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := monitor.Acknowledge(alertID); err != nil {
		return fmt.Errorf("acknowledge %s: %w", alertID, err)
	}
	fmt.Fprintf(os.Stdout, "acknowledged %s\n", alertID)
	return nil
}

// Resolve terminates one alert, or every matching alert when opts.All is set.
func (a *App) Resolve(ctx context.Context, opts ResolveOptions) error {
	monitor, cleanup, err := a.newMonitor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.All {
		if opts.Tenant == "" {
			return errors.New("--tenant is required with --all")
		}
		count := monitor.BatchResolve(opts.Tenant, opts.Scope, opts.Notes)
		fmt.Fprintf(os.Stdout, "resolved %d alerts\n", count)
		return nil
	}

	if opts.AlertID == "" {
		return errors.New("an alert id is required unless --all is set")
	}
	if err := monitor.Resolve(opts.AlertID, opts.Notes); err != nil {
		return fmt.Errorf("resolve %s: %w", opts.AlertID, err)
	}
	fmt.Fprintf(os.Stdout, "resolved %s\n", opts.AlertID)
	return nil
}
