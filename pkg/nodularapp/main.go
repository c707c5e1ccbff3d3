package nodularapp

import (
	"context"
	"fmt"
)

// Main parses args, builds the App and runs the command. Tests call it
// directly; cancelling ctx stops a running server.
func Main(ctx context.Context, args []string, opts ...Option) error {
	cmd, cfg, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	app, err := New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	return app.Run(ctx, cmd)
}

// Run executes one parsed command.
func (a *App) Run(ctx context.Context, cmd Command) error {
	var err error
	switch c := cmd.(type) {
	case *MigrateCommand:
		err = a.Migrate(ctx, c)
	case *ServeCommand:
		err = a.Serve(ctx, c)
	case *TreeCommand:
		err = a.PrintTree(ctx, c)
	case *DumpCommand:
		err = a.Dump(ctx, c)
	case *RestoreCommand:
		err = a.Restore(ctx, c)
	case *ChangesCommand:
		err = a.Changes(ctx, c)
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	return nil
}
