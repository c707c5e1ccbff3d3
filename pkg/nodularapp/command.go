package nodularapp

import "time"

// Command is one subcommand with its own options. Configuration shared by
// every command lives in config.Config.
type Command interface {
	Name() string
}

// MigrateCommand creates or updates the database schema.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string { return "migrate" }

// ServeCommand publishes the configured root over HTTP until the context
// is cancelled.
type ServeCommand struct{}

func (c *ServeCommand) Name() string { return "serve" }

// TreeCommand prints a tree. An empty Root lists the root nodes instead.
type TreeCommand struct {
	Root string
}

func (c *TreeCommand) Name() string { return "tree" }

// DumpCommand writes the tree named Root to File as a snapshot.
type DumpCommand struct {
	Root string
	File string
}

func (c *DumpCommand) Name() string { return "dump" }

// RestoreCommand loads a snapshot from File.
type RestoreCommand struct {
	File string
}

func (c *RestoreCommand) Name() string { return "restore" }

// ChangesCommand prints change log entries newer than Since ago.
type ChangesCommand struct {
	Since time.Duration
	Limit int
}

func (c *ChangesCommand) Name() string { return "changes" }
