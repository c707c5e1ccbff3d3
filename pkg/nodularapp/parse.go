package nodularapp

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/hasgeek/nodular/pkg/config"
)

const usage = `Usage: nodular [flags] <command>

Commands:
  migrate             Create or update the database schema
  serve               Publish the configured root over HTTP
  tree                Print the tree named by -root, or list the roots
  dump <file>         Write the tree named by -root to a snapshot file
  restore <file>      Load a snapshot file
  changes [-since d]  Print change log entries newer than d (default 24h)

Examples:
  nodular migrate
  nodular -root site -basepath /docs -urlpath / serve
  nodular -db-driver sqlite -db-dsn nodular.db -root site tree
  nodular -root site dump site.cbor
  nodular changes -since 1h`

// ErrUsage is returned when the command line names no valid command.
var ErrUsage = errors.New(usage)

// Parse reads the command line. Configuration comes from the defaults,
// the -config file, .env, the environment and finally the flags that were
// given explicitly; the result is validated.
func Parse(args []string) (Command, *config.Config, error) {
	fs := flag.NewFlagSet("nodular", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		cfgPath  = fs.String("config", "", "YAML configuration file")
		dotenv   = fs.String("env-file", ".env", "dotenv file, skipped when missing")
		driver   = fs.String("db-driver", "", "database driver: postgres or sqlite")
		dsn      = fs.String("db-dsn", "", "database connection string")
		addr     = fs.String("addr", "", "HTTP listen address")
		root     = fs.String("root", "", "name of the published root node")
		basepath = fs.String("basepath", "", "published subtree of the root")
		urlpath  = fs.String("urlpath", "", "URL path the subtree is published at")
		logLevel = fs.String("log-level", "", "log level: debug, info, warn or error")
		readOnly = fs.Bool("readonly", false, "reject every write")
	)
	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("%w\n\n%s", err, usage)
	}

	cfg, err := config.Load(*cfgPath, *dotenv)
	if err != nil {
		return nil, nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db-driver":
			cfg.Database.Driver = *driver
		case "db-dsn":
			cfg.Database.DSN = *dsn
		case "addr":
			cfg.Server.Addr = *addr
		case "root":
			cfg.Publish.Root = *root
		case "basepath":
			cfg.Publish.Basepath = *basepath
		case "urlpath":
			cfg.Publish.Urlpath = *urlpath
		case "log-level":
			cfg.Log.Level = *logLevel
		case "readonly":
			cfg.ReadOnly = *readOnly
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return nil, nil, fmt.Errorf("subcommand required\n\n%w", ErrUsage)
	}
	cmd, err := parseCommand(rest[0], rest[1:], cfg)
	if err != nil {
		return nil, nil, err
	}
	return cmd, cfg, nil
}

func parseCommand(name string, args []string, cfg *config.Config) (Command, error) {
	switch name {
	case "migrate":
		return &MigrateCommand{}, nil
	case "serve":
		if cfg.Publish.Root == "" {
			return nil, fmt.Errorf("%w: serve needs a root (-root or %s)", config.ErrInvalid, config.EnvRoot)
		}
		return &ServeCommand{}, nil
	case "tree":
		return &TreeCommand{Root: cfg.Publish.Root}, nil
	case "dump":
		if cfg.Publish.Root == "" {
			return nil, fmt.Errorf("%w: dump needs a root (-root or %s)", config.ErrInvalid, config.EnvRoot)
		}
		file, err := fileArg(name, args)
		if err != nil {
			return nil, err
		}
		return &DumpCommand{Root: cfg.Publish.Root, File: file}, nil
	case "restore":
		file, err := fileArg(name, args)
		if err != nil {
			return nil, err
		}
		return &RestoreCommand{File: file}, nil
	case "changes":
		fs := flag.NewFlagSet("changes", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		since := fs.Duration("since", 24*time.Hour, "how far back to read")
		limit := fs.Int("limit", 100, "maximum number of entries")
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("changes: %w", err)
		}
		if *since <= 0 {
			return nil, fmt.Errorf("changes: -since must be positive, got %s", *since)
		}
		return &ChangesCommand{Since: *since, Limit: *limit}, nil
	default:
		return nil, fmt.Errorf("unknown command: %s\n\n%w", name, ErrUsage)
	}
}

func fileArg(name string, args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("%s: exactly one file argument required\n\n%w", name, ErrUsage)
	}
	return args[0], nil
}
