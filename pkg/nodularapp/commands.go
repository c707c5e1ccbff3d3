package nodularapp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/snapshot"
	"github.com/hasgeek/nodular/pkg/store"
)

func (a *App) Migrate(ctx context.Context, _ *MigrateCommand) error {
	a.log.Info().Msg("running database migrations")
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	a.log.Info().Msg("migrations completed")
	return nil
}

// PrintTree prints every node of the named tree, one per line, indented
// by depth.
func (a *App) PrintTree(ctx context.Context, cmd *TreeCommand) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	if cmd.Root == "" {
		roots, err := a.store.ListRoots(ctx)
		if err != nil {
			return err
		}
		for _, r := range roots {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Title, r.EffectiveType(), r.BUID)
		}
		return tw.Flush()
	}

	root, err := a.root(ctx, cmd.Root)
	if err != nil {
		return err
	}
	nodes, err := a.store.ListSubtree(ctx, root.ID)
	if err != nil {
		return err
	}
	sortByPath(nodes)
	for _, n := range nodes {
		label := n.Name
		if n.IsRoot() {
			label = n.Name + " " + n.Path
		}
		depth := strings.Count(strings.TrimSuffix(n.Path, "/"), "/")
		fmt.Fprintf(tw, "%s%s\t%s\t%s\n", strings.Repeat("  ", depth), label, n.Title, n.EffectiveType())
	}
	return tw.Flush()
}

// Dump writes the named tree to a snapshot file.
func (a *App) Dump(ctx context.Context, cmd *DumpCommand) error {
	root, err := a.root(ctx, cmd.Root)
	if err != nil {
		return err
	}
	f, err := os.Create(cmd.File)
	if err != nil {
		return err
	}
	stats, err := snapshot.Dump(ctx, a.store, root.ID, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("dump %s: %w", cmd.Root, err)
	}
	a.log.Info().Str("root", cmd.Root).Str("file", cmd.File).Str("stats", stats.String()).Msg("tree dumped")
	fmt.Fprintf(a.out, "dumped %s to %s: %s\n", cmd.Root, cmd.File, stats)
	return nil
}

// Restore loads a snapshot file. The store must not be read-only.
func (a *App) Restore(ctx context.Context, cmd *RestoreCommand) error {
	f, err := os.Open(cmd.File)
	if err != nil {
		return err
	}
	defer f.Close()
	h, stats, err := snapshot.Restore(ctx, a.store, f)
	if err != nil {
		return fmt.Errorf("restore %s: %w", cmd.File, err)
	}
	a.log.Info().Str("root", h.Root.String()).Str("file", cmd.File).Str("stats", stats.String()).Msg("tree restored")
	fmt.Fprintf(a.out, "restored %s from %s (written %s): %s\n", h.Root, cmd.File, h.Created.Format(time.RFC3339), stats)
	return nil
}

// Changes prints the change log, oldest first.
func (a *App) Changes(ctx context.Context, cmd *ChangesCommand) error {
	changes, err := a.store.ListChangesSince(ctx, time.Now().UTC().Add(-cmd.Since), cmd.Limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, c := range changes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			c.ChangedAt.UTC().Format(time.RFC3339), c.Operation, c.EntityType, c.EntityID, payloadString(c.Payload))
	}
	return tw.Flush()
}

func (a *App) root(ctx context.Context, name string) (*models.Node, error) {
	root, err := a.store.GetRoot(ctx, name)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("root %q: %w", name, store.ErrNotFound)
	}
	return root, nil
}

// sortByPath orders nodes depth first, comparing paths segment by segment
// so that /a/b sorts before /a-b.
func sortByPath(nodes []*models.Node) {
	slices.SortFunc(nodes, func(x, y *models.Node) int {
		return slices.Compare(strings.Split(x.Path, "/"), strings.Split(y.Path, "/"))
	})
}

func payloadString(p models.JSONMap) string {
	if len(p) == 0 {
		return ""
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprint(map[string]any(p))
	}
	return string(b)
}
