// Package cli provides the command-line interface for boardsync.
package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/runoshun/boardsync/internal/app"
)

// Command group IDs.
const (
	groupSetup = "setup"
	groupBoard = "board"
	groupSync  = "sync"
)

// runtime carries the container and resolved global options to commands.
// The container is built after flags are parsed unless one was injected.
type runtime struct {
	c     *app.Container
	v     *viper.Viper
	owned bool
}

func (rt *runtime) actor() string {
	return strings.TrimSpace(rt.v.GetString("actor"))
}

func (rt *runtime) jsonOutput() bool {
	return rt.v.GetBool("json")
}

// NewRootCommand creates the root command for boardsync.
// A nil container is built from flags, BOARDSYNC_* variables and config.toml.
func NewRootCommand(c *app.Container, version string) *cobra.Command {
	rt := &runtime{c: c, v: viper.New()}
	rt.v.SetEnvPrefix("BOARDSYNC")
	rt.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	rt.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "boardsync",
		Short: "Offline-first Kanban board synced through a git repository",
		Long: `boardsync keeps a team Kanban board in a single JSON document stored in
a git repository. Every change is saved locally first and written to the
remote with optimistic concurrency; conflicting edits are merged record by
record and edits made while offline are queued and replayed in order.

Set the acting user with --actor or BOARDSYNC_ACTOR.`,
		Version: version,
		// SilenceUsage prevents usage from being printed on errors
		SilenceUsage: true,
		// SilenceErrors prevents Cobra from printing errors (we handle it in main)
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.c != nil {
				return nil
			}
			c, err := app.New(app.Options{
				DataDir:  rt.v.GetString("data-dir"),
				LogLevel: rt.v.GetString("log-level"),
				Timeout:  rt.v.GetDuration("timeout"),
			})
			if err != nil {
				return err
			}
			rt.c, rt.owned = c, true
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if !rt.owned {
				return nil
			}
			return rt.c.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.String("data-dir", "", "Data directory (default $XDG_DATA_HOME/boardsync)")
	flags.StringP("actor", "a", "", "User id recorded on changes")
	flags.Duration("timeout", 0, "Timeout for each remote call (default from config.toml)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.Bool("json", false, "Output JSON")
	for _, name := range []string{"data-dir", "actor", "timeout", "log-level", "json"} {
		_ = rt.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddGroup(
		&cobra.Group{ID: groupSetup, Title: "Setup Commands:"},
		&cobra.Group{ID: groupBoard, Title: "Board Commands:"},
		&cobra.Group{ID: groupSync, Title: "Sync Commands:"},
	)

	configureCmd := newConfigureCommand(rt)
	configureCmd.GroupID = groupSetup

	serveCmd := newServeCommand(rt)
	serveCmd.GroupID = groupSetup

	taskCmd := newTaskCommand(rt)
	taskCmd.GroupID = groupBoard

	requestCmd := newRequestCommand(rt)
	requestCmd.GroupID = groupBoard

	historyCmd := newHistoryCommand(rt)
	historyCmd.GroupID = groupBoard

	exportCmd := newExportCommand(rt)
	exportCmd.GroupID = groupBoard

	importCmd := newImportCommand(rt)
	importCmd.GroupID = groupBoard

	statusCmd := newStatusCommand(rt)
	statusCmd.GroupID = groupSync

	pullCmd := newPullCommand(rt)
	pullCmd.GroupID = groupSync

	syncCmd := newSyncCommand(rt)
	syncCmd.GroupID = groupSync

	queueCmd := newQueueCommand(rt)
	queueCmd.GroupID = groupSync

	root.AddCommand(
		configureCmd, serveCmd,
		taskCmd, requestCmd, historyCmd, exportCmd, importCmd,
		statusCmd, pullCmd, syncCmd, queueCmd,
	)
	return root
}
