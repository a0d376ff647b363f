package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/contextmemory/internal/storage_manager"
	"github.com/lewisedginton/contextmemory/pkg/logger"
)

// PrefsCommand reads and writes the stored user preferences.
func PrefsCommand() *cli.Command {
	return &cli.Command{
		Name:  "prefs",
		Usage: "User preference operations",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Show the stored preferences",
				Action: withRuntime(func(c *cli.Context, rt *runtime) error {
					prefs, err := rt.preferences.UserPreferences(c.Context)
					if err != nil {
						return err
					}
					return writeJSON(c, prefs)
				}),
			},
			{
				Name:      "set",
				Usage:     "Set preferences; values are parsed as JSON when possible",
				ArgsUsage: "<key=value>...",
				Action:    withRuntime(prefsSetAction),
			},
		},
	}
}

func prefsSetAction(c *cli.Context, rt *runtime) error {
	if c.Args().Len() == 0 {
		return fmt.Errorf("at least one key=value is required")
	}

	prefs, err := rt.preferences.UserPreferences(c.Context)
	if err != nil {
		return err
	}
	for _, arg := range c.Args().Slice() {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid preference %q, want key=value", arg)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		prefs[key] = value
	}

	if err := rt.preferences.SetUserPreferences(c.Context, prefs); err != nil {
		return err
	}
	return writeJSON(c, prefs)
}

// SessionsCommand lists the sessions with a stored snapshot.
func SessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List sessions with stored context",
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			ids, err := rt.registry.StoredSessions(c.Context)
			if err != nil {
				return err
			}
			return writeJSON(c, ids)
		}),
	}
}

// HistoryCommand shows the commits that touched the snapshot on the git backend.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show snapshot revisions (git backend only)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum number of revisions"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			git, ok := rt.storage.GetRootProvider().(*storage_manager.GitFileProvider)
			if !ok {
				return fmt.Errorf("history needs the git backend, configured backend is %q", rt.storage.Backend())
			}

			key := rt.cfg.Memory.SnapshotKey
			if session := c.String("session"); session != "" {
				key = "sessions/" + session + "/" + key
			}
			revs, err := git.Revisions(c.Context, key, c.Int("limit"))
			if err != nil {
				return err
			}
			return writeJSON(c, revs)
		}),
	}
}

// ConfigCommand returns a command for configuration operations
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Configuration operations",
		Subcommands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Validate configuration",
				Action: configValidateAction,
			},
		},
	}
}

func configValidateAction(c *cli.Context) error {
	log := getLogger(c)

	cfg, err := getConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Configuration validation failed", logger.ErrorField(err))
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg.LogConfig(log)
	_, err = fmt.Fprintln(c.App.Writer, "configuration is valid")
	return err
}
