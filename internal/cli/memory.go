package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/contextmemory/internal/context_store"
	"github.com/lewisedginton/contextmemory/pkg/logger"
)

// StoreCommand inserts one entry.
func StoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "store",
		Usage:     "Store a context entry",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "type",
				Value: string(context_store.GeneralContext),
				Usage: "Context type: user_preference, important_fact, task_context, conversation_flow, domain_knowledge, general_context",
			},
			&cli.Float64Flag{
				Name:  "importance",
				Value: context_store.DefaultBaseImportance,
				Usage: "Base importance in [0, 1]",
			},
			&cli.StringFlag{
				Name:  "json",
				Usage: "Store a structured record given as a JSON object instead of text",
			},
			&cli.TimestampFlag{
				Name:   "observed-at",
				Layout: time.RFC3339,
				Usage:  "When the information was observed (RFC 3339); defaults to now",
			},
		},
		Action: withRuntime(storeAction),
	}
}

func storeAction(c *cli.Context, rt *runtime) error {
	ctxType, err := context_store.ParseContextType(c.String("type"))
	if err != nil {
		return err
	}

	var data context_store.Payload
	switch raw := c.String("json"); {
	case raw != "":
		var fields map[string]any
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return fmt.Errorf("--json must be a JSON object: %w", err)
		}
		data = context_store.Structured(fields)
	case c.Args().Len() > 0:
		data = context_store.Text(strings.Join(c.Args().Slice(), " "))
	default:
		return fmt.Errorf("text or --json is required")
	}

	opts := []context_store.InsertOption{
		context_store.WithType(ctxType),
		context_store.WithImportance(c.Float64("importance")),
	}
	if ts := c.Timestamp("observed-at"); ts != nil {
		opts = append(opts, context_store.WithObservedAt(*ts))
	}

	id := rt.store.Insert(c.Context, data, opts...)
	rt.log.Info("Stored context entry", logger.EntryIDField(id), logger.StringField("type", string(ctxType)))
	if err := rt.save(c); err != nil {
		return err
	}

	_, err = fmt.Fprintln(c.App.Writer, id)
	return err
}

func rankFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of results (default from configuration)",
		},
		&cli.Float64Flag{
			Name:  "min-importance",
			Usage: "Importance floor (default from configuration)",
		},
	}
}

func rankOptions(c *cli.Context) []context_store.RetrieveOption {
	var opts []context_store.RetrieveOption
	if c.IsSet("limit") {
		opts = append(opts, context_store.WithLimit(c.Int("limit")))
	}
	if c.IsSet("min-importance") {
		opts = append(opts, context_store.WithMinImportance(c.Float64("min-importance")))
	}
	return opts
}

// RetrieveCommand ranks entries against a query and records the access.
func RetrieveCommand() *cli.Command {
	return &cli.Command{
		Name:      "retrieve",
		Usage:     "Retrieve the most relevant entries; updates access statistics",
		ArgsUsage: "<query>",
		Flags:     rankFlags(),
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			query := strings.Join(c.Args().Slice(), " ")
			views := rt.store.Retrieve(c.Context, query, rankOptions(c)...)
			if err := rt.save(c); err != nil {
				return err
			}
			return writeJSON(c, views)
		}),
	}
}

// PeekCommand ranks entries without recording access.
func PeekCommand() *cli.Command {
	return &cli.Command{
		Name:      "peek",
		Usage:     "Rank entries like retrieve without touching access statistics",
		ArgsUsage: "<query>",
		Flags:     rankFlags(),
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			query := strings.Join(c.Args().Slice(), " ")
			return writeJSON(c, rt.store.Peek(c.Context, query, rankOptions(c)...))
		}),
	}
}

// GetCommand prints one entry by id.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one entry",
		ArgsUsage: "<id>",
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			id := c.Args().First()
			view, ok := rt.store.Get(id)
			if !ok {
				return fmt.Errorf("entry %q not found", id)
			}
			return writeJSON(c, view)
		}),
	}
}

// SimilarCommand lists entries by embedding similarity.
func SimilarCommand() *cli.Command {
	return &cli.Command{
		Name:      "similar",
		Usage:     "List entries whose embedding is close to the text",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "k", Value: 3, Usage: "Maximum number of results"},
			&cli.Float64Flag{Name: "min-similarity", Value: 0.7, Usage: "Cosine similarity floor"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			text := strings.Join(c.Args().Slice(), " ")
			return writeJSON(c, rt.store.Similar(text, c.Int("k"), c.Float64("min-similarity")))
		}),
	}
}

// RecentCommand lists the newest entries.
func RecentCommand() *cli.Command {
	return &cli.Command{
		Name:  "recent",
		Usage: "List entries created within a window, newest first",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "window", Value: time.Hour, Usage: "How far back to look"},
			&cli.IntFlag{Name: "limit", Value: 10, Usage: "Maximum number of results"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			return writeJSON(c, rt.store.Recent(c.Duration("window"), c.Int("limit")))
		}),
	}
}

// StatsCommand prints store statistics.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show store statistics",
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			return writeJSON(c, rt.store.Stats())
		}),
	}
}

// ClearCommand removes every entry.
func ClearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove every entry from the store",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "Confirm the deletion"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			if !c.Bool("yes") {
				return fmt.Errorf("refusing to clear %d entries without --yes", rt.store.Len())
			}
			removed := rt.store.Len()
			rt.store.Clear(c.Context)
			if err := rt.save(c); err != nil {
				return err
			}
			_, err := fmt.Fprintf(c.App.Writer, "cleared %d entries\n", removed)
			return err
		}),
	}
}
