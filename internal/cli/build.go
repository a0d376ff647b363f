package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/contextmemory/internal/context_builder"
)

// BuildCommand assembles the enhanced context for a message.
func BuildCommand() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Assemble the enhanced context for a message; updates access statistics",
		ArgsUsage: "<message>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history-file",
				Usage: `JSON file holding [{"sender": "user|bot", "text": "..."}]`,
			},
			&cli.StringFlag{
				Name:  "user-context",
				Usage: "JSON object describing the user",
			},
			&cli.StringFlag{
				Name:  "platform",
				Usage: "Platform the message came from",
			},
		},
		Action: withRuntime(buildAction),
	}
}

func buildAction(c *cli.Context, rt *runtime) error {
	req := context_builder.BuildRequest{
		Message:  strings.Join(c.Args().Slice(), " "),
		Platform: c.String("platform"),
	}
	if req.Message == "" {
		return fmt.Errorf("message is required")
	}

	if path := c.String("history-file"); path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // G304: operator supplied path
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		if err := json.Unmarshal(data, &req.History); err != nil {
			return fmt.Errorf("failed to decode history: %w", err)
		}
	}
	if raw := c.String("user-context"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.UserContext); err != nil {
			return fmt.Errorf("--user-context must be a JSON object: %w", err)
		}
	}

	builder := context_builder.New(context_builder.Config{
		Memory:      rt.store,
		Preferences: rt.preferences,
		Logger:      rt.log,
	})
	enhanced := builder.Build(c.Context, req)

	if err := rt.save(c); err != nil {
		return err
	}
	return writeJSON(c, enhanced)
}
