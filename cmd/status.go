package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"eksiblock/features/blocking"
	"eksiblock/features/store"
	"eksiblock/internal/config"

	"github.com/urfave/cli/v2"
)

// StatusCommand prints the stored operation without resuming it.
var StatusCommand = &cli.Command{
	Name:  "status",
	Usage: "Show the stored blocking operation",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Output the raw operation record in JSON format.",
		},
	},
	Action: showStatus,
}

func showStatus(c *cli.Context) error {
	kv, err := store.Open(config.GetConfig().Store)
	if err != nil {
		return err
	}
	defer kv.Close()

	op, err := blocking.NewStateStore(kv).Load(c.Context)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		data, err := json.MarshalIndent(op, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if op == nil {
		printStatus(os.Stdout, blocking.StatusReport{Status: blocking.StatusIdle})
		return nil
	}

	printStatus(os.Stdout, blocking.StatusReport{
		Status:                op.Status,
		OperationID:           op.OperationID,
		EntryID:               op.EntryID,
		EntryIDs:              op.EntryIDs,
		BlockType:             op.BlockType,
		IncludeThreadBlocking: op.IncludeThreadBlocking,
		ProcessedCount:        len(op.ProcessedUsers),
		TotalCount:            op.TotalUserCount,
		PendingCount:          len(op.PendingUsers),
		FailedCount:           len(op.FailedUsers),
		UpdatedAt:             op.UpdatedAt(),
	})
	return nil
}
