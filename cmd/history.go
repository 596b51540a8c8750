package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"eksiblock/features/blocking"
	"eksiblock/features/history"
	"eksiblock/internal/db"

	"github.com/urfave/cli/v2"
)

// HistoryCommand lists past operations from the history database.
var HistoryCommand = &cli.Command{
	Name:  "history",
	Usage: "List past blocking operations",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "status",
			Aliases: []string{"s"},
			Usage:   "Filter by status: [running, paused, completed, failed, stuck].",
		},
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Maximum number of operations to list.",
			Value:   20,
		},
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Output results in JSON format.",
		},
	},
	Action: listHistory,
}

func listHistory(c *cli.Context) error {
	conn, err := db.GetDB()
	if err != nil {
		return err
	}
	defer db.DeferClose()

	records, err := history.NewSQLiteRepository(conn).List(c.Context, history.ListOptions{
		Status: blocking.Status(strings.ToUpper(c.String("status"))),
		Limit:  c.Int("limit"),
	})
	if err != nil {
		return err
	}

	if c.Bool("json") {
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(records) == 0 {
		fmt.Println("No operations recorded.")
		return nil
	}
	for _, r := range records {
		fmt.Printf("%s  %-9s  %-5s  %3d/%-3d failed=%d  entries=%s  %s\n",
			r.UpdatedAt.Local().Format("2006-01-02 15:04"),
			r.Status, r.BlockType, r.ProcessedUsers, r.TotalUsers, r.FailedUsers,
			strings.Join(r.EntryIDs, ","), r.OperationID)
	}
	return nil
}
