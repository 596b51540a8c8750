package cmd

import (
	"errors"
	"fmt"

	"eksiblock/features/blocking"
	"eksiblock/features/commands"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// ResetCommand discards the stored operation. With --revalidate a stuck
// operation is re-fetched and resumed instead.
var ResetCommand = &cli.Command{
	Name:  "reset",
	Usage: "Discard or re-validate the stored blocking operation",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "revalidate",
			Usage: "Re-fetch the entries of a stuck operation and continue it in the foreground.",
		},
	},
	Action: resetOperation,
}

func resetOperation(c *cli.Context) error {
	svc, err := bootstrap(c.Context, newConsoleNotifier())
	if err != nil {
		return err
	}
	defer svc.Close()

	if c.Bool("revalidate") {
		if err := svc.workflow.CheckAndResumeBlocking(c.Context); err != nil {
			return err
		}
		res, err := svc.executor.Execute(c.Context, commands.ResetStuckState{})
		if errors.Is(err, blocking.ErrNoStoredOperation) {
			fmt.Println("Nothing to reset.")
			return nil
		}
		if err != nil && !errors.Is(err, blocking.ErrOperationRunning) {
			return err
		}
		if res.Message != "" {
			fmt.Println(color.CyanString(res.Message))
		}
		svc.workflow.Wait()
		return nil
	}

	states := blocking.NewStateStore(svc.store)
	op, err := states.Load(c.Context)
	if err != nil {
		return err
	}
	if op == nil {
		fmt.Println("Nothing to reset.")
		return nil
	}

	op.Status = blocking.StatusFailed
	if err := svc.history.Record(c.Context, op); err != nil {
		log.Warn().Err(err).Msg("Failed to record discarded operation")
	}
	if err := states.Clear(c.Context); err != nil {
		return err
	}
	fmt.Println(color.YellowString("Operation %s discarded.", op.OperationID))
	return nil
}
