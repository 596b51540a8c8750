package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"eksiblock/features/blocking"
	"eksiblock/features/commands"
	"eksiblock/internal/telemetry"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// BlockCommand runs a blocking operation in the foreground until it finishes
// or the process is interrupted, in which case the operation is paused.
var BlockCommand = &cli.Command{
	Name:    "block",
	Aliases: []string{"b"},
	Usage:   "Mute or block every user who favorited an entry",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "entry",
			Aliases:  []string{"e"},
			Usage:    "Entry id, #id or entry URL.",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "type",
			Aliases: []string{"t"},
			Usage:   "Action to apply: [mute, block].",
			Value:   "mute",
		},
		&cli.BoolFlag{
			Name:  "thread",
			Usage: "Also block the users' entries from threads.",
		},
		&cli.BoolFlag{
			Name:    "resume",
			Aliases: []string{"r"},
			Usage:   "Resume a stored operation before starting this entry.",
		},
	},
	Action: runBlock,
}

func runBlock(c *cli.Context) error {
	blockType, err := blocking.ParseBlockType(c.String("type"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap(ctx, newConsoleNotifier())
	if err != nil {
		return err
	}
	defer svc.Close()

	shutdown, err := telemetry.InitTelemetry(ctx, svc.cfg.Telemetry, c.App.Version)
	if err != nil {
		log.Warn().Err(err).Msg("Telemetry unavailable")
	} else {
		defer shutdown(context.Background())
	}

	if c.Bool("resume") {
		if _, err := svc.executor.Execute(ctx, commands.ResumeBlocking{}); err != nil && !errors.Is(err, blocking.ErrNoStoredOperation) {
			return fmt.Errorf("failed to resume stored operation: %w", err)
		}
	}

	res, err := svc.executor.Execute(ctx, commands.StartBlocking{
		EntryID:               c.String("entry"),
		BlockType:             blockType,
		IncludeThreadBlocking: c.Bool("thread"),
	})
	if err != nil {
		return err
	}
	fmt.Println(color.CyanString(res.Message))

	done := make(chan struct{})
	go func() {
		svc.workflow.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Info().Msg("Interrupted, pausing operation")
		if _, err := svc.executor.Execute(context.Background(), commands.StopBlocking{}); err != nil {
			log.Warn().Err(err).Msg("Failed to pause operation")
		}
		fmt.Println(color.YellowString("Operation paused, run `block --resume` or `serve` to continue."))
	}

	printStatus(os.Stdout, svc.workflow.GetStatus())
	return nil
}
