package main

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"eksiblock/cmd"
	"eksiblock/internal/config"
	"eksiblock/internal/logger"

	stdlog "log"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := app().Run(os.Args); err != nil {
		stdlog.Fatalf("error running the app: %v", err)
	}
}

func app() *cli.App {
	helpName := color.YellowString(filepath.Base(os.Args[0]))
	year := strconv.Itoa(time.Now().UTC().Year())

	app := &cli.App{
		Usage:       "Bulk blocking for Ekşi Sözlük",
		HelpName:    helpName,
		Version:     "v0.1.0",
		Compiled:    time.Now().UTC(),
		Copyright:   "© " + year + " EKSIBLOCK",
		Description: "Mutes or blocks every user who favorited an entry, resumably.",
		Commands:    cmd.Commands,
		Before:      before,
	}

	app.Suggest = true
	return app
}

func before(c *cli.Context) error {
	stdlog.Print("Initializing application configuration")
	if err := config.InitConfig(); err != nil {
		stdlog.Printf("error loading config: %v", err)
		return err
	}

	logger.InitializeLogger()
	return nil
}
