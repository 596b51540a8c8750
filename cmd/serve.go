package cmd

import (
	"context"

	"eksiblock/features/web"
	"eksiblock/internal/runner"
	"eksiblock/internal/telemetry"

	"github.com/ory/graceful"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// WebServer is the CLI command that starts the web API server.
var WebServer = &cli.Command{
	Name:    "serve",
	Aliases: []string{"s"},
	Usage:   "Start web API server",
	Action:  serve,
}

func serve(c *cli.Context) (err error) {
	svc, err := bootstrap(c.Context, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize services")
		return err
	}
	defer svc.Close()

	shutdown, err := telemetry.InitTelemetry(c.Context, svc.cfg.Telemetry, c.App.Version)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize telemetry")
		return err
	}
	defer shutdown(context.Background())

	webServices, err := web.NewServices(svc.executor, svc.history, svc.workflow, svc.metrics)
	if err != nil {
		return err
	}

	app, err := web.NewApplication(&svc.cfg.Server, webServices)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create web application")
		return err
	}

	if svc.cfg.Blocker.ResumeAtStartup {
		log.Info().Msg("Checking for an interrupted blocking operation")
		if err := svc.workflow.CheckAndResumeBlocking(c.Context); err != nil {
			log.Error().Err(err).Msg("Failed to resume stored operation")
		}
	}

	if _, err := runner.InitializeRunner(runner.Scheduled{
		Task:     runner.NewStuckWatchdog(svc.workflow),
		Schedule: svc.cfg.Blocker.StuckCheckSchedule,
	}); err != nil {
		log.Error().Err(err).Msg("Failed to initialize scheduler runner")
		return err
	}
	defer runner.ShutdownRunner()

	server := graceful.WithDefaults(app.Echo.Server)
	server.ReadTimeout = svc.cfg.Server.ReadTimeout
	server.WriteTimeout = svc.cfg.Server.WriteTimeout
	log.Info().Msgf("Starting server on %s", server.Addr)

	if err = graceful.Graceful(server.ListenAndServe, server.Shutdown); err != nil {
		log.Error().Err(err).Msg("Failed to start server")
		return err
	}

	log.Info().Msg("Server stopped gracefully.")
	return nil
}
