package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/RealZimboGuy/gopherstep/internal/config"
	"github.com/RealZimboGuy/gopherstep/internal/tasks"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep"
	cli "github.com/urfave/cli/v3"
)

// settingFlags maps serve flags onto the environment settings the engine reads.
var settingFlags = []struct {
	name, setting, usage string
}{
	{"database-type", config.DATABASE_TYPE, "Execution store (POSTGRES, MYSQL, SQLLITE, MEMORY)"},
	{"database-url", config.DATABASE_URL, "Database connection URL for POSTGRES and MYSQL"},
	{"sqlite-file", config.DATABASE_SQLLITE_FILE_NAME, "SQLite database file"},
	{"definitions", config.DEFINITIONS_DIR, "Directory of workflow definition documents to register"},
	{"port", config.ENGINE_SERVER_WEB_PORT, "Port for the HTTP API"},
	{"executors", config.ENGINE_EXECUTOR_SIZE, "Number of workers driving executions"},
	{"queue-size", config.ENGINE_QUEUE_SIZE, "Capacity of the pending execution queue"},
	{"history-sink", config.HISTORY_SINK, "History store (DATABASE, REDIS, MEMORY)"},
	{"redis-url", config.REDIS_URL, "Redis URL for the history sink and queue trigger"},
	{"redis-queue", config.REDIS_QUEUE, "Redis list consumed as a start queue"},
	{"schedules", config.SCHEDULE_TRIGGERS, "Cron triggers as spec=definition;..."},
	{"events", config.EVENTS_BACKEND, "Lifecycle event backend (GOCHANNEL, KAFKA, NONE)"},
	{"kafka-brokers", config.KAFKA_BROKERS, "Comma separated Kafka brokers"},
	{"otel", config.OTEL_ENABLED, "Export traces over OTLP/HTTP (true, false)"},
}

func NewServeCommand() *cli.Command {
	flags := make([]cli.Flag, 0, len(settingFlags))
	for _, s := range settingFlags {
		flags = append(flags, &cli.StringFlag{
			Name:    s.name,
			Usage:   s.usage,
			Sources: cli.EnvVars(s.setting),
		})
	}
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the engine, its triggers and the HTTP API",
		Flags: flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			gopherstep.SetupLogger(command.String("log-level"))

			for _, s := range settingFlags {
				if command.IsSet(s.name) {
					if err := os.Setenv(s.setting, command.String(s.name)); err != nil {
						return err
					}
				}
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return gopherstep.Start(ctx, nil, tasks.NewBuiltinRegistry(tasks.NewEnv(nil)))
		},
	}
}
