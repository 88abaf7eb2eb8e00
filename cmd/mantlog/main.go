package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/ultrona/mantlog/internal/bootstrap"
	"github.com/ultrona/mantlog/internal/config"
	"github.com/ultrona/mantlog/internal/record"
)

var (
	app = kingpin.New("mantlog", "ULTRONA monthly maintenance log")

	addCmd      = app.Command("add", "Record a maintenance entry")
	addTask     = addCmd.Flag("task", "Maintenance performed").Required().String()
	addOperator = addCmd.Flag("operator", "Operator who performed it").Required().String()
	addAt       = addCmd.Flag("at", "Date and time (default: now)").String()

	listCmd   = app.Command("list", "List records")
	listMonth = listCmd.Flag("month", "Only records of this month (YYYY-MM)").String()

	monthsCmd = app.Command("months", "List months with records, newest first")

	exportCmd    = app.Command("export", "Write the log, or one month of it, to an xlsx file")
	exportMonth  = exportCmd.Flag("month", "Month to export (YYYY-MM)").String()
	exportOutput = exportCmd.Flag("output", "Output file (default: the download file name)").Short('o').String()

	backupsCmd = app.Command("backups", "List backup snapshots, oldest first")

	optionsCmd = app.Command("options", "Show the allowed tasks and operators")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadEnv()
	app.FatalIfError(err, "")
	slog.SetDefault(bootstrap.NewLogger(env, os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.New(ctx, env)
	app.FatalIfError(err, "initialize")

	switch command {
	case addCmd.FullCommand():
		err = runAdd(ctx, os.Stdout, a.Service, record.Entry{Timestamp: *addAt, Task: *addTask, Operator: *addOperator})
	case listCmd.FullCommand():
		err = runList(ctx, os.Stdout, a.Service, *listMonth)
	case monthsCmd.FullCommand():
		err = runMonths(ctx, os.Stdout, a.Service)
	case exportCmd.FullCommand():
		err = runExport(ctx, os.Stdout, a.Service, *exportMonth, *exportOutput)
	case backupsCmd.FullCommand():
		err = runBackups(ctx, os.Stdout, a.Backups)
	case optionsCmd.FullCommand():
		err = runOptions(os.Stdout, a.Service)
	}
	app.FatalIfError(err, "%s", command)
}
