package main

import (
	"github.com/alecthomas/kong"
	"github.com/jonboulle/clockwork"

	"prayernote/internal/cli"
	"prayernote/internal/config"
	apperr "prayernote/internal/errors"
	"prayernote/internal/logger"
	"prayernote/internal/storage"
)

var CLI struct {
	Version kong.VersionFlag
	DB      string `help:"SQLite database path (overrides PRAYERNOTE_DB)." type:"path"`

	Serve cli.ServeCmd `cmd:"" help:"Run reminders, the HTTP API and the Telegram bot." default:"withargs"`
	Today struct {
		Show   cli.TodayCmd       `cmd:"" help:"Show who to pray for today." default:"withargs"`
		Toggle cli.TodayToggleCmd `cmd:"" help:"Add a person to today's weekday, or remove them."`
	} `cmd:"" help:"Today's assignments."`
	Stats cli.StatsCmd `cmd:"" help:"Show prayer statistics."`

	Dispatch   cli.DispatchCmd   `cmd:"" help:"Send today's reminder now."`
	NotifyTest cli.NotifyTestCmd `cmd:"" name:"notify-test" help:"Send a test notification."`

	Person struct {
		Add    cli.PersonAddCmd    `cmd:"" help:"Add a person."`
		List   cli.PersonListCmd   `cmd:"" help:"List persons." default:"withargs"`
		Search cli.PersonSearchCmd `cmd:"" help:"Search persons by name."`
		Edit   cli.PersonEditCmd   `cmd:"" help:"Edit a person."`
		Delete cli.PersonDeleteCmd `cmd:"" help:"Delete a person with topics and history."`
	} `cmd:"" help:"Manage persons."`
	Topic struct {
		Add     cli.TopicAddCmd     `cmd:"" help:"Add a prayer topic."`
		List    cli.TopicListCmd    `cmd:"" help:"List topics of a person, or answered topics."`
		Answer  cli.TopicAnswerCmd  `cmd:"" help:"Mark a topic as answered."`
		Restore cli.TopicRestoreCmd `cmd:"" help:"Move an answered topic back to active."`
		Delete  cli.TopicDeleteCmd  `cmd:"" help:"Delete a topic."`
	} `cmd:"" help:"Manage prayer topics."`
	Alarm struct {
		Add     cli.AlarmAddCmd     `cmd:"" help:"Add a daily reminder time."`
		List    cli.AlarmListCmd    `cmd:"" help:"List reminder times." default:"1"`
		Enable  cli.AlarmEnableCmd  `cmd:"" help:"Switch a reminder on."`
		Disable cli.AlarmDisableCmd `cmd:"" help:"Switch a reminder off."`
		Delete  cli.AlarmDeleteCmd  `cmd:"" help:"Delete a reminder time."`
	} `cmd:"" help:"Manage reminder times."`
	Backup struct {
		Create  cli.BackupCreateCmd  `cmd:"" help:"Back up persons and topics to the cloud." default:"withargs"`
		List    cli.BackupListCmd    `cmd:"" help:"List the latest backups."`
		Show    cli.BackupShowCmd    `cmd:"" help:"Show the content of a backup."`
		Restore cli.BackupRestoreCmd `cmd:"" help:"Merge a backup into the local database."`
		Delete  cli.BackupDeleteCmd  `cmd:"" help:"Delete a backup."`
		SetDSN  cli.BackupSetDSNCmd  `cmd:"" name:"set-dsn" help:"Store the backup connection string in the OS keyring."`
	} `cmd:"" help:"Manage cloud backups."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("prayernote"),
		kong.Description("Daily prayer reminders for the people you pray for"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": "v1.0.0"},
	)

	cfg, err := config.Load()
	apperr.Fatal(err)
	if CLI.DB != "" {
		cfg.DBPath = CLI.DB
	}

	err = logger.Init(logger.Config{
		Debug:  cfg.Debug,
		LogDir: cfg.LogDir,
		Stderr: ctx.Command() == "serve",
	})
	apperr.Fatal(err)

	db, err := storage.New(cfg.DBPath, storage.Options{
		Location:    cfg.Location,
		Destructive: cfg.DestructiveMigrations,
	})
	apperr.Fatal(err)

	err = ctx.Run(&cli.Context{
		Config: cfg,
		DB:     db,
		Clock:  clockwork.NewRealClock(),
	})
	db.Close()
	logger.Close()
	apperr.Fatal(err)
}
