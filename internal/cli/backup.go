package cli

import (
	"context"
	"fmt"

	"prayernote/internal/backup"
	"prayernote/internal/keyring"
	"prayernote/internal/logger"
)

func (c *Context) withBackup(fn func(ctx context.Context, svc *backup.Service) error) error {
	ctx := context.Background()
	svc, closeStore, err := c.Backup(ctx, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("Failed to close backup store", "error", err)
		}
	}()
	return fn(ctx, svc)
}

type BackupCreateCmd struct {
	Person          []string `help:"Id or exact name to include; repeat for several. Default is everyone." short:"p"`
	IncludeAnswered bool     `help:"Also back up answered topics." name:"include-answered"`
}

func (cmd *BackupCreateCmd) Run(c *Context) error {
	return c.withBackup(func(ctx context.Context, svc *backup.Service) error {
		ids := make([]int64, 0, len(cmd.Person))
		for _, ref := range cmd.Person {
			p, err := c.findPerson(ctx, ref)
			if err != nil {
				return err
			}
			ids = append(ids, p.ID)
		}
		id, err := svc.BackupSelected(ctx, c.DB, ids, cmd.IncludeAnswered)
		if err != nil {
			return err
		}
		sess, err := svc.Session(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Backup %s created: %d persons, %d topics\n", sess.ID, sess.TotalPersons, sess.TotalTopics)
		return nil
	})
}

type BackupListCmd struct{}

func (cmd *BackupListCmd) Run(c *Context) error {
	return c.withBackup(func(ctx context.Context, svc *backup.Service) error {
		sessions, err := svc.Sessions(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No backups found")
			return nil
		}
		fmt.Println("Backups:")
		for _, s := range sessions {
			answered := ""
			if s.IncludeAnswered {
				answered = ", with answered"
			}
			fmt.Printf("  %s  %s  %d persons, %d topics%s\n",
				s.Timestamp.In(c.Config.Location).Format("2006-01-02 15:04"), s.ID, s.TotalPersons, s.TotalTopics, answered)
		}
		return nil
	})
}

type BackupShowCmd struct {
	ID string `arg:"" help:"Backup id."`
}

func (cmd *BackupShowCmd) Run(c *Context) error {
	return c.withBackup(func(ctx context.Context, svc *backup.Service) error {
		sess, err := svc.Session(ctx, cmd.ID)
		if err != nil {
			return err
		}
		persons, err := svc.SessionPersons(ctx, cmd.ID)
		if err != nil {
			return err
		}
		topics, err := svc.SessionTopics(ctx, cmd.ID)
		if err != nil {
			return err
		}

		fmt.Printf("Backup %s from %s\n", sess.ID, sess.Timestamp.In(c.Config.Location).Format("2006-01-02 15:04"))
		byPerson := make(map[int64][]backup.TopicDoc)
		for _, t := range topics {
			byPerson[t.PersonID] = append(byPerson[t.PersonID], t)
		}
		for _, p := range persons {
			fmt.Printf("  %s (%d topics)\n", p.Name, len(byPerson[p.OriginalID]))
			for _, t := range byPerson[p.OriginalID] {
				fmt.Printf("      [%s] %s\n", t.Status, t.Title)
			}
		}
		return nil
	})
}

type BackupRestoreCmd struct {
	ID string `arg:"" help:"Backup id."`
}

func (cmd *BackupRestoreCmd) Run(c *Context) error {
	return c.withBackup(func(ctx context.Context, svc *backup.Service) error {
		report, err := svc.Restore(ctx, cmd.ID, c.DB)
		if err != nil {
			return err
		}
		fmt.Println(report.String())
		fmt.Printf("  persons: %d created, %d updated\n", report.PersonsCreated, report.PersonsUpdated)
		fmt.Printf("  topics:  %d created, %d updated, %d skipped\n", report.TopicsCreated, report.TopicsUpdated, report.TopicsSkipped)
		return nil
	})
}

type BackupDeleteCmd struct {
	ID string `arg:"" help:"Backup id."`
}

func (cmd *BackupDeleteCmd) Run(c *Context) error {
	return c.withBackup(func(ctx context.Context, svc *backup.Service) error {
		if err := svc.DeleteSession(ctx, cmd.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted backup %s\n", cmd.ID)
		return nil
	})
}

// BackupSetDSNCmd stores the backup connection string in the OS keyring.
type BackupSetDSNCmd struct {
	DSN    string `arg:"" optional:"" help:"PostgreSQL connection string."`
	Delete bool   `help:"Remove the stored connection string."`
}

func (cmd *BackupSetDSNCmd) Run(c *Context) error {
	if cmd.Delete {
		if err := keyring.DeleteBackupDSN(); err != nil {
			return err
		}
		fmt.Println("Backup connection string removed from keyring")
		return nil
	}
	if err := keyring.SetBackupDSN(cmd.DSN); err != nil {
		return err
	}
	fmt.Printf("Backup connection string stored in keyring: %s\n", keyring.MaskDSN(cmd.DSN))
	return nil
}
