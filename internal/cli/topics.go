package cli

import (
	"context"
	"fmt"

	"prayernote/internal/models"
)

type TopicAddCmd struct {
	Person string `arg:"" help:"Id or exact name of the person."`
	Title  string `arg:"" help:"The prayer request."`
}

func (cmd *TopicAddCmd) Run(c *Context) error {
	ctx := context.Background()
	p, err := c.findPerson(ctx, cmd.Person)
	if err != nil {
		return err
	}
	t := &models.Topic{PersonID: p.ID, Title: cmd.Title, CreatedAt: c.Clock.Now()}
	if err := c.DB.AddTopic(ctx, t); err != nil {
		return err
	}
	fmt.Printf("Added topic #%d for %s: %s\n", t.ID, p.Name, t.Title)
	return nil
}

type TopicListCmd struct {
	Person   string `arg:"" optional:"" help:"Id or exact name; omit for answered topics of everyone."`
	Answered bool   `help:"List answered topics of everyone."`
}

func (cmd *TopicListCmd) Run(c *Context) error {
	ctx := context.Background()
	if cmd.Person == "" || cmd.Answered {
		topics, err := c.DB.AnsweredTopics(ctx)
		if err != nil {
			return fmt.Errorf("failed to list answered topics: %w", err)
		}
		if len(topics) == 0 {
			fmt.Println("No answered topics")
			return nil
		}
		fmt.Println("Answered:")
		for _, t := range topics {
			at := ""
			if t.AnsweredAt != nil {
				at = t.AnsweredAt.In(c.Config.Location).Format("2006-01-02")
			}
			fmt.Printf("  #%d %s: %s (%s)\n", t.ID, t.PersonName, t.Title, at)
		}
		return nil
	}

	p, err := c.findPerson(ctx, cmd.Person)
	if err != nil {
		return err
	}
	topics, err := c.DB.TopicsByPerson(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to list topics: %w", err)
	}
	if len(topics) == 0 {
		fmt.Printf("No topics for %s\n", p.Name)
		return nil
	}
	fmt.Printf("Topics of %s:\n", p.Name)
	for _, t := range topics {
		fmt.Printf("  #%d [%s] %s (priority %d)\n", t.ID, t.Status, t.Title, t.Priority)
	}
	return nil
}

type TopicAnswerCmd struct {
	ID int64 `arg:"" help:"Topic id."`
}

func (cmd *TopicAnswerCmd) Run(c *Context) error {
	t, err := c.DB.MarkAnswered(context.Background(), cmd.ID, c.Clock.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Marked as answered: %s\n", t.Title)
	return nil
}

type TopicRestoreCmd struct {
	ID int64 `arg:"" help:"Topic id."`
}

func (cmd *TopicRestoreCmd) Run(c *Context) error {
	t, err := c.DB.RestoreTopic(context.Background(), cmd.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Back to active: %s\n", t.Title)
	return nil
}

type TopicDeleteCmd struct {
	ID int64 `arg:"" help:"Topic id."`
}

func (cmd *TopicDeleteCmd) Run(c *Context) error {
	if err := c.DB.DeleteTopic(context.Background(), cmd.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted topic #%d\n", cmd.ID)
	return nil
}
