package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"prayernote/internal/models"
)

// findPerson accepts a numeric id or an exact name.
func (c *Context) findPerson(ctx context.Context, ref string) (*models.Person, error) {
	if id, err := strconv.ParseInt(strings.TrimPrefix(ref, "#"), 10, 64); err == nil {
		p, err := c.DB.GetPerson(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("person %d: %w", id, err)
		}
		return p, nil
	}
	p, err := c.DB.FindPersonByName(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("person %q: %w", ref, err)
	}
	return p, nil
}

func formatDays(days models.WeekdaySet) string {
	if len(days) == 0 {
		return "no days"
	}
	return days.String()
}

func printPersons(persons []models.Person) {
	if len(persons) == 0 {
		fmt.Println("No persons found")
		return
	}
	fmt.Println("Persons:")
	for _, p := range persons {
		fmt.Printf("  #%d %s (%s, priority %d)\n", p.ID, p.Name, formatDays(p.Days), p.Priority)
		if p.Memo != "" {
			fmt.Printf("      %s\n", p.Memo)
		}
	}
}

type PersonAddCmd struct {
	Name     string `arg:"" help:"Name of the person."`
	Days     string `help:"Comma-separated days, e.g. mon,thu or all." short:"d"`
	Memo     string `help:"Free-form note." short:"m"`
	Priority int    `help:"Sort priority, higher first." short:"p"`
}

func (cmd *PersonAddCmd) Run(c *Context) error {
	days, err := models.ParseWeekdaySet(cmd.Days)
	if err != nil {
		return err
	}
	p := &models.Person{
		Name:      strings.TrimSpace(cmd.Name),
		Memo:      cmd.Memo,
		Days:      days,
		Priority:  cmd.Priority,
		CreatedAt: c.Clock.Now(),
	}
	if err := c.DB.InsertPerson(context.Background(), p); err != nil {
		return err
	}
	fmt.Printf("Added person #%d %s (%s)\n", p.ID, p.Name, formatDays(p.Days))
	return nil
}

type PersonListCmd struct {
	Day string `help:"Only persons assigned to this day." short:"d"`
}

func (cmd *PersonListCmd) Run(c *Context) error {
	ctx := context.Background()
	if cmd.Day != "" {
		day, err := models.ParseWeekday(cmd.Day)
		if err != nil {
			return err
		}
		persons, err := c.DB.PersonsByDay(ctx, day)
		if err != nil {
			return fmt.Errorf("failed to list persons: %w", err)
		}
		printPersons(persons)
		return nil
	}
	persons, err := c.DB.ListPersons(ctx)
	if err != nil {
		return fmt.Errorf("failed to list persons: %w", err)
	}
	printPersons(persons)
	return nil
}

type PersonSearchCmd struct {
	Query string `arg:"" help:"Case-sensitive part of the name."`
}

func (cmd *PersonSearchCmd) Run(c *Context) error {
	persons, err := c.DB.SearchPersons(context.Background(), cmd.Query)
	if err != nil {
		return fmt.Errorf("failed to search persons: %w", err)
	}
	printPersons(persons)
	return nil
}

type PersonEditCmd struct {
	Person   string  `arg:"" help:"Id or exact name."`
	Name     *string `help:"New name."`
	Days     *string `help:"New comma-separated days; empty clears." short:"d"`
	Memo     *string `help:"New memo." short:"m"`
	Priority *int    `help:"New priority." short:"p"`
}

func (cmd *PersonEditCmd) Run(c *Context) error {
	ctx := context.Background()
	p, err := c.findPerson(ctx, cmd.Person)
	if err != nil {
		return err
	}
	if cmd.Name != nil {
		p.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.Days != nil {
		if p.Days, err = models.ParseWeekdaySet(*cmd.Days); err != nil {
			return err
		}
	}
	if cmd.Memo != nil {
		p.Memo = *cmd.Memo
	}
	if cmd.Priority != nil {
		p.Priority = *cmd.Priority
	}
	if err := c.DB.UpdatePerson(ctx, p); err != nil {
		return err
	}
	fmt.Printf("Updated person #%d %s (%s)\n", p.ID, p.Name, formatDays(p.Days))
	return nil
}

type PersonDeleteCmd struct {
	Person string `arg:"" help:"Id or exact name."`
}

func (cmd *PersonDeleteCmd) Run(c *Context) error {
	ctx := context.Background()
	p, err := c.findPerson(ctx, cmd.Person)
	if err != nil {
		return err
	}
	if err := c.DB.DeletePerson(ctx, p.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted person #%d %s with all topics and history\n", p.ID, p.Name)
	return nil
}
