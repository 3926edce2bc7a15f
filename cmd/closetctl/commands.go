package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/closet/internal/app"
	"github.com/closet/internal/comfort"
	"github.com/closet/internal/service"
)

// CLI is the closetctl command tree.
type CLI struct {
	Database string `help:"SQLite database path; overrides DATABASE_DRIVER and DATABASE_PATH." type:"path"`

	InitUser   InitUserCmd   `cmd:"" name:"init-user" help:"Create an account."`
	Token      TokenCmd      `cmd:"" help:"Print a bearer token for an account."`
	Garments   GarmentsCmd   `cmd:"" help:"List an account's garments."`
	Categories CategoriesCmd `cmd:"" help:"Show the effective category table."`
	Outfit     OutfitCmd     `cmd:"" help:"Register the outfit for a day."`
	Feedback   FeedbackCmd   `cmd:"" help:"Apply a comfort rating to a day's outfit."`
	Seed       SeedCmd       `cmd:"" help:"Create a demo account with sample garments."`
}

// Context is bound into every command's Run method.
type Context struct {
	Services app.Services
	Table    *comfort.Table
	Location *time.Location
	Out      io.Writer
}

func newContext(services app.Services, table *comfort.Table, loc *time.Location, out io.Writer) *Context {
	if table == nil {
		table = comfort.DefaultTable()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Context{Services: services, Table: table, Location: loc, Out: out}
}

func (c *Context) owner(email string) (string, error) {
	user, err := c.Services.Users.GetByEmail(context.Background(), email)
	if err != nil {
		return "", fmt.Errorf("look up %s: %w", email, err)
	}
	return user.UserID, nil
}

func (c *Context) day(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return comfort.Day(time.Now(), c.Location), nil
	}
	return comfort.ParseDay(raw, c.Location)
}

type InitUserCmd struct {
	Email    string `required:"" help:"Login email."`
	Password string `required:"" help:"Password, at least 8 characters."`
	Name     string `help:"Display name."`
}

func (cmd *InitUserCmd) Run(ctx *Context) error {
	user, err := ctx.Services.Users.Register(context.Background(), cmd.Email, cmd.Password, cmd.Name)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "created %s (owner %s)\n", user.Email, user.UserID)
	return nil
}

type TokenCmd struct {
	Email string `required:"" help:"Account email."`
}

func (cmd *TokenCmd) Run(ctx *Context) error {
	user, err := ctx.Services.Users.GetByEmail(context.Background(), cmd.Email)
	if err != nil {
		return err
	}
	token, expires, err := ctx.Services.Users.IssueToken(user)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, token)
	fmt.Fprintf(ctx.Out, "expires %s\n", expires.UTC().Format(time.RFC3339))
	return nil
}

type GarmentsCmd struct {
	Email    string `required:"" help:"Account email."`
	Category string `help:"Only this category."`
	Sort     string `help:"newest, category or temperature." default:"category" enum:"newest,category,temperature"`
}

func (cmd *GarmentsCmd) Run(ctx *Context) error {
	owner, err := ctx.owner(cmd.Email)
	if err != nil {
		return err
	}
	garments, err := ctx.Services.Garments.ListByOwner(context.Background(), owner, service.GarmentFilter{
		Category: cmd.Category,
		Sort:     cmd.Sort,
	})
	if err != nil {
		return err
	}
	if len(garments) == 0 {
		fmt.Fprintln(ctx.Out, "No garments found")
		return nil
	}
	for _, garment := range garments {
		fmt.Fprintf(ctx.Out, "%5d  %-10s %4d°C  %s\n", garment.ID, garment.Category, garment.ComfortTemperature, garment.Name)
	}
	return nil
}

type CategoriesCmd struct{}

func (cmd *CategoriesCmd) Run(ctx *Context) error {
	for rank, category := range ctx.Table.Order() {
		fmt.Fprintf(ctx.Out, "%d  %-10s weight %.2f\n", rank, category, ctx.Table.Weight(category))
	}
	fmt.Fprintf(ctx.Out, "default weight %.2f\n", ctx.Table.DefaultWeight())
	return nil
}

type OutfitCmd struct {
	Email string `required:"" help:"Account email."`
	Date  string `help:"Day (2006-01-02); defaults to today."`
	IDs   []uint `arg:"" name:"id" help:"Garment ids worn that day."`
}

func (cmd *OutfitCmd) Run(ctx *Context) error {
	owner, err := ctx.owner(cmd.Email)
	if err != nil {
		return err
	}
	day, err := ctx.day(cmd.Date)
	if err != nil {
		return err
	}
	session, err := ctx.Services.Outfits.Register(context.Background(), owner, day, cmd.IDs)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "outfit for %s: %v\n", session.OutfitDate.Format(comfort.DayLayout), session.GarmentIDs())
	return nil
}

type FeedbackCmd struct {
	Email  string `required:"" help:"Account email."`
	Date   string `help:"Day (2006-01-02); defaults to today."`
	Rating int    `arg:"" help:"1 too cold .. 3 fine .. 5 too hot."`
}

func (cmd *FeedbackCmd) Run(ctx *Context) error {
	owner, err := ctx.owner(cmd.Email)
	if err != nil {
		return err
	}
	day, err := ctx.day(cmd.Date)
	if err != nil {
		return err
	}
	result, err := ctx.Services.Feedback.Apply(context.Background(), owner, day, cmd.Rating)
	if result != nil {
		for _, adj := range result.Updated {
			fmt.Fprintf(ctx.Out, "garment %d: %d -> %d\n", adj.GarmentID, adj.Before, adj.After)
		}
		for _, id := range result.Skipped {
			fmt.Fprintf(ctx.Out, "garment %d: skipped\n", id)
		}
		for _, failure := range result.Failed {
			fmt.Fprintf(ctx.Out, "garment %d: failed: %v\n", failure.GarmentID, failure.Err)
		}
	}
	return err
}
