package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/autoact/pkg/knowledgebase"
	"github.com/entrhq/autoact/pkg/types"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// descriptionWidth is how much of a description the list table shows.
const descriptionWidth = 60

// ContextsCmd administers the knowledge base directly. A running
// instance picks up these edits through its store watcher.
type ContextsCmd struct {
	store knowledgebase.Store
}

// List prints every context in creation order.
func (c ContextsCmd) List(ctx context.Context) error {
	items, err := c.store.List(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		pterm.Info.Println("No contexts found")
		return nil
	}

	rows := pterm.TableData{{"ID", "Title", "Description"}}
	for _, item := range items {
		rows = append(rows, []string{item.ID, item.Title, summarize(item.Description, descriptionWidth)})
	}
	return printTable(rows)
}

// Get prints one context in full.
func (c ContextsCmd) Get(ctx context.Context, id string) error {
	item, err := c.store.Get(ctx, id)
	if err != nil {
		return err
	}
	return printItem(item)
}

// Add creates a context.
func (c ContextsCmd) Add(ctx context.Context, values types.ContextFormValues) error {
	item, err := c.store.Add(ctx, values)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Added context %s\n", item.ID)
	return printItem(item)
}

// UpdateContextInput holds the fields to change. Nil fields keep their
// current value.
type UpdateContextInput struct {
	ID          string
	Title       *string
	Description *string
}

// Update changes the given fields of a context.
func (c ContextsCmd) Update(ctx context.Context, in UpdateContextInput) error {
	if in.Title == nil && in.Description == nil {
		return fmt.Errorf("nothing to update: pass --title and/or --description")
	}

	item, err := c.store.Get(ctx, in.ID)
	if err != nil {
		return err
	}
	if in.Title != nil {
		item.Title = *in.Title
	}
	if in.Description != nil {
		item.Description = *in.Description
	}

	item, err = c.store.Update(ctx, item)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Updated context %s\n", item.ID)
	return printItem(item)
}

var contextsCmd = &cobra.Command{
	Use:     "contexts",
	Aliases: []string{"context", "kb"},
	Short:   "Manage knowledge base contexts",
}

var contextsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contexts",
	Args:  cobra.NoArgs,
	RunE:  runContextsList,
}

var contextsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a context",
	Args:  cobra.ExactArgs(1),
	RunE:  runContextsGet,
}

var contextsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a context",
	Args:  cobra.NoArgs,
	RunE:  runContextsAdd,
}

var contextsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a context",
	Args:  cobra.ExactArgs(1),
	RunE:  runContextsUpdate,
}

func init() {
	contextsCmd.AddCommand(contextsListCmd)
	contextsCmd.AddCommand(contextsGetCmd)
	contextsCmd.AddCommand(contextsAddCmd)
	contextsCmd.AddCommand(contextsUpdateCmd)

	contextsAddCmd.Flags().String("title", "", "Context title (required)")
	contextsAddCmd.Flags().String("description", "", "Context description (required)")
	_ = contextsAddCmd.MarkFlagRequired("title")
	_ = contextsAddCmd.MarkFlagRequired("description")

	contextsUpdateCmd.Flags().String("title", "", "New title")
	contextsUpdateCmd.Flags().String("description", "", "New description")
}

// withContexts opens the configured store for the duration of fn.
func withContexts(fn func(ContextsCmd) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := cfg.KnowledgeBasePath()
	if err != nil {
		return err
	}
	store, err := knowledgebase.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ContextsCmd{store: store})
}

func runContextsList(cmd *cobra.Command, args []string) error {
	return withContexts(func(c ContextsCmd) error {
		return c.List(cmd.Context())
	})
}

func runContextsGet(cmd *cobra.Command, args []string) error {
	return withContexts(func(c ContextsCmd) error {
		return c.Get(cmd.Context(), args[0])
	})
}

func runContextsAdd(cmd *cobra.Command, args []string) error {
	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")

	return withContexts(func(c ContextsCmd) error {
		return c.Add(cmd.Context(), types.ContextFormValues{Title: title, Description: description})
	})
}

func runContextsUpdate(cmd *cobra.Command, args []string) error {
	in := UpdateContextInput{ID: args[0]}
	if cmd.Flags().Changed("title") {
		title, _ := cmd.Flags().GetString("title")
		in.Title = &title
	}
	if cmd.Flags().Changed("description") {
		description, _ := cmd.Flags().GetString("description")
		in.Description = &description
	}

	return withContexts(func(c ContextsCmd) error {
		return c.Update(cmd.Context(), in)
	})
}

func printItem(item types.ContextItem) error {
	rows := pterm.TableData{{"Property", "Value"}}
	rows = append(rows, []string{"ID", item.ID})
	rows = append(rows, []string{"Title", item.Title})
	rows = append(rows, []string{"Description", item.Description})
	return printTable(rows)
}

func printTable(rows pterm.TableData) error {
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// summarize collapses whitespace and cuts s to width runes.
func summarize(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}
