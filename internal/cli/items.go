package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agusx1211/mailflow/internal/admin"
)

var itemsCmd = &cobra.Command{
	Use:     "items",
	Aliases: []string{"item"},
	Short:   "Manage your items",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var itemsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List items",
	Args:    cobra.NoArgs,
	RunE:    runItemsList,
}

var itemsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsShow,
}

var itemsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an item",
	Args:  cobra.NoArgs,
	RunE:  runItemsCreate,
}

var itemsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update an item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsUpdate,
}

var itemsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an item",
	Args:    cobra.ExactArgs(1),
	RunE:    runItemsDelete,
}

func init() {
	itemsListCmd.Flags().Int("page", 1, "Page number")

	itemsCreateCmd.Flags().String("title", "", "Title (required)")
	itemsCreateCmd.Flags().String("description", "", "Description")

	itemsUpdateCmd.Flags().String("title", "", "New title")
	itemsUpdateCmd.Flags().String("description", "", "New description")

	itemsCmd.AddCommand(itemsListCmd, itemsShowCmd, itemsCreateCmd, itemsUpdateCmd, itemsDeleteCmd)
	rootCmd.AddCommand(itemsCmd)
}

func runItemsList(cmd *cobra.Command, args []string) error {
	app, err := loggedInApp()
	if err != nil {
		return err
	}
	n, _ := cmd.Flags().GetInt("page")
	page, err := app.items().List(cmd.Context(), n)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(page.Rows))
	for _, it := range page.Rows {
		rows = append(rows, []string{
			it.ID,
			truncate(it.Title, 40),
			truncate(firstLine(it.Description), 50),
		})
	}
	out := cmd.OutOrStdout()
	printTable(out, []string{"ID", "TITLE", "DESCRIPTION"}, rows)
	printPager(out, page.Number, page.Count, len(page.Rows))
	return nil
}

func runItemsShow(cmd *cobra.Command, args []string) error {
	app, err := loggedInApp()
	if err != nil {
		return err
	}
	it, err := app.items().Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printHeader(out, "Item "+it.ID)
	printField(out, "Title", it.Title)
	printField(out, "Owner", it.OwnerID)
	if it.Description != "" {
		fmt.Fprintf(out, "\n%s\n", it.Description)
	}
	return nil
}

func runItemsCreate(cmd *cobra.Command, args []string) error {
	app, err := loggedInApp()
	if err != nil {
		return err
	}
	f := admin.ItemForm{}
	f.Title, _ = cmd.Flags().GetString("title")
	f.Description, _ = cmd.Flags().GetString("description")

	it, err := app.items().Create(cmd.Context(), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Item %s created (id %s)\n", green("✓"), bold(it.Title), it.ID)
	return nil
}

func runItemsUpdate(cmd *cobra.Command, args []string) error {
	app, err := loggedInApp()
	if err != nil {
		return err
	}
	id := args[0]
	cur, err := app.items().Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	f := admin.ItemForm{Title: cur.Title, Description: cur.Description}
	if cmd.Flags().Changed("title") {
		f.Title, _ = cmd.Flags().GetString("title")
	}
	if cmd.Flags().Changed("description") {
		f.Description, _ = cmd.Flags().GetString("description")
	}

	it, err := app.items().Update(cmd.Context(), id, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Item %s updated\n", green("✓"), bold(it.Title))
	return nil
}

func runItemsDelete(cmd *cobra.Command, args []string) error {
	app, err := loggedInApp()
	if err != nil {
		return err
	}
	if err := app.items().Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Item %s deleted\n", green("✓"), args[0])
	return nil
}
