package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// ImportCmd returns the import command
func ImportCmd() *cobra.Command {
	var allergens bool

	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import a converter JSON file",
		Long: `Import the JSON produced by the Excel converters: either a bare array of
{name, category, nutrition|allergens} rows or {categories, items, metadata}.
Rows already present with the same name and payload are merged, not duplicated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			cat, err := openCatalog()
			if err != nil {
				return err
			}
			run := cat.Importer.ImportNutrition
			if allergens {
				run = cat.Importer.ImportAllergens
			}
			res, err := run(context.Background(), raw)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s imported %d rows\n", okLabel, res.Rows)
			fmt.Fprintf(out, "  categories created:  %d\n", res.CategoriesCreated)
			fmt.Fprintf(out, "  items created:       %d\n", res.ItemsCreated)
			fmt.Fprintf(out, "  assignments created: %d\n", res.AssignmentsCreated)
			fmt.Fprintf(out, "  duplicates merged:   %d\n", res.DuplicatesMerged)
			fmt.Fprintf(out, "  batches committed:   %d\n", res.BatchesCommitted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&allergens, "allergens", false, "import allergen items instead of nutrition items")
	return cmd
}

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Move legacy flat items to base items plus assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := openCatalog()
			if err != nil {
				return err
			}
			res, err := cat.Migrator.MigrateLegacy(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s migrated %d legacy items into %d base items (%d merged, %d assignments, %d batches)\n",
				okLabel, res.LegacyRead, res.BaseItemsCreated, res.DuplicatesMerged, res.AssignmentsCreated, res.BatchesCommitted)
			return nil
		},
	}
}

// ReconcileCmd returns the reconcile command
func ReconcileCmd() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare category item counts with a fresh tally",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := openCatalog()
			if err != nil {
				return err
			}
			report, err := cat.Reconciler.Reconcile(context.Background(), apply)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(report.Drift) == 0 {
				fmt.Fprintf(out, "%s %d categories checked, no drift\n", okLabel, report.Checked)
				return nil
			}
			for _, d := range report.Drift {
				fmt.Fprintf(out, "%s %-20s %-30s cached=%d actual=%d\n", warnLabel, d.Table, d.Name, d.Cached, d.Actual)
			}
			if report.Applied {
				fmt.Fprintf(out, "%s corrected %d categories\n", okLabel, len(report.Drift))
			} else {
				fmt.Fprintln(out, "run again with --apply to correct the counts")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "write the corrected counts")
	return cmd
}

// APIKeyCmd returns the apikey command
func APIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
	}

	var name string
	var ttl time.Duration
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue a new API key; the key is shown only once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := openCatalog()
			if err != nil {
				return err
			}
			plain, key, err := cat.Access.IssueAPIKey(context.Background(), name, ttl)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s API key %q created\n", okLabel, key.Name)
			fmt.Fprintf(out, "  key: %s\n", color.New(color.Bold).Sprint(plain))
			if key.ExpiresAt != nil {
				fmt.Fprintf(out, "  expires: %s\n", key.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "owner of the key")
	create.Flags().DurationVar(&ttl, "ttl", 0, "lifetime, e.g. 720h; 0 never expires")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	return cmd
}

// UserCmd returns the user command
func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage stored roles of identity-provider users",
	}

	var uid, email, role string
	grant := &cobra.Command{
		Use:   "grant",
		Short: "Grant a role (admin or editor) to a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := openCatalog()
			if err != nil {
				return err
			}
			u, err := cat.Access.GrantRole(context.Background(), uid, email, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s) is now %s\n", okLabel, u.UID, u.Email, u.Role)
			return nil
		},
	}
	grant.Flags().StringVar(&uid, "uid", "", "identity provider subject")
	grant.Flags().StringVar(&email, "email", "", "user email")
	grant.Flags().StringVar(&role, "role", "editor", "admin | editor")
	_ = grant.MarkFlagRequired("uid")

	cmd.AddCommand(grant)
	return cmd
}
