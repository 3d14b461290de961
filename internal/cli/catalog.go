// Package cli implements catalogctl, the operator tool for imports,
// migrations, count reconciliation and credentials.
package cli

import (
	"fmt"

	"github.com/duregger/cafe-rio-nutrition/internal/config"
	"github.com/duregger/cafe-rio-nutrition/internal/infra"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"
	"github.com/duregger/cafe-rio-nutrition/internal/repository/memstore"
	"github.com/duregger/cafe-rio-nutrition/internal/service"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// openCatalog builds the services from the environment. Tests replace it.
var openCatalog = func() (*service.Catalog, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.UsesMemoryStore() {
		return service.NewCatalog(memstore.New().Repositories(), cfg, nil, nil), nil
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return service.NewCatalog(repository.NewRepositories(db), cfg, nil, nil), nil
}

var (
	okLabel   = color.New(color.FgGreen).Sprint("OK")
	warnLabel = color.New(color.FgYellow).Sprint("DRIFT")
)

// RootCmd assembles every subcommand.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Operate the nutrition catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(ImportCmd())
	root.AddCommand(MigrateCmd())
	root.AddCommand(ReconcileCmd())
	root.AddCommand(APIKeyCmd())
	root.AddCommand(UserCmd())
	return root
}
