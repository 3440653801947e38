package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LulfLoot/ThunderDockerman/internal/installer"
	"github.com/LulfLoot/ThunderDockerman/internal/output"
	"github.com/LulfLoot/ThunderDockerman/internal/thunderstore"
)

var (
	searchSort       string
	searchCategories []string
	searchLimit      int
	searchRefresh    bool
	installDeps      bool
	historyLimit     int

	communitiesCmd = &cobra.Command{
		Use:   "communities",
		Short: "List the configured Thunderstore communities",
		Args:  cobra.NoArgs,
		RunE:  runCommunities,
	}

	searchCmd = &cobra.Command{
		Use:   "search <community> [query]",
		Short: "Search a community's packages",
		Long: `Search packages by name, full name or description.

Sort keys: last-updated (default), downloads, rating, name, newest.
Every --category given must be present on a package for it to match.`,
		Example: `  thunderdockerman search valheim jotunn
  thunderdockerman search valheim --category Libraries --sort downloads`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runSearch,
	}

	resolveCmd = &cobra.Command{
		Use:   "resolve <community> <package>",
		Short: "Show the install plan for a package and its dependencies",
		Args:  cobra.ExactArgs(2),
		RunE:  runResolve,
	}

	installCmd = &cobra.Command{
		Use:   "install <community> <package>",
		Short: "Install a mod",
		Long: `Install the newest version of a package into the mod directory.

With --deps the full dependency tree is resolved first and installed in
dependency order. A failed package does not stop the rest of the plan.`,
		Example: `  thunderdockerman install valheim ValheimModding-Jotunn --deps
  thunderdockerman install valheim denikson-BepInExPack_Valheim`,
		Args: cobra.ExactArgs(2),
		RunE: runInstall,
	}

	uninstallCmd = &cobra.Command{
		Use:   "uninstall <package>",
		Short: "Remove an installed mod",
		Args:  cobra.ExactArgs(1),
		RunE:  runUninstall,
	}

	installedCmd = &cobra.Command{
		Use:   "installed",
		Short: "List installed mods",
		Args:  cobra.NoArgs,
		RunE:  runInstalled,
	}

	historyCmd = &cobra.Command{
		Use:   "history [package]",
		Short: "Show install and uninstall history",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}
)

func init() {
	searchCmd.Flags().StringVar(&searchSort, "sort", thunderstore.SortLastUpdated, "sort key")
	searchCmd.Flags().StringSliceVar(&searchCategories, "category", nil, "required category (repeatable)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 25, "maximum rows to show (0 for all)")
	searchCmd.Flags().BoolVar(&searchRefresh, "refresh", false, "ignore the cached package index")

	installCmd.Flags().BoolVar(&installDeps, "deps", false, "install dependencies too")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum entries to show")
}

// withServices loads config and opens services for the duration of fn.
func withServices(cmd *cobra.Command, fn func(svc *services) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := openServices(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}

func runCommunities(cmd *cobra.Command, args []string) error {
	return withServices(cmd, func(svc *services) error {
		communities, err := svc.index.ListCommunities(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), output.RenderCommunities(communities))
		return nil
	})
}

func runSearch(cmd *cobra.Command, args []string) error {
	opts := thunderstore.SearchOptions{
		Sort:       searchSort,
		Categories: searchCategories,
	}
	if len(args) > 1 {
		opts.Query = args[1]
	}

	return withServices(cmd, func(svc *services) error {
		if searchRefresh {
			if err := svc.index.Refresh(args[0]); err != nil {
				return err
			}
		}
		packages, err := fetchWithSpinner(cmd, "Fetching package index", func(ctx context.Context) ([]thunderstore.Package, error) {
			return svc.index.Search(ctx, args[0], opts)
		})
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), output.RenderPackageTable(packages, searchLimit))
		return nil
	})
}

func runResolve(cmd *cobra.Command, args []string) error {
	return withServices(cmd, func(svc *services) error {
		fullName := svc.cfg.ResolveAlias(args[1])
		plan, err := svc.resolver.Resolve(cmd.Context(), args[0], fullName)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", fullName, err)
		}
		fmt.Fprint(cmd.OutOrStdout(), output.RenderPlanTable(plan))
		return nil
	})
}

func runInstall(cmd *cobra.Command, args []string) error {
	community := args[0]

	return withServices(cmd, func(svc *services) error {
		out := cmd.OutOrStdout()
		fullName := svc.cfg.ResolveAlias(args[1])

		var results []installer.Result
		if installDeps {
			plan, err := svc.resolver.Resolve(cmd.Context(), community, fullName)
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", fullName, err)
			}
			fmt.Fprint(out, output.RenderPlanTable(plan))
			fmt.Fprintln(out)

			progress := output.NewProgress(len(plan))
			progress.SetWriter(out)
			results = svc.installer.ApplyPlanWithProgress(cmd.Context(), plan, func(done, total int, r installer.Result) {
				progress.Step(done, r.FullName)
			})
			progress.Finish()
		} else {
			spinner := output.NewSpinner("Installing " + fullName)
			spinner.SetWriter(out)
			spinner.Start()
			var err error
			results, err = svc.installer.InstallSingle(cmd.Context(), community, fullName)
			spinner.Stop()
			if err != nil {
				return err
			}
		}

		fmt.Fprintln(out)
		fmt.Fprint(out, output.RenderResults(results))
		return failedResults(results)
	})
}

func runUninstall(cmd *cobra.Command, args []string) error {
	return withServices(cmd, func(svc *services) error {
		fullName := svc.cfg.ResolveAlias(args[0])
		result := svc.installer.Uninstall(cmd.Context(), fullName)
		if !result.Success {
			return fmt.Errorf("failed to uninstall %s: %s", fullName, result.Message)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", result.Message)
		return nil
	})
}

func runInstalled(cmd *cobra.Command, args []string) error {
	return withServices(cmd, func(svc *services) error {
		records, err := svc.installer.ListInstalled()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), output.RenderInstalledTable(records))
		return nil
	})
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withServices(cmd, func(svc *services) error {
		var fullName string
		if len(args) == 1 {
			fullName = svc.cfg.ResolveAlias(args[0])
		}
		events, err := svc.db.ListInstallEvents(fullName, historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), output.RenderHistoryTable(events))
		return nil
	})
}

func fetchWithSpinner(cmd *cobra.Command, msg string, fn func(ctx context.Context) ([]thunderstore.Package, error)) ([]thunderstore.Package, error) {
	spinner := output.NewSpinner(msg)
	spinner.SetWriter(cmd.ErrOrStderr())
	spinner.Start()
	defer spinner.Stop()
	return fn(cmd.Context())
}

// failedResults returns an error naming the packages that failed, if any.
func failedResults(results []installer.Result) error {
	var failed []string
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r.FullName)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d packages failed: %s", len(failed), len(results), strings.Join(failed, ", "))
}
