package authctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/config"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/di"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/observability"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/repository"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/service"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type options struct {
	ci      bool
	migrate bool
	load    func() (*config.Config, error)
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{load: config.Load})
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Run and administer the authentication service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "plain machine-readable output")
	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newRolesCommand(opts),
		newSessionsCommand(opts),
		newTokensCommand(opts),
	)
	return cmd
}

func newServeCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, lp, err := observability.InitLogging(ctx, cfg, os.Stderr)
			if err != nil {
				return err
			}
			if opts.migrate {
				if err := migrateDatabase(cfg); err != nil {
					return err
				}
			}
			a, cleanup, err := di.InitializeApp(ctx, cfg, logger, lp)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			defer cleanup()
			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&opts.migrate, "migrate", true, "apply schema migrations before serving")
	return cmd
}

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := migrateDatabase(cfg); err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), opts.ci, "migrate", []string{"driver=" + cfg.DatabaseDriver})
			return nil
		},
	}
}

func newRolesCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "roles", Short: "Manage roles and permissions"}
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Create the default roles with their permission matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuthService(cmd, opts, func(ctx context.Context, auth *service.AuthService) error {
				created, err := auth.Roles().InitializeDefaultRoles(ctx)
				if err != nil {
					return err
				}
				details := []string{fmt.Sprintf("created=%d", len(created))}
				for _, name := range created {
					details = append(details, "role "+name)
				}
				printResult(cmd.OutOrStdout(), opts.ci, "roles seed", details)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List roles and their actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuthService(cmd, opts, func(ctx context.Context, auth *service.AuthService) error {
				roles, err := auth.Roles().ListRoles(ctx)
				if err != nil {
					return err
				}
				details := make([]string, 0, len(roles))
				for _, role := range roles {
					details = append(details, formatRole(role))
				}
				printResult(cmd.OutOrStdout(), opts.ci, "roles list", details)
				return nil
			})
		},
	})
	return cmd
}

func newSessionsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "sessions", Short: "Session maintenance"}
	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuthService(cmd, opts, func(ctx context.Context, auth *service.AuthService) error {
				n, err := auth.CleanupExpiredSessions(ctx)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), opts.ci, "sessions cleanup", []string{fmt.Sprintf("deleted=%d", n)})
				return nil
			})
		},
	})
	return cmd
}

func newTokensCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "tokens", Short: "Token maintenance"}
	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuthService(cmd, opts, func(ctx context.Context, auth *service.AuthService) error {
				n, err := auth.CleanupExpiredTokens(ctx)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), opts.ci, "tokens cleanup", []string{fmt.Sprintf("deleted=%d", n)})
				return nil
			})
		},
	})
	return cmd
}

func withAuthService(cmd *cobra.Command, opts *options, fn func(context.Context, *service.AuthService) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg, cmd.ErrOrStderr())
	auth, cleanup, err := di.InitializeAuthService(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize auth service: %w", err)
	}
	defer cleanup()
	return fn(ctx, auth)
}

func migrateDatabase(cfg *config.Config) error {
	db, err := repository.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repository.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func formatRole(role domain.Role) string {
	actions := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		actions = append(actions, p.Action)
	}
	sort.Strings(actions)
	if len(actions) == 0 {
		return role.Name + " (no permissions)"
	}
	return role.Name + ": " + strings.Join(actions, ",")
}

func printResult(w io.Writer, ci bool, title string, details []string) {
	if ci {
		fmt.Fprintf(w, "OK %s\n", title)
		for _, d := range details {
			fmt.Fprintf(w, "  %s\n", d)
		}
		return
	}
	lines := []string{titleStyle.Render(title) + " " + okStyle.Render("ok")}
	for _, d := range details {
		lines = append(lines, mutedStyle.Render("  "+d))
	}
	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, lines...))
}
