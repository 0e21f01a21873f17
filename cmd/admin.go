package cmd

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"aegis/bootstrap"
	"aegis/config"
	"aegis/storage"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

var noColor bool

// adminEnv bundles the storage handles the admin subcommands operate on.
type adminEnv struct {
	cfg    *config.Config
	sqlite *storage.SQLite
	users  *storage.SQLiteUserStorage
	roles  *storage.SQLiteRoleStorage
	perms  *storage.SQLitePermissionStorage
	logger *zap.SugaredLogger
}

func openAdminEnv() (*adminEnv, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := zap.NewNop().Sugar()
	sqlite, err := storage.NewSQLite(cfg.SQLite.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &adminEnv{
		cfg:    cfg,
		sqlite: sqlite,
		users:  storage.NewSQLiteUserStorage(sqlite, logger),
		roles:  storage.NewSQLiteRoleStorage(sqlite, logger),
		perms:  storage.NewSQLitePermissionStorage(sqlite, logger),
		logger: logger,
	}, nil
}

func (e *adminEnv) close() {
	_ = e.sqlite.Close()
}

// NewAdminCmd creates the root admin command for operator tasks that
// bypass the HTTP API.
func NewAdminCmd() *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative operations on the local database",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	adminCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	adminCmd.AddCommand(newSeedCmd())
	adminCmd.AddCommand(newCreateUserCmd())
	adminCmd.AddCommand(newGrantCmd())
	adminCmd.AddCommand(newListUsersCmd())
	adminCmd.AddCommand(newListRolesCmd())
	return adminCmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the permission catalogue and built-in roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openAdminEnv()
			if err != nil {
				return err
			}
			defer env.close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := bootstrap.SeedRBAC(ctx, env.perms, env.roles, env.logger); err != nil {
				return fmt.Errorf("seeding failed: %w", err)
			}
			color.Green("Seeded %d permissions and %d built-in roles",
				len(storage.DefaultPermissions()), len(storage.DefaultRolePermissions()))
			return nil
		},
	}
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

func newCreateUserCmd() *cobra.Command {
	var roleName string

	cmd := &cobra.Command{
		Use:   "create-user <username>",
		Short: "Create a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openAdminEnv()
			if err != nil {
				return err
			}
			defer env.close()

			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			if len(password) < 12 {
				return fmt.Errorf("password must be at least 12 characters")
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), env.cfg.Auth.BcryptCost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			user := &storage.User{Username: args[0], Password: string(hash), Active: true}
			if err := env.users.CreateUser(ctx, user); err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}

			if roleName != "" {
				role, err := env.roles.GetRoleByName(ctx, roleName)
				if err != nil {
					return fmt.Errorf("user created but role %q not found: %w", roleName, err)
				}
				if _, err := env.users.AssignRole(ctx, user.ID, role.ID); err != nil {
					return fmt.Errorf("user created but role assignment failed: %w", err)
				}
			}

			color.Green("Created user %s (id=%d)", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&roleName, "role", storage.RoleViewer, "Role to assign to the new user")
	return cmd
}

func newGrantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant <username> <role>",
		Short: "Assign a role to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openAdminEnv()
			if err != nil {
				return err
			}
			defer env.close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			user, err := env.users.GetUserByUsername(ctx, args[0])
			if err != nil {
				return fmt.Errorf("user %q: %w", args[0], err)
			}
			role, err := env.roles.GetRoleByName(ctx, args[1])
			if err != nil {
				return fmt.Errorf("role %q: %w", args[1], err)
			}

			assigned, err := env.users.AssignRole(ctx, user.ID, role.ID)
			if err != nil {
				return fmt.Errorf("failed to assign role: %w", err)
			}
			if assigned {
				color.Green("Assigned role %s to %s", role.Name, user.Username)
			} else {
				color.Yellow("User %s already holds role %s", user.Username, role.Name)
			}
			return nil
		},
	}
}

func newListUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-users",
		Short: "List user accounts and their roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openAdminEnv()
			if err != nil {
				return err
			}
			defer env.close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			users, err := env.users.ListUsers(ctx)
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}
			for _, user := range users {
				roles, err := env.users.GetUserRoles(ctx, user.ID)
				if err != nil {
					return fmt.Errorf("failed to load roles for %s: %w", user.Username, err)
				}
				names := make([]string, 0, len(roles))
				for _, role := range roles {
					names = append(names, role.Name)
				}
				state := color.GreenString("active")
				if !user.Active {
					state = color.RedString("inactive")
				}
				fmt.Printf("%-6d %-24s %-10s %v\n", user.ID, user.Username, state, names)
			}
			return nil
		},
	}
}

func newListRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-roles",
		Short: "List roles and their permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openAdminEnv()
			if err != nil {
				return err
			}
			defer env.close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			roles, err := env.roles.ListRoles(ctx)
			if err != nil {
				return fmt.Errorf("failed to list roles: %w", err)
			}
			for _, role := range roles {
				header := role.Name
				if storage.IsBuiltinRole(role.Name) {
					header = color.CyanString(role.Name) + " (built-in)"
				}
				fmt.Printf("%s (id=%d)\n", header, role.ID)
				for _, perm := range role.Permissions {
					fmt.Printf("  - %s\n", perm.Name)
				}
			}
			return nil
		},
	}
}
