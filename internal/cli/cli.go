// Package cli implements marketctl, the operator tool for migrations,
// fixtures and the notification outbox.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/config"
	"github.com/Windi-Fikriyansyah/localserve/internal/db"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/realtime"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/notification"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	deadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Env is what every command needs once the database is open.
type Env struct {
	DB     *gorm.DB
	Config config.Config
	Pusher realtime.Pusher
}

// Opener prepares an Env. Commands call it lazily so --help works offline.
type Opener func(ctx context.Context) (*Env, error)

// BuildCLI returns the marketctl root command wired to the real environment.
func BuildCLI() *cobra.Command {
	var envFile string
	root := newRoot(func(ctx context.Context) (*Env, error) {
		_ = godotenv.Load(envFile)
		return openEnv(ctx)
	})
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load")
	return root
}

func newRoot(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "marketctl",
		Short:         "Operate the local services marketplace",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(buildMigrateCommand(open))
	root.AddCommand(buildSeedCommand(open))
	root.AddCommand(buildOutboxCommand(open))
	return root
}

func openEnv(ctx context.Context) (env *Env, err error) {
	defer func() {
		// config.Load panics on missing keys
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	env = &Env{DB: gdb, Config: cfg}
	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if rdb.Ping(pingCtx).Err() == nil {
		// publish only: API instances relay to their sockets
		env.Pusher = realtime.NewBroker(rdb, realtime.NewHub(nil))
	}
	return env, nil
}

func buildMigrateCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update every table",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := open(cmd.Context())
			if err != nil {
				return err
			}
			if err := db.Migrate(env.DB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("migrations applied"))
			return nil
		},
	}
}

func buildSeedCommand(open Opener) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users and jobs from a YAML fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			env, err := open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := Seed(cmd.Context(), env.DB, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d users created, %d skipped, %d jobs created\n",
				okStyle.Render("seeded:"), res.UsersCreated, res.UsersSkipped, res.JobsCreated)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func buildOutboxCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and drive the notification outbox",
	}

	dispatcher := func(env *Env) *notification.Dispatcher {
		svc := notification.NewNotificationService(env.DB, env.Pusher)
		return notification.NewDispatcher(env.DB, svc, nil, env.Config.DispatchInterval(), env.Config.DispatchMaxAttempts)
	}

	var status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List outbox events",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := open(cmd.Context())
			if err != nil {
				return err
			}
			events, err := dispatcher(env).Events(cmd.Context(), models.OutboxStatus(status), limit)
			if err != nil {
				return err
			}
			printEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status: pending, delivered, dead")
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows")

	dispatch := &cobra.Command{
		Use:   "dispatch",
		Short: "Run one delivery pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := open(cmd.Context())
			if err != nil {
				return err
			}
			n, err := dispatcher(env).DispatchOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", okStyle.Render("delivered:"), n)
			return nil
		},
	}

	retry := &cobra.Command{
		Use:   "retry <id>",
		Short: "Move a dead event back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			env, err := open(cmd.Context())
			if err != nil {
				return err
			}
			if err := dispatcher(env).Retry(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Render("requeued:"), id)
			return nil
		},
	}

	cmd.AddCommand(list, dispatch, retry)
	return cmd
}

func printEvents(w io.Writer, events []models.OutboxEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "no outbox events")
		return
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Outbox (%d)", len(events))))
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-36s  %-10s  %-8s  %-20s  %s", "ID", "STATUS", "ATTEMPTS", "NEXT ATTEMPT", "LAST ERROR")))
	for _, ev := range events {
		fmt.Fprintf(w, "%-36s  %s  %-8d  %-20s  %s\n",
			ev.ID,
			statusStyle(ev.Status).Render(fmt.Sprintf("%-10s", ev.Status)),
			ev.Attempts,
			ev.NextAttemptAt.Format("2006-01-02 15:04:05"),
			ev.LastError,
		)
	}
}

func statusStyle(s models.OutboxStatus) lipgloss.Style {
	switch s {
	case models.OutboxDelivered:
		return okStyle
	case models.OutboxDead:
		return deadStyle
	default:
		return warnStyle
	}
}
