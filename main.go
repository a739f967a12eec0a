package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"library-service/library"
)

var rootCmd = &cobra.Command{
	Use:   "librarian",
	Short: "In-memory library record service",
	Long: `librarian keeps members, books, a borrow/return ledger and per-book
reservation queues in memory. Nothing is persisted; every start is a clean slate.

Flags can also be set as environment variables LIBRARY_<FLAG>
(e.g. LIBRARY_LOAN_DAYS=7), or in a .env / .env.local file.`,
	SilenceUsage:      true,
	PersistentPreRunE: bindConfig,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("today", "", "freeze the clock at this day (YYYY-MM-DD); empty uses the wall clock")
	flags.Int("loan-days", 14, "days between a borrow and its due date")
	flags.Int("reservation-limit", library.DefaultReservationLimit, "reservations one member may hold across all books")

	rootCmd.AddCommand(serveCmd, consoleCmd)
}

// initConfig loads env files and maps LIBRARY_* variables onto flags.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("library")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func bindConfig(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

// newLogger builds the process logger from the log-level setting.
func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log-level %q: %w", viper.GetString("log-level"), err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// newLibrary builds a LibraryManager from the loaded configuration.
func newLibrary(log *slog.Logger) (*library.LibraryManager, error) {
	opts := []library.Option{
		library.WithLogger(log),
		library.WithReservationLimit(viper.GetInt("reservation-limit")),
	}

	loanDays := viper.GetInt("loan-days")
	if loanDays < 1 {
		return nil, fmt.Errorf("invalid loan-days %d: must be at least 1", loanDays)
	}
	opts = append(opts, library.WithLoanPeriod(time.Duration(loanDays)*24*time.Hour))

	if today := viper.GetString("today"); today != "" {
		at, err := library.ParseDay(today)
		if err != nil {
			return nil, fmt.Errorf("invalid today: %w", err)
		}
		opts = append(opts, library.WithClock(library.FixedClock{At: at}))
		log.Info("clock frozen", "today", today)
	}

	return library.NewLibraryManager(opts...)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
