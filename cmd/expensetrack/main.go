package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"expensetrack/internal/backend"
	"expensetrack/internal/backup"
	"expensetrack/internal/config"
	"expensetrack/internal/core"
	"expensetrack/internal/log"
	"expensetrack/internal/portability"
	"expensetrack/internal/storage"
	"expensetrack/internal/timefmt"
)

const usage = `Usage: expensetrack <command> [flags]

Commands:
  add      -category <name> -amount <value> [-description <text>]
  list     [-category <name>]
  total
  stats
  delete   -id <id> | -category <name> -amount <value> [-description <text>]
  update   -id <id> -category <name> -amount <value> [-description <text>]
  clear
  export   -file <path.csv|path.json>
  import   -file <path.csv|path.json>
  backup   <create|list|restore|delete|cleanup|auto|info> [flags]

Backend selection and file locations come from the environment
(DATA_BACKEND, EXPENSES_FILE, EXPENSES_DB, BACKUP_DIR), optionally via .env.`

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), Component: "cli"})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(context.Background(), cfg, logger, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger, command string, args []string) error {
	switch command {
	case "add":
		return runAdd(ctx, cfg, logger, args)
	case "list":
		return runList(ctx, cfg, logger, args)
	case "total":
		return runTotal(ctx, cfg, logger)
	case "stats":
		return runStats(ctx, cfg)
	case "delete":
		return runDelete(ctx, cfg, logger, args)
	case "update":
		return runUpdate(ctx, cfg, logger, args)
	case "clear":
		return runClear(ctx, cfg, logger)
	case "export":
		return runExport(ctx, cfg, logger, args)
	case "import":
		return runImport(ctx, cfg, logger, args)
	case "backup":
		return runBackup(ctx, cfg, logger, args)
	case "help", "-h", "--help":
		fmt.Println(usage)
		return nil
	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func openStore(cfg *config.Config, logger *log.Logger) (backend.Store, error) {
	result, err := backend.Open(backend.Config{
		Type:     backend.Type(cfg.DataBackend),
		FilePath: cfg.FilePath,
		DBPath:   cfg.DBPath,
	}, logger.WithComponent("backend").Logger)
	if err != nil {
		return nil, err
	}
	return result.Store, nil
}

// openSQLite is for the operations only the relational backend offers
// (identity update, aggregate statistics, category filtering).
func openSQLite(cfg *config.Config) (*storage.SQLiteStore, error) {
	if cfg.DataBackend != string(backend.SQLiteBackend) {
		return nil, fmt.Errorf("command requires the sqlite backend (DATA_BACKEND=sqlite)")
	}
	return storage.NewSQLiteStore(cfg.DBPath)
}

func runAdd(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	category := fs.String("category", "", "expense category")
	amountText := fs.String("amount", "", "expense amount")
	description := fs.String("description", "", "optional description")
	fs.Parse(args)

	amount, err := core.ParseAmount(*amountText)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	stored, err := store.Append(ctx, core.Record{
		Category:    *category,
		Amount:      amount,
		Description: *description,
	})
	if err != nil {
		return err
	}

	if stored.ID > 0 {
		fmt.Printf("Added expense #%d: %s %.2f\n", stored.ID, stored.Category, stored.Amount)
	} else {
		fmt.Printf("Added expense: %s %.2f\n", stored.Category, stored.Amount)
	}
	return nil
}

func runList(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	category := fs.String("category", "", "only this category")
	fs.Parse(args)

	var (
		records []core.Record
		err     error
	)
	if *category != "" {
		var store *storage.SQLiteStore
		if store, err = openSQLite(cfg); err == nil {
			records, err = store.ListByCategory(ctx, *category)
		}
	} else {
		var store backend.Store
		if store, err = openStore(cfg, logger); err == nil {
			records, err = store.List(ctx)
		}
	}
	if err != nil {
		return err
	}

	prefs := config.LoadPreferences(cfg.PreferencesPath)
	for _, r := range records {
		when := timefmt.Format(r.Timestamp, prefs)
		if r.ID > 0 {
			fmt.Printf("%6d  %-15s %10.2f  %-30s %s\n", r.ID, r.Category, r.Amount, r.Description, when)
		} else {
			fmt.Printf("        %-15s %10.2f  %-30s %s\n", r.Category, r.Amount, r.Description, when)
		}
	}
	fmt.Printf("%d expense(s)\n", len(records))
	return nil
}

func runTotal(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	total, err := store.Total(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Total spent: %.2f\n", total)
	return nil
}

func runStats(ctx context.Context, cfg *config.Config) error {
	store, err := openSQLite(cfg)
	if err != nil {
		return err
	}
	stats, err := store.Statistics(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Count:   %d\n", stats.Count)
	fmt.Printf("Total:   %.2f\n", stats.Total)
	fmt.Printf("Average: %.2f\n", stats.Average)
	fmt.Printf("Min:     %.2f\n", stats.Min)
	fmt.Printf("Max:     %.2f\n", stats.Max)
	if len(stats.ByCategory) > 0 {
		fmt.Println("By category:")
		for _, ct := range stats.ByCategory {
			fmt.Printf("  %-15s %10.2f\n", ct.Category, ct.Total)
		}
	}
	return nil
}

func runDelete(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.Int64("id", 0, "record id (sqlite backend)")
	category := fs.String("category", "", "category to match (file backend)")
	amountText := fs.String("amount", "", "amount to match (file backend)")
	description := fs.String("description", "", "description to match (file backend)")
	fs.Parse(args)

	probe := core.Record{ID: *id, Category: *category, Description: *description}
	if *amountText != "" {
		amount, err := core.ParseAmount(*amountText)
		if err != nil {
			return err
		}
		probe.Amount = amount
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	removed, err := store.Delete(ctx, probe)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Println("No matching expense found.")
		return nil
	}
	fmt.Println("Expense deleted.")
	return nil
}

func runUpdate(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	id := fs.Int64("id", 0, "record id")
	category := fs.String("category", "", "new category")
	amountText := fs.String("amount", "", "new amount")
	description := fs.String("description", "", "new description")
	fs.Parse(args)

	if *id <= 0 {
		return storage.ErrMissingID
	}
	amount, err := core.ParseAmount(*amountText)
	if err != nil {
		return err
	}

	store, err := openSQLite(cfg)
	if err != nil {
		return err
	}
	found, err := store.UpdateByID(ctx, *id, *category, amount, *description)
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("No expense with id %d.\n", *id)
		return nil
	}
	logger.Info("Updated expense", "id", *id)
	fmt.Println("Expense updated.")
	return nil
}

func runClear(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		return err
	}
	fmt.Println("All expenses cleared.")
	return nil
}

func runExport(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	path := fs.String("file", "", "target file (.csv or .json)")
	fs.Parse(args)

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	switch portability.DetectFormat(*path) {
	case portability.FormatCSV:
		err = portability.ExportCSV(ctx, store, *path)
	case portability.FormatJSON:
		err = portability.ExportJSON(ctx, store, *path)
	default:
		return fmt.Errorf("unknown export format for %q (use .csv or .json)", *path)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", *path)
	return nil
}

func runImport(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	path := fs.String("file", "", "source file (.csv or .json)")
	fs.Parse(args)

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	var imported int
	switch portability.DetectFormat(*path) {
	case portability.FormatCSV:
		imported, err = portability.ImportCSV(ctx, store, *path)
	case portability.FormatJSON:
		imported, err = portability.ImportJSON(ctx, store, *path)
	default:
		return fmt.Errorf("unknown import format for %q (use .csv or .json)", *path)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d expense(s) from %s\n", imported, *path)
	return nil
}

func runBackup(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string) error {
	if len(args) < 1 {
		return errors.New("backup requires a subcommand: create, list, restore, delete, cleanup, auto, info")
	}
	sub, rest := args[0], args[1:]

	manager, err := backup.NewManager(cfg.DBPath, cfg.BackupDir, logger.WithComponent("backup").Logger)
	if err != nil {
		return err
	}

	switch sub {
	case "create":
		fs := flag.NewFlagSet("backup create", flag.ExitOnError)
		description := fs.String("description", "", "optional backup note")
		fs.Parse(rest)
		path, err := manager.Create(ctx, *description)
		if err != nil {
			return err
		}
		fmt.Printf("Backup created: %s\n", path)
		return nil

	case "list":
		backups, err := manager.List()
		if err != nil {
			return err
		}
		for _, b := range backups {
			line := fmt.Sprintf("%s  %8d bytes", b.Path, b.Size)
			if b.Description != "" {
				line += "  " + b.Description
			}
			fmt.Println(line)
		}
		fmt.Printf("%d backup(s)\n", len(backups))
		return nil

	case "restore":
		fs := flag.NewFlagSet("backup restore", flag.ExitOnError)
		path := fs.String("file", "", "backup file to restore")
		fs.Parse(rest)
		if err := manager.Restore(ctx, *path); err != nil {
			return err
		}
		fmt.Printf("Restored from %s\n", *path)
		return nil

	case "delete":
		fs := flag.NewFlagSet("backup delete", flag.ExitOnError)
		path := fs.String("file", "", "backup file to delete")
		fs.Parse(rest)
		if !manager.Delete(*path) {
			fmt.Println("No such backup.")
			return nil
		}
		fmt.Println("Backup deleted.")
		return nil

	case "cleanup":
		fs := flag.NewFlagSet("backup cleanup", flag.ExitOnError)
		days := fs.Int("days", 30, "delete backups older than this many days")
		keep := fs.Int("keep", 5, "always keep this many recent backups")
		fs.Parse(rest)
		removed, err := manager.CleanupOld(*days, *keep)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d backup(s)\n", removed)
		return nil

	case "auto":
		fs := flag.NewFlagSet("backup auto", flag.ExitOnError)
		description := fs.String("description", "", "optional backup note")
		fs.Parse(rest)
		path, err := manager.Automatic(ctx, *description)
		if err != nil {
			return err
		}
		fmt.Printf("Backup created: %s\n", path)
		return nil

	case "info":
		fs := flag.NewFlagSet("backup info", flag.ExitOnError)
		path := fs.String("file", "", "backup file to inspect")
		fs.Parse(rest)
		details, err := manager.BackupInfo(ctx, *path)
		if err != nil {
			return err
		}
		fmt.Printf("Path:    %s\n", details.Path)
		fmt.Printf("Size:    %d bytes\n", details.Size)
		fmt.Printf("Created: %s\n", details.Created.Format("2006-01-02 15:04:05"))
		fmt.Printf("Records: %d\n", details.RecordCount)
		return nil

	default:
		return fmt.Errorf("unknown backup subcommand: %s", sub)
	}
}
