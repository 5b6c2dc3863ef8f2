package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/config"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/logger"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/migration"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/persistence"
)

func main() {
	var (
		configPath string
		dbPath     string
		logLevel   string
	)

	flag.StringVar(&configPath, "config", "", "Path to a TOML config file (default: ./config.toml when present)")
	flag.StringVar(&dbPath, "db", "", "Path to the sqlite cache (overrides database.path)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	log.Info("Migration CLI started",
		zap.String("command", command),
		zap.String("database", cfg.Database.Path),
	)

	db, err := persistence.NewDatabase(&cfg.Database, log.Named("gorm"), gormlogger.Silent)
	if err != nil {
		log.Fatal("Failed to open cache database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get sql.DB", zap.Error(err))
	}

	m, err := migration.New(sqlDB, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil {
			log.Fatal("Migration up failed", zap.Error(err))
		}

	case "down":
		if !hasConfirm(args[1:]) {
			log.Fatal("Rolling back drops the cache. Use 'migrate down -confirm' to confirm.")
		}
		if err := m.Down(); err != nil {
			log.Fatal("Migration down failed", zap.Error(err))
		}

	case "step":
		if len(args) < 2 {
			log.Fatal("Step count required. Usage: migrate step <n>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal("Invalid step count", zap.String("value", args[1]))
		}
		if err := m.Steps(n); err != nil {
			log.Fatal("Migration step failed", zap.Error(err))
		}

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatal("Failed to get version", zap.Error(err))
		}
		if version == 0 {
			log.Info("No migrations applied")
		} else {
			log.Info("Current migration version",
				zap.Uint("version", version),
				zap.Bool("dirty", dirty),
			)
		}

	case "force":
		if len(args) < 2 {
			log.Fatal("Version required. Usage: migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal("Invalid version number", zap.String("value", args[1]))
		}
		if err := m.Force(version); err != nil {
			log.Fatal("Force version failed", zap.Error(err))
		}

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

func hasConfirm(args []string) bool {
	for _, arg := range args {
		if arg == "-confirm" || arg == "--confirm" {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Println(`Cache Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down -confirm         Roll back all migrations (drops the cache tables)
  step <n>              Apply n migrations (positive=up, negative=down)
  version               Show current migration version
  force <version>       Force set migration version (use with caution)

Flags:
  -config string        Path to a TOML config file
  -db string            Path to the sqlite cache (overrides CRM_DATABASE_PATH)
  -log-level string     Log level: debug, info, warn, error (default: info)

Examples:
  # Create or upgrade the cache schema
  migrate up

  # Roll back the last migration
  migrate step -1`)
}
