package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/damp-platform/damp-api/internal/analytics"
	"github.com/damp-platform/damp-api/internal/models"
	"github.com/damp-platform/damp-api/internal/repository"
	"github.com/damp-platform/damp-api/internal/service"
	"github.com/damp-platform/damp-api/pkg/config"
	"github.com/damp-platform/damp-api/pkg/database"
	"github.com/damp-platform/damp-api/pkg/export"
	"github.com/damp-platform/damp-api/pkg/logger"
)

const usage = `usage: damp-report <command> [flags]

commands:
  report   compute every metric from one snapshot and write it as JSON
  migrate  apply or roll back schema migrations
  token    issue an access token for an operator
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	args := os.Args[2:]
	switch os.Args[1] {
	case "report":
		err = runReport(cfg, logr, args)
	case "migrate":
		err = runMigrate(cfg, logr, args)
	case "token":
		err = runToken(cfg, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logr.Fatal("command failed", zap.String("command", os.Args[1]), zap.Error(err))
	}
}

func runReport(cfg *config.Config, logr *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	out := fs.String("out", "", "output file (default stdout)")
	months := fs.Int("months", cfg.Analytics.DefaultTrendMonths, "enrollment trend and user growth window in months")
	days := fs.Int("days", cfg.Analytics.DefaultWindowDays, "engagement window in days")
	limit := fs.Int("limit", cfg.Analytics.DefaultPopularLimit, "number of popular courses")
	by := fs.String("by", string(analytics.DimensionCategory), "completion breakdown dimension (category or difficulty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dimension, err := analytics.ParseDimension(*by)
	if err != nil {
		return err
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Analytics.SnapshotTimeout+time.Minute)
	defer cancel()

	started := time.Now()
	snap, err := repository.NewSnapshotRepository(db).Load(ctx)
	if err != nil {
		return err
	}

	params := analytics.DefaultDashboardParams()
	params.TrendMonths = *months
	params.GrowthMonths = *months
	params.EngagementDays = *days
	params.PopularityLimit = *limit
	params.BreakdownBy = dimension

	dashboard, err := analytics.BuildDashboard(ctx, snap, snap.AsOf, params)
	if err != nil {
		return err
	}
	payload, err := export.NewJSONExporter().Render("DAMP platform report", snap.AsOf, dashboard)
	if err != nil {
		return err
	}

	if *out == "" {
		_, err = os.Stdout.Write(payload)
		return err
	}
	if err := os.WriteFile(*out, payload, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logr.Info("report written",
		zap.String("path", *out),
		zap.Int("enrollments", len(snap.Enrollments)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func runMigrate(cfg *config.Config, logr *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	direction := fs.String("direction", "up", "up or down")
	steps := fs.Int("steps", 0, "apply only n migrations in the chosen direction")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, cfg.Migrations.Path, logr)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck

	switch *direction {
	case "up":
		if *steps > 0 {
			return migrator.Steps(*steps)
		}
		return migrator.Up()
	case "down":
		if *steps > 0 {
			return migrator.Steps(-*steps)
		}
		return migrator.Down()
	default:
		return fmt.Errorf("invalid migration direction %q: use up or down", *direction)
	}
}

func runToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	userID := fs.Int64("user", 0, "user id")
	role := fs.String("role", string(models.RoleAdmin), "student, mentor or admin")
	email := fs.String("email", "", "optional email claim")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID <= 0 {
		return fmt.Errorf("-user must be a positive id")
	}
	parsed, err := models.ParseUserRole(*role)
	if err != nil {
		return err
	}

	token, expiresAt, err := service.NewTokenService(cfg.JWT).Issue(*userID, parsed, *email)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n# expires %s\n", token, expiresAt.UTC().Format(time.RFC3339))
	return nil
}
