// Command modelctl publishes model artifacts to the registry the service loads from.
//
//	modelctl publish --file artifacts/model.json --name nyc_taxi_xgb_regressor --version v1.1
//	modelctl list --name nyc_taxi_xgb_regressor
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/triplens/service-trip-duration/internal/config"
	"github.com/triplens/service-trip-duration/internal/database"
	modelDomain "github.com/triplens/service-trip-duration/internal/domain/model"
	"github.com/triplens/service-trip-duration/internal/logger"
	"github.com/triplens/service-trip-duration/internal/repository"
	"github.com/triplens/service-trip-duration/internal/scoring"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.NewNamed(cfg.AppEnv, "modelctl")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "publish":
		err = publish(ctx, cfg, log, os.Args[2:])
	case "list":
		err = list(ctx, cfg, log, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("modelctl "+os.Args[1]+" failed", zap.Error(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: modelctl <publish|list> [flags]")
}

func publish(ctx context.Context, cfg *config.ServiceConfig, log *zap.Logger, args []string) error {
	fs := pflag.NewFlagSet("publish", pflag.ExitOnError)
	file := fs.StringP("file", "f", cfg.Model.Path, "model artifact to publish")
	name := fs.StringP("name", "n", "", "model name (overrides the card)")
	version := fs.StringP("version", "v", "", "model version (overrides the card)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	payload, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	card, err := repository.ReadCard(repository.CardPath(*file))
	if err != nil {
		return err
	}
	card = modelDomain.Card{Name: *name, Version: *version}.Merge(card).Merge(modelDomain.Card{
		Name:    cfg.Model.Name,
		Version: cfg.Model.Version,
		Task:    cfg.Model.Task,
		Target:  cfg.Model.Target,
	})

	artifact, err := modelDomain.NewArtifact(card, payload)
	if err != nil {
		return err
	}
	// refuse anything the service would fail to load
	if _, err := scoring.Decode(artifact); err != nil {
		return err
	}

	db, err := database.Connect(ctx, cfg.DBConfig, log)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	if err := repository.NewGormArtifactRepository(db).Save(ctx, artifact); err != nil {
		return fmt.Errorf("save %s@%s: %w", card.Name, card.Version, err)
	}

	log.Info("model published",
		zap.String("id", artifact.ID.String()),
		zap.String("name", card.Name),
		zap.String("version", card.Version),
		zap.String("format", string(card.Format)),
		zap.Int("bytes", len(payload)),
	)
	return nil
}

func list(ctx context.Context, cfg *config.ServiceConfig, log *zap.Logger, args []string) error {
	fs := pflag.NewFlagSet("list", pflag.ExitOnError)
	name := fs.StringP("name", "n", cfg.Model.Name, "model name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := database.Connect(ctx, cfg.DBConfig, log)
	if err != nil {
		return err
	}
	artifacts, err := repository.NewGormArtifactRepository(db).List(ctx, *name)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tFORMAT\tTASK\tTARGET\tPUBLISHED")
	for _, a := range artifacts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.Card.Version, a.Card.Format, a.Card.Task, a.Card.Target, a.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
