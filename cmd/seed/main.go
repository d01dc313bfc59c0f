package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/parcel-routing/route-optimizer/backend/internal/config"
	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
	"github.com/parcel-routing/route-optimizer/backend/internal/handler"
	"github.com/parcel-routing/route-optimizer/backend/internal/repository"
	"github.com/parcel-routing/route-optimizer/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var dir string
	var xlsx string
	var subject string
	var role string
	var randomSeed int64

	flag.IntVar(&op, "op", 0, "operation (1: load dataset, 2: insert a random dataset, 3: print an API token)")
	flag.IntVar(&n, "n", 40, "number of random packages")
	flag.StringVar(&dir, "dir", seed.DefaultDataDir, "directory holding distances.csv, packages.csv and addresses.csv")
	flag.StringVar(&xlsx, "xlsx", "", "workbook with distances, packages and addresses sheets, overrides -dir")
	flag.StringVar(&subject, "sub", "dispatcher", "token subject")
	flag.StringVar(&role, "role", string(domain.RoleDispatcher), "token role")
	flag.Int64Var(&randomSeed, "seed", time.Now().UnixNano(), "seed of the random dataset")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// tokens need no database
	if op == 3 {
		token, err := handler.NewToken(cfg, subject, domain.Role(role))
		if err != nil {
			logger.Error("failed to sign token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	switch op {
	case 0:
		slog.Error("no operation given")
	case 1:
		ds, err := seed.LoadDataset(dir, xlsx)
		if err != nil {
			slog.Error("failed to read dataset", slog.String("error", err.Error()))
			return
		}
		if err := seed.SeedDataset(repo, ds); err != nil {
			slog.Error("failed to store dataset", slog.String("error", err.Error()))
			return
		}
	case 2:
		if n <= 0 {
			slog.Error("package count must be positive")
			return
		}
		if err := seed.SeedRandomDataset(repo, n, cfg.Optimizer.TruckCount, randomSeed); err != nil {
			slog.Error("failed to store random dataset", slog.String("error", err.Error()))
			return
		}
	default:
		slog.Error("unknown operation", slog.Int("op", op))
	}
}
