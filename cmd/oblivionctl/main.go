package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/oblivion-social/oblivion-api/config"
	"github.com/oblivion-social/oblivion-api/internal/repository"
	"github.com/oblivion-social/oblivion-api/pkg/database"
	"github.com/oblivion-social/oblivion-api/pkg/jwt"
	"github.com/oblivion-social/oblivion-api/pkg/logger"
	"github.com/oblivion-social/oblivion-api/pkg/wallet"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "oblivionctl",
		Usage: "Oblivion 运维工具",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "config file path",
				EnvVars: []string{"OBLIVION_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"OBLIVION_LOG_LEVEL"},
			},
		},
		Before: func(cctx *cli.Context) error {
			return logger.Init(cctx.String("log-level"), "console")
		},
		After: func(*cli.Context) error {
			logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "token",
				Usage:     "issue a session token for a wallet",
				ArgsUsage: "<wallet>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username"},
					&cli.DurationFlag{Name: "ttl", Usage: "defaults to jwt.ttl"},
				},
				Action: issueToken,
			},
			{
				Name:   "migrate",
				Usage:  "create or update tables",
				Action: withDB(func(_ context.Context, db *gorm.DB) error { return database.Migrate(db) }),
			},
			{
				Name:  "recount",
				Usage: "recompute follower and engagement counters",
				Action: withDB(func(ctx context.Context, db *gorm.DB) error {
					users, err := repository.NewUserRepository(db).RecountFollows(ctx)
					if err != nil {
						return err
					}
					posts, err := repository.NewPostRepository(db).RecountEngagement(ctx)
					if err != nil {
						return err
					}
					logger.Info("recount done", zap.Int64("users", users), zap.Int64("posts", posts))
					return nil
				}),
			},
			{
				Name:  "rebuild-fans",
				Usage: "rebuild the fan table from follows",
				Action: withDB(func(ctx context.Context, db *gorm.DB) error {
					n, err := repository.NewFanRepository(db).Rebuild(ctx)
					if err != nil {
						return err
					}
					logger.Info("fan table rebuilt", zap.Int64("rows", n))
					return nil
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cctx *cli.Context) (*config.Config, error) {
	return config.LoadFrom(cctx.String("config"))
}

func withDB(fn func(ctx context.Context, db *gorm.DB) error) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		cfg.Database.AutoMigrate = false
		db, err := database.InitDB(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = database.Close(db) }()

		start := time.Now()
		if err := fn(cctx.Context, db); err != nil {
			return err
		}
		logger.Info("command finished", zap.String("command", cctx.Command.Name), zap.Duration("took", time.Since(start)))
		return nil
	}
}

func issueToken(cctx *cli.Context) error {
	if cctx.NArg() != 1 {
		return cli.Exit("usage: oblivionctl token <wallet>", 2)
	}
	addr, err := wallet.Normalize(cctx.Args().First())
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cctx)
	if err != nil {
		return err
	}
	ttl := cctx.Duration("ttl")
	if ttl <= 0 {
		ttl = cfg.JWT.TTL
	}
	tok, err := jwt.Generate(cfg.JWT.Secret, addr, cctx.String("username"), ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cctx.App.Writer, tok)
	return nil
}
