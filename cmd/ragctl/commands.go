package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rag-chat-api/internal/config"
	"rag-chat-api/internal/infrastructure/persistence/milvus"
	"rag-chat-api/internal/infrastructure/persistence/postgres"
	"rag-chat-api/pkg/logger"
	"rag-chat-api/pkg/utils"
)

// configLoader 测试中替换
var configLoader = config.Load

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Operational commands for rag-chat-api",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(NewMigrateCmd(), NewTokenCmd(), NewVersionCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := configLoader()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	return cfg, nil
}

// NewMigrateCmd 建表；vector.provider 为 pgvector 时同时建向量表，为 milvus 时创建集合
func NewMigrateCmd() *cobra.Command {
	var skipVector bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create database tables and the vector collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			pg, err := postgres.NewClient(&cfg.Database.Postgres)
			if err != nil {
				return err
			}
			defer pg.Close()

			pgvector := cfg.Vector.Provider == "pgvector" && !skipVector
			if err := pg.Migrate(ctx, pgvector, cfg.Embedding.Dimension); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "postgres tables ready (pgvector=%t)\n", pgvector)

			if skipVector || cfg.Vector.Provider != "milvus" {
				return nil
			}
			client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := milvus.NewStore(client, cfg.Embedding.Dimension).EnsureCollection(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "milvus collection ready")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipVector, "skip-vector", false, "only migrate relational tables")
	return cmd
}

// NewTokenCmd 用配置中的密钥签发 access token，供本地调试
func NewTokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Security.JWT.Expiration
			}
			jm := utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer)
			token, err := jm.GenerateToken(userID, "user", utils.TokenTypeAccess, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id placed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to security.jwt.expiration)")
	return cmd
}

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ragctl %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", BuildTime)
		},
	}
}
