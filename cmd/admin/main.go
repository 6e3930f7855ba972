// Package main 提供运维命令：创建账号、调整计划、查看额度与清理资源缓存。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"jobgenie/internal/config"
	"jobgenie/internal/database"
)

var rootCmd = &cobra.Command{
	Use:           "jobgenie-admin",
	Short:         "JobGenie operations toolkit",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openDatabase() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("init database: %w", err)
	}
	return cfg, db, nil
}
