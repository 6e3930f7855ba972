package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"jobgenie/internal/config"
	"jobgenie/internal/resources"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the learning resource cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached learning resource entry",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer client.Close()

	cache := resources.NewCache(resources.NewRedisStore(client, cfg.Resources.Retention), resources.DisabledProvider{})
	n, err := cache.Clear(cmd.Context())
	if err != nil {
		return fmt.Errorf("clear cache (%d deleted before failure): %w", n, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d cache entries\n", n)
	return nil
}
