// cmd/tools/migrate/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"property-tracker/internal/common/config"
	"property-tracker/internal/common/database"
	"property-tracker/internal/search"
	"property-tracker/internal/store"
)

func main() {
	schemaCmd := flag.NewFlagSet("schema", flag.ExitOnError)
	indexCmd := flag.NewFlagSet("index", flag.ExitOnError)

	schemaConfig := schemaCmd.String("config", "", "Path to config file (defaults to configs/config.yaml lookup)")
	dryRun := schemaCmd.Bool("dry-run", false, "Print the statements without applying them")

	indexConfig := indexCmd.String("config", "", "Path to config file (defaults to configs/config.yaml lookup)")
	indexName := indexCmd.String("name", "", "Index name (defaults to database.elasticsearch.index)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "schema":
		schemaCmd.Parse(os.Args[2:])
		if *dryRun {
			for _, stmt := range store.Schema {
				fmt.Println(stmt + ";")
			}
			return
		}
		cfg, err := loadConfig(*schemaConfig)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		if err := migrateSchema(ctx, cfg); err != nil {
			fmt.Printf("Schema migration failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Applied %d statements to %s\n", len(store.Schema), cfg.Database.Postgres.Database)

	case "index":
		indexCmd.Parse(os.Args[2:])
		cfg, err := loadConfig(*indexConfig)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		name := *indexName
		if name == "" {
			name = cfg.Database.Elasticsearch.Index
		}
		if err := ensureIndex(ctx, cfg, name); err != nil {
			fmt.Printf("Index setup failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Index %s is ready\n", name)

	case "help":
		fallthrough
	default:
		help()
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func migrateSchema(ctx context.Context, cfg *config.Config) error {
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.Ping(ctx); err != nil {
		return err
	}
	return pg.Migrate(ctx, store.Schema)
}

func ensureIndex(ctx context.Context, cfg *config.Config, name string) error {
	if !cfg.Database.Elasticsearch.Enabled() {
		return fmt.Errorf("database.elasticsearch is not configured")
	}
	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		return err
	}
	if err := es.Ping(ctx); err != nil {
		return err
	}
	return es.EnsureIndex(ctx, name, search.Mapping)
}

func help() {
	fmt.Println(`Usage: migrate <command> [options]

Commands:
  schema   Apply the PostgreSQL schema (idempotent)
  index    Create the Elasticsearch property index if missing
  help     Show this help

Examples:
  go run ./cmd/tools/migrate schema
  go run ./cmd/tools/migrate schema -dry-run
  go run ./cmd/tools/migrate index -name properties`)
}
