package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/geodrop/internal/adapters/postgres"
	"github.com/samirrijal/geodrop/internal/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|list> [dir] | migrate seed <assets.json>")
	}

	switch os.Args[1] {
	case "list":
		files, err := migrationFiles(dirArg())
		if err != nil {
			log.Fatalf("migrations: %v", err)
		}
		for _, f := range files {
			fmt.Println(f)
		}
	case "up":
		files, err := migrationFiles(dirArg())
		if err != nil {
			log.Fatalf("migrations: %v", err)
		}
		db, closeDB := connect()
		defer closeDB()
		runMigrations(context.Background(), db.Pool, files)
	case "seed":
		if len(os.Args) < 3 {
			log.Fatal("usage: migrate seed <assets.json>")
		}
		assets, err := loadSeed(os.Args[2])
		if err != nil {
			log.Fatalf("seed: %v", err)
		}
		db, closeDB := connect()
		defer closeDB()
		runSeed(context.Background(), db, assets)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func dirArg() string {
	if len(os.Args) > 2 {
		return os.Args[2]
	}
	return "migrations"
}

func connect() (*postgres.DB, func()) {
	cfg, err := config.Load("geodrop-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	db, err := postgres.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	return db, db.Close
}

// migrationFiles returns the .sql files in dir in lexical order. Every file
// is written to be re-runnable.
func migrationFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, files []string) {
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		_, err = pool.Exec(ctx, string(data))
		if err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Println("all migrations applied")
}
