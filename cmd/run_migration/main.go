package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lengolf/chat-inbox/internal/config"
	"github.com/lengolf/chat-inbox/pkg/logger"
)

const defaultMigrationsDir = "migrations"

func main() {
	log := logger.Must(logger.New("info"))
	defer func() { _ = log.Sync() }()

	// A single file or a directory of *.sql files applied in name order
	target := defaultMigrationsDir
	if len(os.Args) >= 2 {
		target = os.Args[1]
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	// Use DATABASE_PUBLIC_URL for local runs against a hosted database
	dbURL := cfg.DBURL
	if publicURL := os.Getenv("DATABASE_PUBLIC_URL"); publicURL != "" {
		dbURL = publicURL
		log.Info("using DATABASE_PUBLIC_URL for local execution")
	}

	files, err := migrationFiles(target)
	if err != nil {
		log.Fatal("failed to locate migrations", zap.String("target", target), zap.Error(err))
	}

	// Connect to database
	ctx := context.Background()
	dbpool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbpool.Close()

	// Verify connection
	if err := dbpool.Ping(ctx); err != nil {
		log.Fatal("failed to ping database", zap.Error(err))
	}
	log.Info("database connection established")

	for _, path := range files {
		sqlContent, err := os.ReadFile(path)
		if err != nil {
			log.Fatal("failed to read migration file", zap.String("file", path), zap.Error(err))
		}

		log.Info("executing migration", zap.String("file", path))
		if _, err := dbpool.Exec(ctx, string(sqlContent)); err != nil {
			log.Fatal("failed to execute migration", zap.String("file", path), zap.Error(err))
		}
	}

	log.Info("migrations completed", zap.Int("files", len(files)))
}

// migrationFiles resolves target relative to the working directory or its parents
func migrationFiles(target string) ([]string, error) {
	path, err := resolve(target)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no .sql files in %s", path)
	}
	return files, nil
}

func resolve(target string) (string, error) {
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	wd, _ := os.Getwd()
	possiblePaths := []string{
		filepath.Join(wd, "..", target),
		filepath.Join(wd, "..", "..", target),
	}
	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("migration not found: %s (tried: %v)", target, possiblePaths)
}
