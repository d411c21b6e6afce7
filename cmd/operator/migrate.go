package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/easeaico/companion/internal/storage"
)

var (
	migrateDryRun bool

	schemaFile   string
	schemaDir    string
	schemaDryRun bool
)

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Show what would be migrated without executing")

	schemaCmd.Flags().StringVar(&schemaFile, "file", "", "Specific migration file to execute")
	schemaCmd.Flags().StringVar(&schemaDir, "dir", "migrations", "Directory containing migration files")
	schemaCmd.Flags().BoolVar(&schemaDryRun, "dry-run", false, "Show what would be executed without running")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(schemaCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Enable pgvector and migrate application tables",
	Long: `Enable the pgvector extension and run gorm AutoMigrate for the
companions, conversations, messages and memories tables.`,
	RunE: runMigrate,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Execute SQL migration files",
	Long: `Execute SQL files from the migrations directory in filename order.
Use this for indexes gorm cannot express, such as the pgvector HNSW index.`,
	RunE: runSchema,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migrateDryRun {
		fmt.Println("Dry run mode - no changes will be made")
		fmt.Println("  - Would enable the pgvector extension")
		fmt.Println("  - Would migrate application tables (companions, conversations, messages, memories)")
		return nil
	}

	dbURL, err := databaseURL()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	store, err := storage.NewStore(ctx, dbURL)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Println("Migrating application tables...")
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	fmt.Println("  ✓ Application tables migrated")
	fmt.Println("\nMigration completed successfully!")
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	files, err := findMigrationFiles(schemaDir, schemaFile)
	if err != nil {
		return fmt.Errorf("failed to find migration files: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("No migration files found")
		return nil
	}

	fmt.Printf("Found %d migration file(s):\n", len(files))
	for _, f := range files {
		fmt.Printf("  - %s\n", filepath.Base(f))
	}
	if schemaDryRun {
		fmt.Println("\nDry run mode - no SQL will be executed")
		return nil
	}

	dbURL, err := databaseURL()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	store, err := storage.NewStore(ctx, dbURL)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Println("\nExecuting migrations...")
	db := store.DB().WithContext(ctx)
	for _, f := range files {
		fmt.Printf("  Running %s... ", filepath.Base(f))
		if err := executeSQLFile(db, f); err != nil {
			fmt.Println("✗")
			return fmt.Errorf("failed to execute %s: %w", f, err)
		}
		fmt.Println("✓")
	}

	fmt.Println("\nSchema migration completed successfully!")
	return nil
}

func findMigrationFiles(dir, specificFile string) ([]string, error) {
	if specificFile != "" {
		fullPath := filepath.Join(dir, specificFile)
		if _, err := os.Stat(fullPath); err != nil {
			return nil, fmt.Errorf("migration file not found: %s", fullPath)
		}
		return []string{fullPath}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func executeSQLFile(db *gorm.DB, filePath string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if err := db.Exec(string(content)).Error; err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}
