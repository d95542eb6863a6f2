package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"visionbridge/internal/config"
	"visionbridge/internal/repository/sqlite"
	"visionbridge/internal/service/storage"
)

func main() {
	cfg := config.Load()
	imagesDir := flag.String("images", cfg.ImageDirectory, "Directory containing captures")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	flag.Parse()

	fmt.Printf("Indexing captures from %s into database %s\n", *imagesDir, *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	captures := sqlite.NewCaptureRepository(db)
	res, err := storage.Reindex(*imagesDir, captures, sqlite.NewDetectionRepository(db))
	if err != nil {
		log.Fatalf("Failed to index captures: %v", err)
	}

	fmt.Printf("Indexed %d captures, %d already known\n", res.Indexed, res.Known)
	if res.Skipped > 0 {
		fmt.Printf("Skipped %d files (invalid name or unreadable)\n", res.Skipped)
	}

	stats, err := captures.GetStats()
	if err != nil {
		return
	}
	fmt.Printf("\nArchive statistics:\n")
	fmt.Printf("   Total captures: %d\n", stats.TotalCaptures)
	fmt.Printf("   Total size: %d bytes\n", stats.TotalSizeBytes)
	fmt.Printf("   Per session:\n")
	for session, count := range stats.PerSession {
		fmt.Printf("      - %s: %d captures\n", session, count)
	}
}
