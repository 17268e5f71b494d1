// import-collection loads a year-partitioned collection JSON file into
// the sqlite database, applying the defaults schema and validating
// every record on the way in.
//
// Usage: go run main.go -db=<path> -collection=<file> -defaults=<file> [-dry-run]
//
// The tool:
// 1. Reads the defaults schema and the year-partitioned collection file
// 2. Deep-merges each record over the defaults
// 3. Validates required/allowed fields, the set enum and global cert uniqueness
// 4. Upserts every card (with -dry-run it only reports what it would write)
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/codyseavey/graded-ledger/backend/internal/database"
	"github.com/codyseavey/graded-ledger/backend/internal/store"
)

func main() {
	dbPath := flag.String("db", "", "Path to SQLite database (required)")
	collectionPath := flag.String("collection", "./collection.json", "Path to the year-partitioned collection file")
	defaultsPath := flag.String("defaults", "./default.json", "Path to the defaults schema file")
	dryRun := flag.Bool("dry-run", false, "Validate and report without writing")
	flag.Parse()

	if *dbPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := database.Initialize(*dbPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	cardStore := store.New(database.GetDB())

	importer, err := store.NewImporter(cardStore, *defaultsPath)
	if err != nil {
		log.Fatalf("Failed to load defaults: %v", err)
	}

	if *dryRun {
		raw, err := os.ReadFile(*collectionPath)
		if err != nil {
			log.Fatalf("Failed to read collection: %v", err)
		}
		var coll map[string]map[string]map[string]any
		if err := json.Unmarshal(raw, &coll); err != nil {
			log.Fatalf("Failed to parse collection: %v", err)
		}
		cards, err := importer.Parse(coll)
		if err != nil {
			log.Fatalf("Validation failed: %v", err)
		}
		fmt.Printf("Dry run: %d cards would be imported\n", len(cards))
		return
	}

	count, err := importer.ImportFile(*collectionPath)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	fmt.Printf("Imported %d cards\n", count)
}
