package database

import (
	"log"
	"strings"

	"gorm.io/gorm"
)

// normalizeLegacyRows fixes up rows written by earlier versions before
// AutoMigrate tightens the schema.
func normalizeLegacyRows(db *gorm.DB) error {
	if !db.Migrator().HasTable("cards") {
		return nil // fresh database, nothing to normalize
	}

	// Early imports wrote the marketplace names with their display
	// capitalization; the venue enum is lowercase.
	for _, venue := range []string{"Ebay", "Mercari"} {
		result := db.Exec(`UPDATE cards SET sales_observations = REPLACE(sales_observations, ?, ?)`,
			`"venue":"`+venue+`"`, `"venue":"`+strings.ToLower(venue)+`"`)
		if result.Error != nil {
			log.Printf("Warning: failed to normalize venue %s: %v", venue, result.Error)
		} else if result.RowsAffected > 0 {
			log.Printf("Normalized venue casing for %d cards (%s)", result.RowsAffected, venue)
		}
	}

	return nil
}
