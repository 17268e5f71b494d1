// price runs a valuation session for one card, or a bulk recalculation
// over every priced card.
//
// Usage:
//
//	price -db=<path> -cert=<cert>                  interactive collection
//	price -db=<path> -cert=<cert> -copy-from=<src> reuse another cert's history
//	price -db=<path> -recalculate                  bulk recalculation
//
// Interactive collection prompts per venue/status pass; enter
// "price,grade" pairs, 'c' to skip a pass, 'e' to finish, 'q' to quit
// without writing anything.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/codyseavey/graded-ledger/backend/internal/database"
	"github.com/codyseavey/graded-ledger/backend/internal/models"
	"github.com/codyseavey/graded-ledger/backend/internal/services"
	"github.com/codyseavey/graded-ledger/backend/internal/store"
)

func main() {
	dbPath := flag.String("db", "./graded_ledger.db", "Path to SQLite database")
	cert := flag.String("cert", "", "Certification number to price")
	copyFrom := flag.String("copy-from", "", "Reuse this cert's observation history")
	recalculate := flag.Bool("recalculate", false, "Recalculate every card with sales history")
	flag.Parse()

	if err := database.Initialize(*dbPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	cardStore := store.New(database.GetDB())
	engine := services.NewValuationEngine(cardStore)

	switch {
	case *recalculate:
		runRecalculate(engine)
	case *cert != "":
		runSingle(engine, cardStore, *cert, *copyFrom)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runRecalculate(engine *services.ValuationEngine) {
	result, err := engine.RecalculateAll()
	if err != nil {
		log.Fatalf("Bulk recalculation failed: %v", err)
	}
	fmt.Printf("Processed %d cards: %d updated, %d unchanged, %d skipped (no sales history)\n",
		result.Processed, result.Updated, result.NoOps, result.Skipped)
}

func runSingle(engine *services.ValuationEngine, cardStore *store.CardStore, cert, copyFrom string) {
	card, err := cardStore.Get(cert)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if card.Selling.Price > 0 {
		fmt.Printf("The price has already been set at %d JPY.\n", card.Selling.Price)
		if !confirm("Are you sure you want to overwrite the price?") {
			fmt.Println("Ending.")
			return
		}
	}

	var appraisal *services.Appraisal
	var obs []models.Observation
	if copyFrom != "" {
		appraisal, obs, err = engine.AppraiseFromCert(card, copyFrom)
	} else {
		fmt.Printf("Editing the price for card #%s\n", cert)
		source := services.NewPromptSource(os.Stdin, os.Stdout)
		appraisal, obs, err = engine.AppraiseFresh(card, source)
	}
	if err != nil {
		if errors.Is(err, services.ErrCancelled) {
			fmt.Println("Quit. Nothing was written.")
			return
		}
		log.Fatalf("%v", err)
	}

	printBreakdown(appraisal)

	overwrite := confirm(fmt.Sprintf("\nWe have calculated a price of %d JPY - is this okay to set?", appraisal.Estimate))
	if err := engine.Save(card, appraisal, obs, overwrite); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	if appraisal.NoOp {
		fmt.Println("Estimate unchanged; nothing was written.")
		return
	}
	fmt.Printf("Card successfully updated (#%s).\n", cert)
}

func printBreakdown(a *services.Appraisal) {
	fmt.Printf("\nValuation %s for card #%s\n", a.RunID, a.Cert)
	for _, line := range a.Lines {
		fmt.Printf("  %s/%s PSA %d at %d JPY -> scaled %.0f (SF %.2f, weight %.3f)\n",
			line.Observation.Venue, line.Observation.Status,
			line.Observation.Grade, line.Observation.Price,
			line.ScaledPrice, line.Multiplier, line.FinalWeight)
	}
	fmt.Printf("Plain mean: %d JPY, venue-weighted mean: %d JPY, final estimate: %d JPY\n",
		a.PlainMean, a.WeightedMean, a.Estimate)
}

func confirm(prompt string) bool {
	fmt.Printf("%s [Y/n]\n > ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}
