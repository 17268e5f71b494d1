package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/graded-ledger/backend/internal/models"
	"github.com/codyseavey/graded-ledger/backend/internal/services"
	"github.com/codyseavey/graded-ledger/backend/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.CardStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Card{}, &models.Bundle{}, &models.CollectionValueSnapshot{}); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	cardStore := store.New(db)
	dex, err := services.NewDexService(t.TempDir())
	if err != nil {
		t.Fatalf("dex service: %v", err)
	}

	router := SetupRouter(
		cardStore,
		services.NewEquivalenceService(cardStore),
		services.NewValuationEngine(cardStore),
		services.NewStatsService(cardStore),
		services.NewBundleService(cardStore, db),
		services.NewSnapshotService(cardStore, db),
		dex,
	)
	return router, cardStore
}

func seedAPICard(t *testing.T, s *store.CardStore, cert string, price int) {
	t.Helper()
	lang := "japanese"
	species := 6
	card := &models.Card{Cert: cert, Year: 1996, Language: &lang, SpeciesRef: &species, Grade: 9}
	card.Selling.Price = price
	if err := s.Update(cert, card); err != nil {
		t.Fatalf("seed card %s: %v", cert, err)
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", w.Code)
	}
}

func TestListAndGetCards(t *testing.T) {
	router, s := newTestRouter(t)
	seedAPICard(t, s, "111", 10000)
	seedAPICard(t, s, "222", 0)

	w := doJSON(t, router, http.MethodGet, "/api/cards", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/cards = %d: %s", w.Code, w.Body.String())
	}
	var list struct {
		Count int `json:"count"`
	}
	decode(t, w, &list)
	if list.Count != 2 {
		t.Errorf("count = %d, want 2", list.Count)
	}

	w = doJSON(t, router, http.MethodGet, "/api/cards/111", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET /api/cards/111 = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/api/cards/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /api/cards/ghost = %d, want 404", w.Code)
	}
}

func TestDuplicatesEndpoint(t *testing.T) {
	router, s := newTestRouter(t)
	seedAPICard(t, s, "111", 0)
	seedAPICard(t, s, "222", 0)

	w := doJSON(t, router, http.MethodGet, "/api/cards/111/duplicates", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET duplicates = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Cert   string                  `json:"cert"`
		Groups []models.DuplicateGroup `json:"groups"`
	}
	decode(t, w, &resp)
	if len(resp.Groups) != 1 || len(resp.Groups[0].Members) != 2 {
		t.Errorf("groups = %+v, want one group with both certs", resp.Groups)
	}
}

func TestValuationEndpoint(t *testing.T) {
	router, s := newTestRouter(t)
	seedAPICard(t, s, "111", 0)

	body := map[string]any{
		"observations": []map[string]any{
			{"price": 10000, "grade": 9, "venue": "ebay", "status": "sold"},
		},
	}
	w := doJSON(t, router, http.MethodPost, "/api/cards/111/valuation", body)
	if w.Code != http.StatusOK {
		t.Fatalf("POST valuation = %d: %s", w.Code, w.Body.String())
	}
	var appraisal services.Appraisal
	decode(t, w, &appraisal)
	if appraisal.Estimate != 11000 {
		t.Errorf("estimate = %d, want 11000", appraisal.Estimate)
	}

	// the run persisted the history
	card, err := s.Get("111")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if card.Sales.AvgPrice != 11000 {
		t.Errorf("stored AvgPrice = %d, want 11000", card.Sales.AvgPrice)
	}

	// missing observation list is a request error
	w = doJSON(t, router, http.MethodPost, "/api/cards/111/valuation", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("POST valuation without observations = %d, want 400", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/cards/ghost/valuation", body)
	if w.Code != http.StatusNotFound {
		t.Errorf("POST valuation for missing cert = %d, want 404", w.Code)
	}
}

func TestValuationDryRun(t *testing.T) {
	router, s := newTestRouter(t)
	seedAPICard(t, s, "111", 0)

	body := map[string]any{
		"observations": []map[string]any{
			{"price": 10000, "grade": 9, "venue": "ebay", "status": "sold"},
		},
		"dry_run": true,
	}
	w := doJSON(t, router, http.MethodPost, "/api/cards/111/valuation", body)
	if w.Code != http.StatusOK {
		t.Fatalf("POST dry-run valuation = %d: %s", w.Code, w.Body.String())
	}

	card, err := s.Get("111")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if card.Sales.AvgPrice != 0 {
		t.Errorf("dry run persisted AvgPrice = %d, want 0", card.Sales.AvgPrice)
	}
}

func TestCopyFromEndpointNoHistory(t *testing.T) {
	router, s := newTestRouter(t)
	seedAPICard(t, s, "111", 0)
	seedAPICard(t, s, "222", 0)

	w := doJSON(t, router, http.MethodPost, "/api/cards/111/valuation/copy-from/222", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("copy-from a history-less cert = %d, want 422: %s", w.Code, w.Body.String())
	}
}

func TestCollectionStatsEndpoint(t *testing.T) {
	router, s := newTestRouter(t)
	seedAPICard(t, s, "111", 10000)
	seedAPICard(t, s, "222", 0)

	w := doJSON(t, router, http.MethodGet, "/api/collection/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET stats = %d: %s", w.Code, w.Body.String())
	}
	var stats models.CollectionStats
	decode(t, w, &stats)
	if stats.TotalCards != 2 || stats.ForSaleCards != 1 {
		t.Errorf("stats = %+v, want 2 cards with 1 for sale", stats)
	}
}

func TestBundleEndpoints(t *testing.T) {
	router, s := newTestRouter(t)
	seedAPICard(t, s, "111", 10000)
	seedAPICard(t, s, "222", 10000)
	seedAPICard(t, s, "333", 10000)

	body := map[string]any{"certs": []string{"111", "222", "333"}}
	w := doJSON(t, router, http.MethodPost, "/api/bundles/quote", body)
	if w.Code != http.StatusOK {
		t.Fatalf("POST quote = %d: %s", w.Code, w.Body.String())
	}
	var quote models.BundleQuote
	decode(t, w, &quote)
	if quote.Discounted != 29400 {
		t.Errorf("quote = %d, want 29400", quote.Discounted)
	}

	w = doJSON(t, router, http.MethodPost, "/api/bundles", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST bundles = %d: %s", w.Code, w.Body.String())
	}

	// the same member set conflicts
	w = doJSON(t, router, http.MethodPost, "/api/bundles", body)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate bundle = %d, want 409", w.Code)
	}
}
