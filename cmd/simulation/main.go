package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paystream/settlement-api/internal/auth"
	"github.com/paystream/settlement-api/internal/database"
	"github.com/paystream/settlement-api/internal/escrow"
	"github.com/paystream/settlement-api/internal/ledger"
	"github.com/paystream/settlement-api/internal/settlement"
	"github.com/paystream/settlement-api/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	minEarnings       = 20
	maxEarnings       = 120
	numSellers        = 5
	serverAddress     = "http://localhost:8080"
	platformCompanyID = "platform"
	currency          = "TRY"
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the settlement API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":    {name: "Authentication"},
			"release": {name: "Release Earning"},
			"cycle":   {name: "Release Cycle"},
			"account": {name: "Get Account"},
		},
	}

	// Get auth token
	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// releaseEarning triggers the release of a single earning
func (sc *simulationClient) releaseEarning(earningID string) (int, error) {
	start := time.Now()
	defer func() {
		sc.stats["release"].addDuration(time.Since(start))
	}()

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/internal/release/%s", sc.baseURL, earningID),
		nil,
	)
	if err != nil {
		return 0, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))

	resp, err := sc.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Release earning response")

	return resp.StatusCode, nil
}

// runReleaseCycle triggers one batch release sweep and returns its metrics
func (sc *simulationClient) runReleaseCycle(batchSize int) (*settlement.CycleMetrics, error) {
	start := time.Now()
	defer func() {
		sc.stats["cycle"].addDuration(time.Since(start))
	}()

	body, err := json.Marshal(map[string]int{"batch_size": batchSize})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/internal/release-cycle", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Release cycle response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("release cycle failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool                     `json:"success"`
		Data    settlement.CycleMetrics `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &result.Data, nil
}

// getAccount retrieves a company's ledger account balance
func (sc *simulationClient) getAccount(companyID string) (*types.AccountResponse, error) {
	start := time.Now()
	defer func() {
		sc.stats["account"].addDuration(time.Since(start))
	}()

	req, err := http.NewRequest(
		"GET",
		fmt.Sprintf("%s/api/v1/internal/ledger/accounts/%s?currency=%s", sc.baseURL, companyID, currency),
		nil,
	)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Get account response")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get account failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool                  `json:"success"`
		Data    types.AccountResponse `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &result.Data, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// seededData holds the fixtures written before the simulation starts
type seededData struct {
	sellerIDs  []string
	earningIDs []string
	dueCount   int
}

// seedData provisions sellers, ledger accounts, escrow payments and
// earnings directly through the database layer, the way the upstream
// fulfillment and onboarding subsystems would
func seedData(db *gorm.DB) (*seededData, error) {
	settlementDB := settlement.NewDatabase(db)
	ledgerDB := ledger.NewDatabase(db)

	seeded := &seededData{}

	if err := settlementDB.CreateCompany(&types.Company{
		CompanyID: platformCompanyID,
		Name:      "Paystream Platform",
	}); err != nil {
		return nil, err
	}

	for i := 0; i < numSellers; i++ {
		sellerID := "SELLER_" + uuid.New().String()
		seeded.sellerIDs = append(seeded.sellerIDs, sellerID)

		if err := settlementDB.CreateCompany(&types.Company{
			CompanyID: sellerID,
			Name:      fmt.Sprintf("Seller %d", i+1),
		}); err != nil {
			return nil, err
		}

		// Seller accounts are provisioned at onboarding
		if _, err := ledgerDB.GetOrCreateAccount(db, sellerID, currency); err != nil {
			return nil, err
		}
	}

	targetEarnings := rand.Intn(maxEarnings-minEarnings) + minEarnings
	for i := 0; i < targetEarnings; i++ {
		sellerID := seeded.sellerIDs[rand.Intn(len(seeded.sellerIDs))]
		shipmentID := "SHP_" + uuid.New().String()
		earningID := "ERN_" + uuid.New().String()

		gross := decimal.NewFromInt(int64(rand.Intn(900) + 100))
		commission := gross.Mul(decimal.NewFromFloat(0.10))
		chargeback := decimal.Zero
		if rand.Intn(10) == 0 {
			chargeback = decimal.NewFromInt(int64(rand.Intn(20) + 1))
		}
		net := gross.Sub(commission).Sub(chargeback)

		// Most payments are collected; some are still pending or disputed
		// so the escrow guard has something to decline
		paymentStatus := escrow.PaymentStatusCollected
		disputed := false
		switch rand.Intn(10) {
		case 0:
			paymentStatus = escrow.PaymentStatusPending
		case 1:
			disputed = true
		}
		if err := db.Create(&escrow.Payment{
			ShipmentID: shipmentID,
			OrderID:    "ORD_" + uuid.New().String(),
			Amount:     gross,
			Currency:   currency,
			Status:     paymentStatus,
			Disputed:   disputed,
		}).Error; err != nil {
			return nil, err
		}

		// Most earnings are due; some clear in the future
		clearDate := time.Now().Add(-time.Duration(rand.Intn(72)+1) * time.Hour)
		due := true
		if rand.Intn(10) == 0 {
			clearDate = time.Now().Add(time.Duration(rand.Intn(72)+1) * time.Hour)
			due = false
		}

		status := types.EarningStatusCleared
		if rand.Intn(3) == 0 {
			status = types.EarningStatusPending
		}

		if err := settlementDB.CreateEarning(&types.Earning{
			EarningID:        earningID,
			SellerCompanyID:  sellerID,
			ShipmentID:       shipmentID,
			GrossAmount:      gross,
			CommissionAmount: commission,
			ChargebackAmount: chargeback,
			NetAmount:        net,
			Currency:         currency,
			Status:           status,
			ExpectedClearDate: &clearDate,
		}); err != nil {
			return nil, err
		}

		seeded.earningIDs = append(seeded.earningIDs, earningID)
		if due {
			seeded.dueCount++
		}
	}

	return seeded, nil
}

// main runs the settlement simulation
// It starts a local API server, seeds earnings, releases a subset of
// them individually (including duplicate attempts to exercise
// idempotency), then sweeps the remainder with a release cycle
func main() {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Start the server in a goroutine
	go func() {
		if err := startServer(db); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	seeded, err := seedData(db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed simulation data")
	}
	log.Info().
		Int("earnings", len(seeded.earningIDs)).
		Int("due", seeded.dueCount).
		Int("sellers", len(seeded.sellerIDs)).
		Msg("Seeded simulation data")

	// Initialize simulation client
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	startTime := time.Now()

	// Release the first half individually, sending every fifth request
	// twice to exercise idempotency
	singles := seeded.earningIDs[:len(seeded.earningIDs)/2]
	var released, duplicates, declined int
	for i, earningID := range singles {
		status, err := simClient.releaseEarning(earningID)
		if err != nil {
			log.Error().Err(err).Str("earning_id", earningID).Msg("Failed to release earning")
			simClient.stats["release"].failures++
			continue
		}
		switch {
		case status == http.StatusOK || status == http.StatusCreated:
			released++
		default:
			declined++
		}

		if i%5 == 0 {
			if repeat, err := simClient.releaseEarning(earningID); err == nil &&
				(repeat == http.StatusOK || repeat == http.StatusCreated) {
				duplicates++
			}
		}
	}

	log.Info().
		Int("released", released).
		Int("declined", declined).
		Int("duplicate_noop", duplicates).
		Msg("Individual releases completed")

	// Sweep the rest with a batch cycle
	metrics, err := simClient.runReleaseCycle(25)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to run release cycle")
	}

	log.Info().
		Int("attempted", metrics.Attempted).
		Int("released", metrics.Released).
		Int("skipped", metrics.Skipped).
		Int("already_running", metrics.AlreadyRunning).
		Int("failed", metrics.Failed).
		Msg("Release cycle completed")

	// Check seller balances
	totalAvailable := decimal.Zero
	for _, sellerID := range seeded.sellerIDs {
		account, err := simClient.getAccount(sellerID)
		if err != nil {
			log.Error().Err(err).Str("company_id", sellerID).Msg("Failed to fetch account")
			simClient.stats["account"].failures++
			continue
		}
		totalAvailable = totalAvailable.Add(account.AvailableBalance)
		log.Info().
			Str("company_id", sellerID).
			Str("available_balance", account.AvailableBalance.String()).
			Msg("Seller balance")
	}

	// Print summary
	duration := time.Since(startTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SETTLEMENT SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Earnings seeded:       %d (due: %d)
Individual releases:   %d released, %d declined, %d duplicate no-ops
Cycle attempted:       %d
Cycle released:        %d
Cycle skipped:         %d
Cycle already running: %d
Cycle failed:          %d
Total seller payout:   %s %s
Duration:              %v
`, len(seeded.earningIDs), seeded.dueCount,
		released, declined, duplicates,
		metrics.Attempted, metrics.Released, metrics.Skipped, metrics.AlreadyRunning, metrics.Failed,
		totalAvailable.StringFixed(2), currency, duration.Round(time.Millisecond))

	fmt.Println(strings.Repeat("=", 80))

	simClient.printPerformanceStats()
}

// startServer initializes and starts the settlement API server
// Sets up all required services, handlers and routes
func startServer(db *gorm.DB) error {
	// Initialize services
	authService := auth.NewService("settlement-secret-key")
	ledgerService := ledger.NewService(db, platformCompanyID)
	settlementService := settlement.NewService(db, escrow.NewPaymentGuard(), ledgerService, platformCompanyID)

	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	// Setup routes
	setupRoutes(router, authHandlers, settlementHandlers, ledgerHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Internal routes
		internal := v1.Group("/internal")
		{
			internal.POST("/release/:earning_id", settlementHandlers.ReleaseEarningHandler())
			internal.POST("/release-cycle", settlementHandlers.RunReleaseCycleHandler())
			internal.GET("/ledger/accounts/:company_id", ledgerHandlers.GetAccountHandler())
			internal.GET("/ledger/groups/:group_id/entries", ledgerHandlers.GetGroupEntriesHandler())
		}
	}
}
