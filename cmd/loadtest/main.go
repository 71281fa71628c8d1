package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	idempotencyHeader = "Idempotency-Key"
	defaultQty        = int32(1)
	defaultAmount     = int64(1000)
)

type loadMode string

const (
	modePlace    loadMode = "place"
	modePlacePay loadMode = "place-pay"
)

type config struct {
	baseURL       string
	total         int
	totalSet      bool
	duration      time.Duration
	concurrency   int
	timeout       time.Duration
	mode          loadMode
	productID     string
	qty           int32
	amountMinor   int64
	currency      string
	gatewaySecret string
	customerTag   string
	outputPath    string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Statuses  map[string]int64 `json:"statuses"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	statuses  map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

// record учитывает вызов метода: status=0 означает транспортную ошибку.
func (c *collector) record(method string, latency time.Duration, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{
			statuses: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if isSuccessStatus(status) {
		stats.success++
	} else {
		stats.failed++
	}
	stats.statuses[statusLabel(status)]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) snapshot(name string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[name]
	if !ok {
		return methodReport{}, false
	}

	statusesCopy := make(map[string]int64, len(stats.statuses))
	for status, count := range stats.statuses {
		statusesCopy[status] = count
	}

	return methodReport{
		Calls:     stats.calls,
		Success:   stats.success,
		Failed:    stats.failed,
		ErrorRate: ratio(stats.failed, stats.calls),
		Statuses:  statusesCopy,
		LatencyMs: buildLatencySummary(stats.latencies),
	}, true
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	scenarioStats := c.methods["scenario"]
	if scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		statusesCopy := make(map[string]int64, len(stats.statuses))
		for status, count := range stats.statuses {
			statusesCopy[status] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Statuses:  statusesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func isSuccessStatus(status int) bool {
	return status >= 200 && status < 400
}

func statusLabel(status int) string {
	if status == 0 {
		return "transport_error"
	}
	return strconv.Itoa(status)
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string
	var qty int

	flag.StringVar(&cfg.baseURL, "base-url", "http://localhost:8080", "HTTP base URL of the service")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	flag.StringVar(&modeValue, "mode", string(modePlace), "load mode: place | place-pay")
	flag.StringVar(&cfg.productID, "product-id", "", "product identifier to order (required)")
	flag.IntVar(&qty, "qty", int(defaultQty), "quantity per order item")
	flag.Int64Var(&cfg.amountMinor, "amount-minor", defaultAmount, "payment amount in minor units for place-pay mode")
	flag.StringVar(&cfg.currency, "currency", "INR", "payment currency for place-pay mode")
	flag.StringVar(&cfg.gatewaySecret, "gateway-secret", "", "mock gateway secret for signing callbacks (required for place-pay)")
	flag.StringVar(&cfg.customerTag, "customer-tag", "load", "customer name/email prefix")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode
	cfg.qty = int32(qty)

	if strings.TrimSpace(cfg.baseURL) == "" {
		return cfg, errors.New("base-url is required")
	}
	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if strings.TrimSpace(cfg.productID) == "" {
		return cfg, errors.New("product-id is required")
	}
	if cfg.qty <= 0 {
		return cfg, errors.New("qty must be > 0")
	}
	if strings.TrimSpace(cfg.customerTag) == "" {
		return cfg, errors.New("customer-tag is required")
	}
	if cfg.mode == modePlacePay {
		if cfg.amountMinor <= 0 {
			return cfg, errors.New("amount-minor must be > 0")
		}
		if len(strings.TrimSpace(cfg.currency)) != 3 {
			return cfg, errors.New("currency must be a 3-letter code")
		}
		if strings.TrimSpace(cfg.gatewaySecret) == "" {
			return cfg, errors.New("gateway-secret is required for place-pay mode")
		}
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modePlace:
		return modePlace, nil
	case modePlacePay:
		return modePlacePay, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{
		Timeout: cfg.timeout,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.concurrency * 2,
			MaxIdleConnsPerHost: cfg.concurrency * 2,
		},
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(client, cfg, id, runID, col); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

func buildOrderPayload(cfg config, index int, runID string, paymentMethod string) map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{
				"productId":         cfg.productID,
				"requestedQuantity": cfg.qty,
			},
		},
		"customerInfo": map[string]any{
			"name":  fmt.Sprintf("%s-%s-%d", cfg.customerTag, runID, index),
			"email": fmt.Sprintf("%s-%s-%d@example.com", cfg.customerTag, runID, index),
			"phone": "9000000000",
		},
		"shippingAddress": map[string]any{
			"area":        "Load Area",
			"city":        "Bengaluru",
			"state":       "Karnataka",
			"pincode":     "560001",
			"addressType": "home",
		},
		"paymentMethod": paymentMethod,
	}
}

func runScenario(client *http.Client, cfg config, index int, runID string, col *collector) error {
	scenarioStart := time.Now()
	scenarioStatus := http.StatusOK
	defer func() {
		col.record("scenario", time.Since(scenarioStart), scenarioStatus)
	}()

	if cfg.mode == modePlace {
		key := fmt.Sprintf("lt-place-%s-%d", runID, index)
		orderID, status, err := callPlaceOrder(client, cfg, buildOrderPayload(cfg, index, runID, "cod"), key, col)
		if err != nil {
			scenarioStatus = status
			return err
		}
		if orderID == "" {
			scenarioStatus = 0
			return errors.New("place response returned empty order id")
		}
		return nil
	}

	gatewayOrderID, status, err := callCreateGatewayOrder(client, cfg, col)
	if err != nil {
		scenarioStatus = status
		return err
	}
	if gatewayOrderID == "" {
		scenarioStatus = 0
		return errors.New("create-order response returned empty gateway order id")
	}

	paymentID := fmt.Sprintf("pay_lt_%s_%d", runID, index)
	signature := signCallback(cfg.gatewaySecret, gatewayOrderID, paymentID)

	orderID, status, err := callVerifyPayment(client, cfg, gatewayOrderID, paymentID, signature, buildOrderPayload(cfg, index, runID, "online"), col)
	if err != nil {
		scenarioStatus = status
		return err
	}
	if orderID == "" {
		scenarioStatus = 0
		return errors.New("verify response returned empty order id")
	}

	return nil
}

// signCallback повторяет подпись mock-шлюза: HMAC-SHA256 от "orderID|paymentID".
func signCallback(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

type orderResponse struct {
	Success bool `json:"success"`
	Order   struct {
		ID string `json:"id"`
	} `json:"order"`
	GatewayOrder struct {
		ID string `json:"id"`
	} `json:"gatewayOrder"`
}

func callPlaceOrder(client *http.Client, cfg config, payload map[string]any, key string, col *collector) (string, int, error) {
	decoded, status, err := postJSON(client, cfg.baseURL+"/api/orders", payload, key)
	col.record("PlaceOrder", decoded.latency, status)
	if err != nil {
		return "", status, err
	}
	if !isSuccessStatus(status) {
		return "", status, fmt.Errorf("place order returned status %d", status)
	}
	return decoded.body.Order.ID, status, nil
}

func callCreateGatewayOrder(client *http.Client, cfg config, col *collector) (string, int, error) {
	payload := map[string]any{
		"amountMinor": cfg.amountMinor,
		"currency":    cfg.currency,
	}
	decoded, status, err := postJSON(client, cfg.baseURL+"/api/payments/create-order", payload, "")
	col.record("CreateGatewayOrder", decoded.latency, status)
	if err != nil {
		return "", status, err
	}
	if !isSuccessStatus(status) {
		return "", status, fmt.Errorf("create gateway order returned status %d", status)
	}
	return decoded.body.GatewayOrder.ID, status, nil
}

func callVerifyPayment(client *http.Client, cfg config, gatewayOrderID, paymentID, signature string, order map[string]any, col *collector) (string, int, error) {
	payload := map[string]any{
		"gatewayOrderId":   gatewayOrderID,
		"gatewayPaymentId": paymentID,
		"signature":        signature,
		"order":            order,
	}
	decoded, status, err := postJSON(client, cfg.baseURL+"/api/payments/verify", payload, "")
	col.record("VerifyPayment", decoded.latency, status)
	if err != nil {
		return "", status, err
	}
	if !isSuccessStatus(status) {
		return "", status, fmt.Errorf("verify payment returned status %d", status)
	}
	return decoded.body.Order.ID, status, nil
}

type postResult struct {
	body    orderResponse
	latency time.Duration
}

func postJSON(client *http.Client, url string, payload map[string]any, idempotencyKey string) (postResult, int, error) {
	start := time.Now()
	result := postResult{}

	raw, err := json.Marshal(payload)
	if err != nil {
		result.latency = time.Since(start)
		return result, 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		result.latency = time.Since(start)
		return result, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, idempotencyKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.latency = time.Since(start)
		return result, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	result.latency = time.Since(start)
	if err != nil {
		return result, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if len(data) > 0 {
		// тело с ошибкой тоже JSON, ошибки декодирования не фатальны
		_ = json.Unmarshal(data, &result.body)
	}

	return result, resp.StatusCode, nil
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == "scenario" {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		fmt.Printf(
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
