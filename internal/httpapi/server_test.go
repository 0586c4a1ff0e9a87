package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ccyingfu/q-alpha/internal/backtest"
	"github.com/ccyingfu/q-alpha/internal/domain"
	"github.com/ccyingfu/q-alpha/internal/fetch"
	"github.com/ccyingfu/q-alpha/internal/store"
)

// stubFetcher serves canned bars per asset code.
type stubFetcher struct {
	bars map[string][]domain.Bar
}

func (f *stubFetcher) FetchDaily(_ context.Context, asset *domain.Asset, start, end domain.Date) ([]domain.Bar, error) {
	bars, ok := f.bars[asset.Code]
	if !ok || len(bars) == 0 {
		return nil, &fetch.NoDataError{Code: asset.Code, Start: start.String(), End: end.String()}
	}
	return bars, nil
}

func testServer(t *testing.T) (*store.SQLiteStore, *stubFetcher, http.Handler) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	fetcher := &stubFetcher{bars: make(map[string][]domain.Bar)}
	refresher := fetch.NewRefresher(s, map[domain.Market]fetch.Fetcher{
		domain.MarketCN: fetcher,
	}, slog.Default())
	refresher.Now = func() time.Time {
		return time.Date(2024, 6, 28, 12, 0, 0, 0, time.UTC)
	}

	engine := backtest.NewEngine(s, backtest.NewCalculator(0.03, 252),
		map[string]string{"hs300": "000300"}, slog.Default())
	srv := NewServer(s, engine, refresher, slog.Default())
	return s, fetcher, srv.Handler()
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func weeklyBars(code string, closes ...float64) []domain.Bar {
	start, _ := domain.ParseDate("2024-06-24")
	bars := make([]domain.Bar, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, domain.Bar{
			Code:   code,
			Date:   start.AddDays(i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1e6,
		})
	}
	return bars
}

func TestHealth(t *testing.T) {
	_, _, h := testServer(t)
	rec := doRequest(t, h, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", rec.Code)
	}
}

func TestAssetCRUD(t *testing.T) {
	_, _, h := testServer(t)

	rec := doRequest(t, h, "POST", "/api/assets", AssetPayload{
		Code: "000300", Name: "CSI 300", Type: "index",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create asset = %d: %s", rec.Code, rec.Body)
	}
	var created AssetResponse
	decodeResponse(t, rec, &created)
	if created.ID == 0 {
		t.Fatal("created asset has zero ID")
	}

	rec = doRequest(t, h, "GET", fmt.Sprintf("/api/assets/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get asset = %d", rec.Code)
	}
	var got AssetResponse
	decodeResponse(t, rec, &got)
	if got.Code != "000300" || got.Type != "index" {
		t.Errorf("got asset %+v, want code 000300 type index", got)
	}

	rec = doRequest(t, h, "GET", "/api/assets/code/000300", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get by code = %d", rec.Code)
	}

	rec = doRequest(t, h, "GET", "/api/assets?type=index", nil)
	var list []AssetResponse
	decodeResponse(t, rec, &list)
	if len(list) != 1 {
		t.Errorf("list by type = %d assets, want 1", len(list))
	}

	rec = doRequest(t, h, "PUT", fmt.Sprintf("/api/assets/%d", created.ID), AssetPayload{
		Code: "000300", Name: "CSI 300 Index", Type: "index",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update asset = %d: %s", rec.Code, rec.Body)
	}
	decodeResponse(t, rec, &got)
	if got.Name != "CSI 300 Index" {
		t.Errorf("updated name = %q, want CSI 300 Index", got.Name)
	}

	rec = doRequest(t, h, "DELETE", fmt.Sprintf("/api/assets/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete asset = %d", rec.Code)
	}
	rec = doRequest(t, h, "GET", fmt.Sprintf("/api/assets/%d", created.ID), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted asset = %d, want 404", rec.Code)
	}
}

func TestCreateAssetValidation(t *testing.T) {
	_, _, h := testServer(t)

	rec := doRequest(t, h, "POST", "/api/assets", AssetPayload{
		Code: "000300", Name: "CSI 300", Type: "crypto",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type = %d, want 400", rec.Code)
	}

	payload := AssetPayload{Code: "000300", Name: "CSI 300", Type: "index"}
	doRequest(t, h, "POST", "/api/assets", payload)
	rec = doRequest(t, h, "POST", "/api/assets", payload)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate code = %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, "GET", "/api/assets?type=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("list unknown type = %d, want 400", rec.Code)
	}
}

func TestStrategyCRUD(t *testing.T) {
	_, _, h := testServer(t)

	threshold := 0.05
	rec := doRequest(t, h, "POST", "/api/strategies", StrategyPayload{
		Name:               "balanced",
		Allocation:         map[string]float64{"000300": 0.6, "000012": 0.4},
		RebalanceType:      "threshold",
		RebalanceThreshold: &threshold,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create strategy = %d: %s", rec.Code, rec.Body)
	}
	var created StrategyResponse
	decodeResponse(t, rec, &created)
	if created.ID == 0 {
		t.Fatal("created strategy has zero ID")
	}
	if created.RebalanceThreshold == nil || *created.RebalanceThreshold != 0.05 {
		t.Errorf("threshold = %v, want 0.05", created.RebalanceThreshold)
	}

	rec = doRequest(t, h, "GET", "/api/strategies/name/balanced", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get by name = %d", rec.Code)
	}

	rec = doRequest(t, h, "PUT", fmt.Sprintf("/api/strategies/%d", created.ID), StrategyPayload{
		Name:          "balanced",
		Allocation:    map[string]float64{"000300": 0.5, "000012": 0.5},
		RebalanceType: "yearly",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update strategy = %d: %s", rec.Code, rec.Body)
	}
	var updated StrategyResponse
	decodeResponse(t, rec, &updated)
	if updated.Allocation["000300"] != 0.5 {
		t.Errorf("updated allocation = %v", updated.Allocation)
	}
	if updated.RebalanceThreshold != nil {
		t.Errorf("threshold after update = %v, want nil", updated.RebalanceThreshold)
	}

	rec = doRequest(t, h, "DELETE", fmt.Sprintf("/api/strategies/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete strategy = %d", rec.Code)
	}
}

func TestStrategyValidation(t *testing.T) {
	_, _, h := testServer(t)

	rec := doRequest(t, h, "POST", "/api/strategies", StrategyPayload{
		Name:       "half",
		Allocation: map[string]float64{"000300": 0.5},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("allocation sum 0.5 = %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, "POST", "/api/strategies", StrategyPayload{
		Name:          "bad rebalance",
		Allocation:    map[string]float64{"000300": 1.0},
		RebalanceType: "hourly",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown rebalance type = %d, want 400", rec.Code)
	}
}

func TestMarketDaily(t *testing.T) {
	s, _, h := testServer(t)
	ctx := context.Background()

	a := &domain.Asset{Code: "000300", Name: "CSI 300", Type: domain.AssetIndex}
	if err := s.CreateAsset(ctx, a); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	if err := s.UpsertBars(ctx, a.ID, weeklyBars("000300", 100, 101, 102, 99, 103)); err != nil {
		t.Fatalf("UpsertBars: %v", err)
	}

	rec := doRequest(t, h, "GET", "/api/market/000300/daily", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("market daily = %d: %s", rec.Code, rec.Body)
	}
	var resp MarketDataResponse
	decodeResponse(t, rec, &resp)
	if resp.Count != 5 || len(resp.Data) != 5 {
		t.Errorf("count = %d, data len = %d, want 5", resp.Count, len(resp.Data))
	}
	if resp.StartDate.String() != "2024-06-24" || resp.EndDate.String() != "2024-06-28" {
		t.Errorf("range = %s ~ %s", resp.StartDate, resp.EndDate)
	}

	rec = doRequest(t, h, "GET", "/api/market/000300/daily?start=2024-06-26&end=2024-06-27", nil)
	decodeResponse(t, rec, &resp)
	if resp.Count != 2 {
		t.Errorf("filtered count = %d, want 2", resp.Count)
	}

	rec = doRequest(t, h, "GET", "/api/market/000300/daily?start=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad start date = %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, "GET", "/api/market/999999/daily", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown asset = %d, want 404", rec.Code)
	}
}

func TestUpdateAll(t *testing.T) {
	s, fetcher, h := testServer(t)
	ctx := context.Background()

	rec := doRequest(t, h, "POST", "/api/market/update-all", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("update-all with no assets = %d, want 404", rec.Code)
	}

	a := &domain.Asset{Code: "000300", Name: "CSI 300", Type: domain.AssetIndex}
	if err := s.CreateAsset(ctx, a); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	fetcher.bars["000300"] = weeklyBars("000300", 100, 101, 102)

	rec = doRequest(t, h, "POST", "/api/market/update-all", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("update-all = %d: %s", rec.Code, rec.Body)
	}

	var status UpdateStatus
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = doRequest(t, h, "GET", "/api/market/update-status", nil)
		decodeResponse(t, rec, &status)
		if !status.IsUpdating {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("update did not finish in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status.Total != 1 || status.Updated != 1 {
		t.Errorf("status = %+v, want total 1 updated 1", status)
	}
	if len(status.Errors) != 0 {
		t.Errorf("errors = %v, want none", status.Errors)
	}

	latest, err := s.LatestBarDate(ctx, a.ID)
	if err != nil {
		t.Fatalf("LatestBarDate: %v", err)
	}
	if latest.String() != "2024-06-26" {
		t.Errorf("latest bar = %s, want 2024-06-26", latest)
	}
}

func runFixture(t *testing.T, s *store.SQLiteStore, fetcher *stubFetcher, h http.Handler) int64 {
	t.Helper()
	ctx := context.Background()
	a := &domain.Asset{Code: "000300", Name: "CSI 300", Type: domain.AssetIndex}
	if err := s.CreateAsset(ctx, a); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	fetcher.bars["000300"] = weeklyBars("000300", 100, 101, 102, 99, 103)

	rec := doRequest(t, h, "POST", "/api/strategies", StrategyPayload{
		Name:       "all in",
		Allocation: map[string]float64{"000300": 1.0},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create strategy = %d: %s", rec.Code, rec.Body)
	}
	var strat StrategyResponse
	decodeResponse(t, rec, &strat)
	return strat.ID
}

func TestRunBacktest(t *testing.T) {
	s, fetcher, h := testServer(t)
	stratID := runFixture(t, s, fetcher, h)

	rec := doRequest(t, h, "POST", "/api/backtest/run", BacktestRequest{
		StrategyID:     stratID,
		StartDate:      mustDate(t, "2024-06-24"),
		EndDate:        mustDate(t, "2024-06-28"),
		InitialCapital: 100000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("run backtest = %d: %s", rec.Code, rec.Body)
	}
	var resp BacktestResponse
	decodeResponse(t, rec, &resp)
	if resp.ID == 0 {
		t.Fatal("result has zero ID")
	}
	if resp.StrategyName != "all in" {
		t.Errorf("strategy name = %q, want all in", resp.StrategyName)
	}
	if math.Abs(resp.Metrics.TotalReturn-0.03) > 1e-9 {
		t.Errorf("total return = %g, want 0.03", resp.Metrics.TotalReturn)
	}
	if len(resp.EquityCurve) != 5 {
		t.Errorf("equity curve len = %d, want 5", len(resp.EquityCurve))
	}
	if len(resp.BenchmarkCurves["hs300"]) != 5 {
		t.Errorf("benchmark curve len = %d, want 5", len(resp.BenchmarkCurves["hs300"]))
	}

	rec = doRequest(t, h, "GET", "/api/backtest/results", nil)
	var list []BacktestResponse
	decodeResponse(t, rec, &list)
	if len(list) != 1 {
		t.Fatalf("results list len = %d, want 1", len(list))
	}

	rec = doRequest(t, h, "GET", fmt.Sprintf("/api/backtest/results/%d", resp.ID), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get result = %d", rec.Code)
	}
}

func TestRunBacktestErrors(t *testing.T) {
	s, fetcher, h := testServer(t)
	stratID := runFixture(t, s, fetcher, h)

	rec := doRequest(t, h, "POST", "/api/backtest/run", BacktestRequest{
		StrategyID:     9999,
		StartDate:      mustDate(t, "2024-06-24"),
		EndDate:        mustDate(t, "2024-06-28"),
		InitialCapital: 100000,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown strategy = %d, want 404", rec.Code)
	}

	rec = doRequest(t, h, "POST", "/api/backtest/run", BacktestRequest{
		StrategyID:     stratID,
		StartDate:      mustDate(t, "2024-06-28"),
		EndDate:        mustDate(t, "2024-06-24"),
		InitialCapital: 100000,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inverted dates = %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, "POST", "/api/backtest/run", BacktestRequest{
		StrategyID:     stratID,
		StartDate:      mustDate(t, "2024-06-24"),
		EndDate:        mustDate(t, "2024-06-28"),
		InitialCapital: 0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero capital = %d, want 400", rec.Code)
	}

	// No overlap between the requested range and available history.
	rec = doRequest(t, h, "POST", "/api/backtest/run", BacktestRequest{
		StrategyID:     stratID,
		StartDate:      mustDate(t, "2023-01-01"),
		EndDate:        mustDate(t, "2023-01-31"),
		InitialCapital: 100000,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("out-of-range window = %d, want 422: %s", rec.Code, rec.Body)
	}
}

func TestResultChart(t *testing.T) {
	s, fetcher, h := testServer(t)
	stratID := runFixture(t, s, fetcher, h)

	rec := doRequest(t, h, "POST", "/api/backtest/run", BacktestRequest{
		StrategyID:     stratID,
		StartDate:      mustDate(t, "2024-06-24"),
		EndDate:        mustDate(t, "2024-06-28"),
		InitialCapital: 100000,
	})
	var resp BacktestResponse
	decodeResponse(t, rec, &resp)

	rec = doRequest(t, h, "GET", fmt.Sprintf("/api/backtest/results/%d/chart", resp.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("chart = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}
	if body := rec.Body.Bytes(); len(body) < 8 || !bytes.HasPrefix(body, []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("response body is not a PNG")
	}
}

func TestDeleteResults(t *testing.T) {
	s, fetcher, h := testServer(t)
	stratID := runFixture(t, s, fetcher, h)

	var ids []int64
	for i := 0; i < 3; i++ {
		rec := doRequest(t, h, "POST", "/api/backtest/run", BacktestRequest{
			StrategyID:     stratID,
			StartDate:      mustDate(t, "2024-06-24"),
			EndDate:        mustDate(t, "2024-06-28"),
			InitialCapital: 100000,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("run %d = %d: %s", i, rec.Code, rec.Body)
		}
		var resp BacktestResponse
		decodeResponse(t, rec, &resp)
		ids = append(ids, resp.ID)
	}

	rec := doRequest(t, h, "DELETE", fmt.Sprintf("/api/backtest/results/%d", ids[0]), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete result = %d", rec.Code)
	}
	rec = doRequest(t, h, "DELETE", fmt.Sprintf("/api/backtest/results/%d", ids[0]), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete twice = %d, want 404", rec.Code)
	}

	rec = doRequest(t, h, "POST", "/api/backtest/batch-delete", BatchDeleteRequest{
		IDs: []int64{ids[1], ids[2], 9999},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("batch delete = %d: %s", rec.Code, rec.Body)
	}
	var bd BatchDeleteResponse
	decodeResponse(t, rec, &bd)
	if bd.DeletedCount != 2 {
		t.Errorf("deleted count = %d, want 2", bd.DeletedCount)
	}

	rec = doRequest(t, h, "GET", "/api/backtest/results", nil)
	var list []BacktestResponse
	decodeResponse(t, rec, &list)
	if len(list) != 0 {
		t.Errorf("results after deletes = %d, want 0", len(list))
	}
}

func mustDate(t *testing.T, s string) domain.Date {
	t.Helper()
	d, err := domain.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}
