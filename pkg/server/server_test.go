// Copyright (C) 2025, Govmarkets Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/govmarkets/futarchy/pkg/config"
	"github.com/govmarkets/futarchy/pkg/engine"
	"github.com/govmarkets/futarchy/pkg/ids"
	"github.com/govmarkets/futarchy/pkg/log"
	"github.com/govmarkets/futarchy/pkg/registry"
	"github.com/govmarkets/futarchy/pkg/spot"
)

func testPair(outcome uint8) registry.Pair {
	return registry.Pair{
		Asset:  fmt.Sprintf("COND%d_GOV", outcome),
		Stable: fmt.Sprintf("COND%d_USD", outcome),
	}
}

func newTradingEngine(t *testing.T) *engine.Engine {
	t.Helper()

	params := config.Default()
	params.ReviewPeriodMs = 60_000
	params.FeeSchedule = config.FeeScheduleParams{InitialFeeBps: 30, DurationMs: 0}
	params.Twap = config.TwapParams{StartDelayMs: 0, StepMs: 1_000, StepMaxBps: 10_000}
	params.ConditionalLiquidityRatioPercent = 50

	sp := spot.New(ids.GenerateTestID(), 30, log.NoOp())
	_, err := sp.AddLiquidity(1_000_000, 1_000_000, 0)
	require.NoError(t, err)

	reg := registry.New(
		registry.Entry{Pair: testPair(0)},
		registry.Entry{Pair: testPair(1)},
	)
	eng, err := engine.New(params, sp, reg, nil, nil, log.NoOp())
	require.NoError(t, err)

	// Backdate the lifecycle so the trading window spans the wall clock
	// the handlers read.
	t0 := time.Now().Add(-2 * time.Minute)
	_, err = eng.CreateProposal(ids.GenerateTestID(), 2, nil, t0)
	require.NoError(t, err)
	require.NoError(t, eng.RegisterOutcome(0, testPair(0)))
	require.NoError(t, eng.RegisterOutcome(1, testPair(1)))
	require.NoError(t, eng.AdvanceToReview(t0))
	require.NoError(t, eng.AdvanceToTrading(t0.Add(time.Minute)))
	return eng
}

func TestQueryEndpoints(t *testing.T) {
	require := require.New(t)
	srv := New(newTradingEngine(t), nil, 0, log.NoOp())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(err)
	require.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/status")
	require.NoError(err)
	var status engine.StatusView
	require.NoError(json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	require.True(status.Spot.Locked)
	require.NotNil(status.Market)
	require.Equal("trading", status.Market.State)
	require.Len(status.Market.Pools, 2)

	resp, err = http.Get(ts.URL + "/market/twap/0")
	require.NoError(err)
	require.Equal(http.StatusOK, resp.StatusCode)
	var twap map[string]string
	require.NoError(json.NewDecoder(resp.Body).Decode(&twap))
	resp.Body.Close()
	require.NotEmpty(twap["twap"])

	resp, err = http.Get(ts.URL + "/market/twap/9")
	require.NoError(err)
	require.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

func TestMarketNotFoundWithoutProposal(t *testing.T) {
	require := require.New(t)

	sp := spot.New(ids.GenerateTestID(), 30, log.NoOp())
	_, err := sp.AddLiquidity(1_000_000, 1_000_000, 0)
	require.NoError(err)
	eng, err := engine.New(config.Default(), sp, registry.New(), nil, nil, log.NoOp())
	require.NoError(err)

	ts := httptest.NewServer(New(eng, nil, 0, log.NoOp()).Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/market")
	require.NoError(err)
	require.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCommandEndpoint(t *testing.T) {
	require := require.New(t)
	eng := newTradingEngine(t)
	ts := httptest.NewServer(New(eng, nil, 0, log.NoOp()).Router())
	defer ts.Close()

	user := ids.Generate()
	post := func(body string) (*http.Response, error) {
		return http.Post(ts.URL+"/commands", "application/json", bytes.NewBufferString(body))
	}

	resp, err := post(fmt.Sprintf(`{"type":"split","user":%q,"kind":"stable","amount":100000}`, user.String()))
	require.NoError(err)
	require.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = post(fmt.Sprintf(`{"type":"swap","user":%q,"outcome":1,"direction":"stable_for_asset","amount":50000}`, user.String()))
	require.NoError(err)
	require.Equal(http.StatusOK, resp.StatusCode)
	var out commandResponse
	require.NoError(json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	require.Greater(out.Amount, uint64(0))

	resp, err = http.Get(ts.URL + "/balances/" + user.String())
	require.NoError(err)
	require.Equal(http.StatusOK, resp.StatusCode)
	var balances struct {
		Slots []uint64 `json:"slots"`
	}
	require.NoError(json.NewDecoder(resp.Body).Decode(&balances))
	resp.Body.Close()
	require.Len(balances.Slots, 4)
	require.Equal(uint64(100_000), balances.Slots[1])
	require.Equal(uint64(50_000), balances.Slots[3])

	// Unknown command type is a client error.
	resp, err = post(`{"type":"teleport"}`)
	require.NoError(err)
	require.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Overdrawn swap surfaces the balance error without state change.
	resp, err = post(fmt.Sprintf(`{"type":"swap","user":%q,"outcome":0,"direction":"stable_for_asset","amount":900000}`, user.String()))
	require.NoError(err)
	require.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

func TestPriceStream(t *testing.T) {
	require := require.New(t)
	srv := New(newTradingEngine(t), nil, 10*time.Millisecond, log.NoOp())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	var first, second engine.StatusView
	require.NoError(conn.ReadJSON(&first))
	require.NoError(conn.ReadJSON(&second))
	require.Equal("trading", first.Market.State)
	require.Equal(first.Spot.LiveAsset, second.Spot.LiveAsset)
}
