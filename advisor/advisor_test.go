package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)

func prices(n int) []market.PriceSample {
	out := make([]market.PriceSample, n)
	for i := range out {
		out[i] = market.PriceSample{Time: now.Add(time.Duration(i-n) * time.Hour), Price: 100 + float64(i)}
	}
	return out
}

func TestParseAnswer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		reply   string
		action  market.Action
		conf    float64
		wantErr bool
	}{
		{"plain", `{"action":"BUY","confidence":82,"reasoning":"trend up"}`, market.Buy, 82, false},
		{"fenced", "```json\n{\"action\":\"sell\",\"confidence\":65,\"reasoning\":\"x\"}\n```", market.Sell, 65, false},
		{"clamped high", `{"action":"HOLD","confidence":140}`, market.Hold, 100, false},
		{"clamped low", `{"action":"HOLD","confidence":-3}`, market.Hold, 0, false},
		{"unknown action", `{"action":"SHORT","confidence":70}`, "", 0, true},
		{"not json", "I think you should buy", "", 0, true},
		{"broken json", `{"action":"BUY",}`, "", 0, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, err := ParseAnswer(tt.reply)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.action, rec.Action)
			assert.Equal(t, tt.conf, rec.Confidence)
		})
	}
}

func TestPromptUsesLastTenPrices(t *testing.T) {
	t.Parallel()

	p := Prompt(market.Assets["ETHUSDT"], prices(15))
	assert.Contains(t, p, "Ethereum (ETHUSDT) - crypto")
	assert.Contains(t, p, "Recent prices: 105.00, 106.00, 107.00, 108.00, 109.00, 110.00, 111.00, 112.00, 113.00, 114.00\n")
	assert.NotContains(t, p, "104.00")
}

func TestNoop(t *testing.T) {
	t.Parallel()

	rec, err := Noop{Clock: clock.NewFake(now)}.Recommend(context.Background(), market.Assets["AAPL"], nil)
	require.NoError(t, err)
	assert.Equal(t, market.Hold, rec.Action)
	assert.Zero(t, rec.Confidence)
	assert.Equal(t, now, rec.Time)
}

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-3.5-turbo", req.Model)
		if assert.Len(t, req.Messages, 1) {
			assert.Contains(t, req.Messages[0].Content, "Recent prices:")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": now.Unix(),
			"model":   "gpt-3.5-turbo",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestOpenAI(url string) *OpenAI {
	return NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: url + "/v1"}, clock.NewFake(now), zerolog.Nop())
}

func TestOpenAIRecommend(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, http.StatusOK, `{"action":"BUY","confidence":78,"reasoning":"higher lows"}`)
	o := newTestOpenAI(srv.URL)

	rec, err := o.Recommend(context.Background(), market.Assets["BTCUSDT"], prices(20))
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", rec.Asset)
	assert.Equal(t, market.Buy, rec.Action)
	assert.Equal(t, 78.0, rec.Confidence)
	assert.Equal(t, "higher lows", rec.Reasoning)
	assert.Equal(t, ModelVersion, rec.Model)
	assert.Equal(t, now, rec.Time)
}

func TestOpenAIRecommendFailsClosed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	btc := market.Assets["BTCUSDT"]

	bad := chatServer(t, http.StatusOK, "buy buy buy")
	_, err := newTestOpenAI(bad.URL).Recommend(ctx, btc, prices(20))
	assert.Error(t, err)

	down := chatServer(t, http.StatusBadRequest, "")
	_, err = newTestOpenAI(down.URL).Recommend(ctx, btc, prices(20))
	assert.Error(t, err)

	_, err = newTestOpenAI(bad.URL).Recommend(ctx, btc, nil)
	assert.Error(t, err)
}
