package prediction

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"forexBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{BaseURL: "http://x"})
	assert.Error(t, err)

	_, err = New(Config{Logger: nopLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestPredict_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []float64{1.1, 1.2, 1.3}, req.Prices)

		w.Write([]byte(`{"predicted_prices": [1.25, 1.35], "model": "lstm", "horizon": 2}`))
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL + "/", Logger: nopLogger{}})
	require.NoError(t, err)

	p, err := client.Predict(context.Background(), []float64{1.1, 1.2, 1.3})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.25, 1.35}, p.PredictedPrices)
	assert.Equal(t, 3, p.FieldCount)
}

func TestPredict_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error": "model not loaded"}`},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error": "need 100 prices"}`},
		{name: "missing predicted_prices", status: http.StatusOK, body: `{"result": []}`},
		{name: "wrong predicted_prices type", status: http.StatusOK, body: `{"predicted_prices": "soon"}`},
		{name: "not json", status: http.StatusOK, body: `ok`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := New(Config{BaseURL: server.URL, Logger: nopLogger{}})
			require.NoError(t, err)

			_, err = client.Predict(context.Background(), []float64{1})
			assert.ErrorIs(t, err, ports.ErrPredictionService)
		})
	}
}

func TestPredict_TransportFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	client, err := New(Config{BaseURL: "http://" + addr, Logger: nopLogger{}})
	require.NoError(t, err)

	_, err = client.Predict(context.Background(), []float64{1})
	assert.ErrorIs(t, err, ports.ErrPredictionService)
}
