package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/flood-risk-service/internal/circuitbreaker"
	"github.com/kjstillabower/flood-risk-service/internal/observability"
)

const stationsJSON = `[
	{"idEstacao": 101, "estacao": "Recife (Várzea)", "latitude": "-8.0476", "longitude": "-34.9511",
	 "precipitacao": "12,4", "acumulado_24h": 38.2, "intensidade": null, "umidade": 91,
	 "temperatura": 24.5, "dataHora": "2024-05-02 14:00:00"},
	{"idEstacao": "102", "estacao": "", "latitude": -8.0631, "longitude": -34.8711,
	 "precipitacao": "n/d", "pressao": 1004.5},
	{"idEstacao": 103, "estacao": "Sem coordenadas", "precipitacao": 3}
]`

const alertsJSON = `[
	{"municipio": "Recife", "latitude": -8.05, "longitude": -34.90, "nivelRisco": "ALTO",
	 "tipoAlerta": "Hidrológico", "dataHora": "2024-05-02T13:30:00-03:00"},
	{"latitude": "-8.01", "longitude": "-34.85"},
	{"municipio": "Olinda", "nivelRisco": "MÉDIO", "latitude": ""}
]`

func newTestClient(t *testing.T, url string, attempts int) *APACClient {
	t.Helper()
	c, err := NewAPACClient(Config{
		BaseURL:        url,
		Timeout:        2 * time.Second,
		RetryAttempts:  attempts,
		RetryBaseDelay: 5 * time.Millisecond,
		RetryMaxDelay:  20 * time.Millisecond,
		Clock:          clockwork.NewFakeClockAt(time.Date(2024, 5, 2, 18, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("NewAPACClient() error = %v", err)
	}
	return c
}

func TestNewAPACClient_InvalidBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"default when empty", "", false},
		{"http", "http://dados.apac.pe.gov.br:41120", false},
		{"unsupported scheme", "ftp://dados.apac.pe.gov.br", true},
		{"unparseable", "http://[::1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewAPACClient(Config{BaseURL: tt.baseURL})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewAPACClient() expected error, got nil")
				}
				if c != nil {
					t.Errorf("NewAPACClient() expected nil client on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewAPACClient() unexpected error: %v", err)
			}
		})
	}
}

func TestAPACClient_Stations_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != MeteorologyPath {
			t.Errorf("path = %q, want %q", r.URL.Path, MeteorologyPath)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(stationsJSON))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 1)
	stations, err := c.Stations(context.Background(), nil)
	if err != nil {
		t.Fatalf("Stations() error = %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("len(stations) = %d, want 2", len(stations))
	}

	first := stations[0]
	if first.ID != "101" || first.Name != "Recife (Várzea)" {
		t.Errorf("first station = %q %q, want 101 Recife (Várzea)", first.ID, first.Name)
	}
	if first.Location.Lat != -8.0476 || first.Location.Lng != -34.9511 {
		t.Errorf("first location = %+v", first.Location)
	}
	if first.Reading.RainfallMM != 12.4 {
		t.Errorf("RainfallMM = %v, want 12.4 (comma decimal)", first.Reading.RainfallMM)
	}
	if first.Reading.IntensityMMH != 0 {
		t.Errorf("IntensityMMH = %v, want 0 for null", first.Reading.IntensityMMH)
	}
	if first.Reading.PressureHPA != DefaultPressureHPA {
		t.Errorf("PressureHPA = %v, want default %v", first.Reading.PressureHPA, DefaultPressureHPA)
	}
	wantObserved := time.Date(2024, 5, 2, 17, 0, 0, 0, time.UTC)
	if !first.Reading.ObservedAt.Equal(wantObserved) {
		t.Errorf("ObservedAt = %v, want %v", first.Reading.ObservedAt, wantObserved)
	}

	second := stations[1]
	if second.ID != "102" || second.Name != "Desconhecida" {
		t.Errorf("second station = %q %q", second.ID, second.Name)
	}
	if second.Reading.RainfallMM != 0 {
		t.Errorf("unparseable rainfall = %v, want 0", second.Reading.RainfallMM)
	}
	if second.Reading.PressureHPA != 1004.5 {
		t.Errorf("PressureHPA = %v, want 1004.5", second.Reading.PressureHPA)
	}
	if !second.Reading.ObservedAt.Equal(time.Date(2024, 5, 2, 18, 0, 0, 0, time.UTC)) {
		t.Errorf("missing dataHora should default to clock time, got %v", second.Reading.ObservedAt)
	}
}

func TestAPACClient_Alerts_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != CEMADENPath {
			t.Errorf("path = %q, want %q", r.URL.Path, CEMADENPath)
		}
		_, _ = w.Write([]byte(alertsJSON))
	}))
	defer server.Close()

	alerts, err := newTestClient(t, server.URL, 1).Alerts(context.Background(), nil)
	if err != nil {
		t.Fatalf("Alerts() error = %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("len(alerts) = %d, want 2", len(alerts))
	}
	if alerts[0].Level != "ALTO" || alerts[0].Kind != "Hidrológico" || alerts[0].Municipality != "Recife" {
		t.Errorf("first alert = %+v", alerts[0])
	}
	if alerts[1].Level != "DESCONHECIDO" || alerts[1].Municipality != "Desconhecida" {
		t.Errorf("defaults not applied: %+v", alerts[1])
	}
	if alerts[1].Location.Lat != -8.01 {
		t.Errorf("string latitude = %v, want -8.01", alerts[1].Location.Lat)
	}
}

func TestAPACClient_EmptyAndNullBodies(t *testing.T) {
	for _, body := range []string{"", "null", "[]"} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		stations, err := newTestClient(t, server.URL, 1).Stations(context.Background(), nil)
		server.Close()
		if err != nil {
			t.Errorf("Stations(%q) error = %v", body, err)
		}
		if len(stations) != 0 {
			t.Errorf("Stations(%q) = %d stations, want 0", body, len(stations))
		}
	}
}

func TestAPACClient_ErrorHandling(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   error
		wantCalls int32
	}{
		{"not found", http.StatusNotFound, "", ErrNotFound, 1},
		{"bad request", http.StatusBadRequest, "", ErrUpstreamFailure, 3},
		{"rate limited", http.StatusTooManyRequests, "", ErrRateLimited, 3},
		{"server error", http.StatusInternalServerError, "", ErrUpstreamFailure, 3},
		{"service unavailable", http.StatusServiceUnavailable, "", ErrUpstreamFailure, 3},
		{"object instead of list", http.StatusOK, `{"dados": []}`, ErrMalformedPayload, 1},
		{"invalid json", http.StatusOK, `[{"estacao": `, ErrMalformedPayload, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL, 3).Stations(context.Background(), nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Stations() error = %v, want %v", err, tt.wantErr)
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("server calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestAPACClient_RetryThenSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(alertsJSON))
	}))
	defer server.Close()

	alerts, err := newTestClient(t, server.URL, 3).Alerts(context.Background(), nil)
	if err != nil {
		t.Fatalf("Alerts() error = %v", err)
	}
	if len(alerts) != 2 {
		t.Errorf("len(alerts) = %d, want 2", len(alerts))
	}
	if calls != 3 {
		t.Errorf("server calls = %d, want 3", calls)
	}
}

func TestAPACClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, server.URL, 3).Stations(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Stations() error = %v, want context.Canceled", err)
	}
}

func TestAPACClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c, err := NewAPACClient(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond, RetryAttempts: 1})
	if err != nil {
		t.Fatalf("NewAPACClient() error = %v", err)
	}
	_, err = c.Stations(context.Background(), nil)
	if err == nil {
		t.Fatal("Stations() expected timeout error")
	}
	if got := CategorizeError(err); got != ErrorCategoryTimeout {
		t.Errorf("CategorizeError() = %v, want timeout", got)
	}
}

func TestAPACClient_CorrelationID(t *testing.T) {
	var captured string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Get("X-Correlation-ID")
		_, _ = w.Write([]byte("[]"))
	}))
	defer server.Close()

	ctx := observability.ContextWithCorrelationID(context.Background(), "test-correlation-id-123")
	if _, err := newTestClient(t, server.URL, 1).Alerts(ctx, nil); err != nil {
		t.Fatalf("Alerts() error = %v", err)
	}
	if captured != "test-correlation-id-123" {
		t.Errorf("X-Correlation-ID header = %q, want %q", captured, "test-correlation-id-123")
	}
}

func TestAPACClient_CircuitBreakerOpens(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		Component:        ProviderMeteorology,
	})
	p := NewMeteorologyProvider(newTestClient(t, server.URL, 1), breaker)

	for i := 0; i < 2; i++ {
		if _, err := p.Fetch(context.Background()); !errors.Is(err, ErrUpstreamFailure) {
			t.Fatalf("Fetch() #%d error = %v, want ErrUpstreamFailure", i, err)
		}
	}
	_, err := p.Fetch(context.Background())
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Fetch() error = %v, want ErrCircuitOpen", err)
	}
	if calls != 2 {
		t.Errorf("server calls = %d, want 2 (open circuit must not reach upstream)", calls)
	}
	if breaker.State() != circuitbreaker.StateOpen {
		t.Errorf("breaker state = %v, want open", breaker.State())
	}
}

func TestProviders_NamesAndBatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, CEMADENPath) {
			_, _ = w.Write([]byte(alertsJSON))
			return
		}
		_, _ = w.Write([]byte(stationsJSON))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 1)
	met := NewMeteorologyProvider(c, nil)
	cem := NewCEMADENProvider(c, nil)
	if met.Name() != ProviderMeteorology || cem.Name() != ProviderCEMADEN {
		t.Errorf("provider names = %q, %q", met.Name(), cem.Name())
	}

	b, err := met.Fetch(context.Background())
	if err != nil || len(b.Stations) != 2 || len(b.Alerts) != 0 {
		t.Errorf("meteorology batch = %+v, err = %v", b, err)
	}
	b, err = cem.Fetch(context.Background())
	if err != nil || len(b.Alerts) != 2 || len(b.Stations) != 0 {
		t.Errorf("cemaden batch = %+v, err = %v", b, err)
	}
}

func TestAPACClient_calculateBackoff(t *testing.T) {
	c := &APACClient{retryBaseDelay: 100 * time.Millisecond, retryMaxDelay: 300 * time.Millisecond}
	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{1, 100 * time.Millisecond, 110 * time.Millisecond},
		{2, 200 * time.Millisecond, 220 * time.Millisecond},
		{3, 300 * time.Millisecond, 330 * time.Millisecond},
		{6, 300 * time.Millisecond, 330 * time.Millisecond},
	}
	for _, tt := range tests {
		got := c.calculateBackoff(tt.attempt)
		if got < tt.min || got > tt.max {
			t.Errorf("calculateBackoff(%d) = %v, want in [%v, %v]", tt.attempt, got, tt.min, tt.max)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	def := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-05-02T10:00:00Z", time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)},
		{"2024-05-02 10:00:00", time.Date(2024, 5, 2, 13, 0, 0, 0, time.UTC)},
		{"02/05/2024 10:00", time.Date(2024, 5, 2, 13, 0, 0, 0, time.UTC)},
		{"", def},
		{"ontem", def},
	}
	for _, tt := range tests {
		if got := parseTimestamp(tt.in, def); !got.Equal(tt.want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
