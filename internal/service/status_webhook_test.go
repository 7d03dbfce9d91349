package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/incident-comms/bot/internal/config"
	"github.com/incident-comms/bot/internal/model"
)

func testRecord() model.IncidentRecord {
	return model.NewIncidentRecord("db down", model.GeneratedMessages{
		CustomerMessage: `We are "investigating".`,
		InternalMessage: "primary failover",
	}, "U1", "C1")
}

func TestStatusWebhookDisabledWithoutURL(t *testing.T) {
	svc := NewStatusWebhookService(config.StatusWebhookConfig{}, nil, zap.NewNop())
	assert.False(t, svc.Enabled())
	svc.Deliver(context.Background(), testRecord(), nil)
}

func TestStatusWebhookDeliversDefaultBody(t *testing.T) {
	var (
		gotMethod  string
		gotHeaders http.Header
		gotBody    map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeaders = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	svc := NewStatusWebhookService(config.StatusWebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer t"},
	}, metrics, zap.NewNop())

	svc.Deliver(context.Background(), testRecord(), &model.SavedRecord{ObjectID: "o1", CreatedAt: time.Now()})

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Bearer t", gotHeaders.Get("Authorization"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, map[string]string{"message": `We are "investigating".`, "source": "chat"}, gotBody)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StatusWebhookTotal.WithLabelValues("success")))
}

func TestStatusWebhookCustomBodyAndFailure(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	svc := NewStatusWebhookService(config.StatusWebhookConfig{
		URL:    srv.URL,
		Method: http.MethodPut,
		Body:   "{{incident.user}}@{{incident.channel}}: {{incident.internal_message}}",
	}, metrics, zap.NewNop())

	svc.Deliver(context.Background(), testRecord(), nil)

	assert.Equal(t, "U1@C1: primary failover", gotBody)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StatusWebhookTotal.WithLabelValues("failure")))
}

func TestStatusWebhookSendHTTPErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewStatusWebhookService(config.StatusWebhookConfig{URL: srv.URL}, nil, zap.NewNop())
	err := svc.sendHTTP(context.Background(), "{}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
