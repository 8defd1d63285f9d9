package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-feature/assignd/pkg/eval"
	"github.com/open-feature/assignd/pkg/store"
	"github.com/open-feature/assignd/pkg/telemetry"
)

const Flags = `{
  "createdAt": "2024-04-17T19:40:53.716Z",
  "environment": {"name": "Test"},
  "flags": {
    "checkout-button-color": {
      "key": "checkout-button-color",
      "enabled": true,
      "variationType": "STRING",
      "variations": {
        "blue": {"key": "blue", "value": "#0000CC"},
        "green": {"key": "green", "value": "#00CC00"}
      },
      "allocations": [
        {
          "key": "experiment",
          "splits": [
            {"variationKey": "blue", "shards": [{"salt": "checkout-experiment", "ranges": [{"start": 0, "end": 5000}]}]},
            {"variationKey": "green", "shards": [{"salt": "checkout-experiment", "ranges": [{"start": 5000, "end": 10000}]}]}
          ]
        }
      ]
    },
    "vip-only": {
      "key": "vip-only",
      "enabled": true,
      "variationType": "BOOLEAN",
      "variations": {"on": {"key": "on", "value": true}},
      "allocations": [
        {
          "key": "vips",
          "rules": [{"conditions": [{"attribute": "tier", "operator": "ONE_OF", "value": ["vip"]}]}],
          "splits": [{"variationKey": "on", "shards": []}]
        }
      ]
    },
    "shoe-flag": {
      "key": "shoe-flag",
      "enabled": true,
      "variationType": "STRING",
      "variations": {"shoe-bandit": {"key": "shoe-bandit", "value": "shoe-bandit"}},
      "allocations": [{"key": "everyone", "splits": [{"variationKey": "shoe-bandit", "shards": []}]}]
    }
  },
  "bandits": {
    "shoe-bandit": [
      {"key": "shoe-bandit", "flagKey": "shoe-flag", "variationKey": "shoe-bandit", "variationValue": "shoe-bandit"}
    ]
  }
}`

func newTestService(t *testing.T, loaded bool) (*HTTPService, *prometheus.Registry) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	holder := store.NewHolder(nil)
	if loaded {
		ufc, err := store.ParseUniversalFlagConfig([]byte(Flags))
		require.NoError(t, err)
		holder.Swap(store.FromServerResponse(ufc, nil, logger))
	}
	reg := prometheus.NewRegistry()
	metrics, err := telemetry.NewMetrics(reg)
	require.NoError(t, err)
	return &HTTPService{
		HTTPServiceConfiguration: &HTTPServiceConfiguration{Port: 0},
		Holder:                   holder,
		Evaluator:                eval.NewEvaluator(),
		Metrics:                  metrics,
		Gatherer:                 reg,
		Logger:                   log.NewEntry(logger),
	}, reg
}

func post(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec, decoded
}

func TestAssignment_Match_ReturnsVariation(t *testing.T) {
	svc, _ := newTestService(t, true)

	rec, body := post(t, svc.Handler(), "/flags/checkout-button-color/assignment",
		`{"subjectKey": "user-42", "subjectAttributes": {"country": "US"}, "variationType": "STRING"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "experiment", body["allocationKey"])
	variation := body["variation"].(map[string]interface{})
	assert.Equal(t, "blue", variation["key"])
	assert.Equal(t, "#0000CC", variation["value"])
}

func TestAssignment_ListAttribute_Accepted(t *testing.T) {
	svc, _ := newTestService(t, true)

	rec, body := post(t, svc.Handler(), "/flags/vip-only/assignment",
		`{"subjectKey": "s", "subjectAttributes": {"tier": ["free", "vip"], "cohorts": [1, 2]}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "vips", body["allocationKey"])
}

func TestAssignment_Errors_MapToStatus(t *testing.T) {
	loaded, _ := newTestService(t, true)
	empty, _ := newTestService(t, false)

	tests := map[string]struct {
		svc    *HTTPService
		path   string
		body   string
		status int
		code   string
	}{
		"unknown flag": {
			svc: loaded, path: "/flags/nope/assignment", body: `{"subjectKey": "s"}`,
			status: http.StatusNotFound, code: "FLAG_NOT_FOUND",
		},
		"type mismatch": {
			svc: loaded, path: "/flags/vip-only/assignment", body: `{"subjectKey": "s", "variationType": "STRING"}`,
			status: http.StatusBadRequest, code: "TYPE_MISMATCH",
		},
		"no allocation": {
			svc: loaded, path: "/flags/vip-only/assignment", body: `{"subjectKey": "s", "subjectAttributes": {"tier": "free"}}`,
			status: http.StatusUnprocessableEntity, code: "NO_ALLOCATION_MATCHED",
		},
		"not loaded": {
			svc: empty, path: "/flags/vip-only/assignment", body: `{"subjectKey": "s"}`,
			status: http.StatusServiceUnavailable, code: "CONFIGURATION_MISSING",
		},
		"malformed body": {
			svc: loaded, path: "/flags/vip-only/assignment", body: `{"subjectKey": `,
			status: http.StatusBadRequest, code: "BAD_REQUEST",
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec, body := post(t, tt.svc.Handler(), tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, body["errorCode"])
			assert.NotEmpty(t, body["errorMessage"])
		})
	}
}

func TestDetails_NoMatch_StillOK(t *testing.T) {
	svc, _ := newTestService(t, true)

	rec, body := post(t, svc.Handler(), "/flags/vip-only/details",
		`{"subjectKey": "s", "subjectAttributes": {"tier": "free"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NO_ALLOCATION_MATCHED", body["flagEvaluationCode"])
	allocations := body["allocations"].([]interface{})
	require.Len(t, allocations, 1)
	assert.Equal(t, "FAILING_RULE", allocations[0].(map[string]interface{})["allocationEvaluationCode"])
}

func TestBanditAction_BanditMissing_FallsBackWithOK(t *testing.T) {
	svc, _ := newTestService(t, true)

	rec, body := post(t, svc.Handler(), "/flags/shoe-flag/bandit-action", `{
		"subjectKey": "user-42",
		"subjectAttributes": {"numericAttributes": {"age": 30}, "categoricalAttributes": {}},
		"actions": {"nike": {"numericAttributes": {}, "categoricalAttributes": {}}},
		"defaultVariation": "control"
	}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shoe-bandit", body["variation"])
	assert.Nil(t, body["action"])
	assert.Equal(t, "BANDIT_NOT_FOUND", body["errorCode"])
}

func TestBanditAction_UnknownFlag_DefaultVariation(t *testing.T) {
	svc, _ := newTestService(t, true)

	rec, body := post(t, svc.Handler(), "/flags/nope/bandit-action",
		`{"subjectKey": "user-42", "actions": {}, "defaultVariation": "control"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "control", body["variation"])
	assert.Equal(t, "FLAG_NOT_FOUND", body["errorCode"])
}

func TestConfiguration_ReportsMetadata(t *testing.T) {
	svc, _ := newTestService(t, true)
	req := httptest.NewRequest(http.MethodGet, "/configuration", nil)
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var md store.Metadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &md))
	assert.Equal(t, "Test", md.Environment)
	assert.Equal(t, 3, md.Flags)

	empty, _ := newTestService(t, false)
	rec = httptest.NewRecorder()
	empty.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/configuration", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetrics_ExposesEvaluationCounters(t *testing.T) {
	svc, _ := newTestService(t, true)
	h := svc.Handler()
	post(t, h, "/flags/checkout-button-color/assignment", `{"subjectKey": "user-42"}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	raw, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `assignd_evaluation_flags_total{flag="checkout-button-color",outcome="MATCH"} 1`)
}

func TestServe_NoConfiguration_Error(t *testing.T) {
	svc := &HTTPService{}
	assert.Error(t, svc.Serve(context.Background()))
}

func TestServe_StopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
