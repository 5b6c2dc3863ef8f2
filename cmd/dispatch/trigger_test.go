package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Projeto12026/crmcontador-sub000/internal/interfaces/http/dto"
	"github.com/Projeto12026/crmcontador-sub000/internal/interfaces/http/middleware"
)

func TestTriggerJob_PostsWithSecret(t *testing.T) {
	var gotPath, gotSecret string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSecret = r.Header.Get(middleware.CronSecretHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dto.NewSuccessResponse(map[string]int{"sent": 2}))
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := triggerJob(context.Background(), srv.Client(), triggerOptions{
		BaseURL: srv.URL + "/",
		Secret:  "a-long-cron-secret",
		Job:     "run-daily",
		Timeout: time.Minute,
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/jobs/run-daily", gotPath)
	assert.Equal(t, "a-long-cron-secret", gotSecret)
	assert.Empty(t, gotBody)
	assert.Contains(t, out.String(), `"sent": 2`)
}

func TestTriggerJob_SendsGatewayOverride(t *testing.T) {
	var got dto.RunScheduledSendsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(dto.NewSuccessResponse(nil))
	}))
	defer srv.Close()

	err := triggerJob(context.Background(), srv.Client(), triggerOptions{
		BaseURL: srv.URL,
		Job:     "run-scheduled-sends",
		Gateway: dto.GatewayOverride{GatewayBaseURL: "https://gw.example.com", GatewayToken: "tok"},
	}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "https://gw.example.com", got.GatewayBaseURL)
	assert.Equal(t, "tok", got.GatewayToken)
}

func TestTriggerJob_ErrorEnvelopeFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(dto.NewErrorResponse(dto.ErrCodeRunInProgress, "another run is in progress"))
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := triggerJob(context.Background(), srv.Client(), triggerOptions{BaseURL: srv.URL, Job: "sync-clone"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "another run is in progress")
	assert.Contains(t, out.String(), dto.ErrCodeRunInProgress)
}

func TestTriggerJob_NonJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := triggerJob(context.Background(), srv.Client(), triggerOptions{BaseURL: srv.URL, Job: "sync-clone"}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestTriggerJob_RequiresBaseURL(t *testing.T) {
	err := triggerJob(context.Background(), http.DefaultClient, triggerOptions{Job: "sync-clone"}, io.Discard)
	assert.EqualError(t, err, "jobs.backend_base_url is not configured")
}

func TestExecute_RejectsUnknownTriggerJob(t *testing.T) {
	assert.Equal(t, exitUsage, execute([]string{"trigger", "send-everything"}, io.Discard))
	assert.Equal(t, exitUsage, execute([]string{"trigger"}, io.Discard))
}
