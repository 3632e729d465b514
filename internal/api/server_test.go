package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colively/campaign-engine/internal/campaign"
	"github.com/colively/campaign-engine/internal/config"
	"github.com/colively/campaign-engine/internal/domain"
	"github.com/colively/campaign-engine/internal/render"
)

type fakeRunner struct {
	opts campaign.ManualOptions
	run  domain.CampaignRun
}

func (f *fakeRunner) RunManual(_ context.Context, opts campaign.ManualOptions) domain.CampaignRun {
	f.opts = opts
	return f.run
}

type fakePreview struct {
	listings []*domain.Listing
	err      error
}

func (f *fakePreview) TopListingsByCountry(_ context.Context, code string, limit int) ([]*domain.Listing, error) {
	return f.listings, f.err
}

type fakeAssembler struct{ fail bool }

func (f *fakeAssembler) Assemble(_ context.Context, listingID, regionUsed string) (*domain.Recommendation, bool) {
	if f.fail {
		return nil, false
	}
	return &domain.Recommendation{
		Listing:    domain.Listing{ID: listingID, Name: "Sun House", City: "Valencia", Region: regionUsed, RegionCode: regionUsed},
		RegionUsed: regionUsed,
	}, true
}

func testServer(runner *fakeRunner, preview *fakePreview) *Server {
	return NewServer(
		config.ServerConfig{TriggerToken: "sekret"},
		runner,
		preview,
		&fakeAssembler{},
		render.NewRenderer("https://colively.com"),
	)
}

func triggerReq(t *testing.T, token string, body interface{}) *http.Request {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/campaign/trigger", bytes.NewReader(buf))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestTriggerRequiresToken(t *testing.T) {
	srv := testServer(&fakeRunner{}, &fakePreview{})

	for _, token := range []string{"", "wrong"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, triggerReq(t, token, triggerRequest{}))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "token %q", token)
	}
}

func TestTriggerUnconfiguredTokenIsUnavailable(t *testing.T) {
	srv := NewServer(config.ServerConfig{}, &fakeRunner{}, &fakePreview{}, &fakeAssembler{}, render.NewRenderer(""))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, triggerReq(t, "anything", triggerRequest{}))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTriggerRunsCampaign(t *testing.T) {
	runner := &fakeRunner{run: domain.CampaignRun{
		ID: "run-1", Status: domain.RunCompletedWithErrors,
		SubscribersProcessed: 30, EmailsSent: 28, EmailsFailed: 2,
	}}
	srv := testServer(runner, &fakePreview{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, triggerReq(t, "sekret", triggerRequest{TestMode: true, TestEmail: "qa@colively.com", Limit: 30}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, campaign.ManualOptions{TestMode: true, TestEmail: "qa@colively.com", Limit: 30}, runner.opts)

	var resp triggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 28, resp.EmailsSent)
	assert.Equal(t, 2, resp.EmailsFailed)
	assert.Equal(t, "completed_with_errors", resp.Status)
}

func TestTriggerTestModeRequiresEmail(t *testing.T) {
	srv := testServer(&fakeRunner{}, &fakePreview{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, triggerReq(t, "sekret", triggerRequest{TestMode: true}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerRejectsBadJSON(t *testing.T) {
	srv := testServer(&fakeRunner{}, &fakePreview{})
	req := httptest.NewRequest(http.MethodPost, "/api/campaign/trigger", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Authorization", "Bearer sekret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewRendersHTML(t *testing.T) {
	preview := &fakePreview{listings: []*domain.Listing{{ID: "lst-1", Name: "Sun House", Rating: 4.8}}}
	srv := testServer(&fakeRunner{}, preview)

	req := httptest.NewRequest(http.MethodGet, "/api/regions/es/preview", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Sun House")
}

func TestPreviewUnknownRegion(t *testing.T) {
	srv := testServer(&fakeRunner{}, &fakePreview{})
	req := httptest.NewRequest(http.MethodGet, "/api/regions/xx/preview", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewQueryFailure(t *testing.T) {
	srv := testServer(&fakeRunner{}, &fakePreview{err: fmt.Errorf("db down")})
	req := httptest.NewRequest(http.MethodGet, "/api/regions/es/preview", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthzIsPublic(t *testing.T) {
	srv := testServer(&fakeRunner{}, &fakePreview{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
