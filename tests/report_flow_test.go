package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"truthlink/api"
	"truthlink/config"
	"truthlink/core/auth"
	"truthlink/core/publicid"
	"truthlink/core/reports"
	"truthlink/core/storage"
	"truthlink/core/store"
	"truthlink/core/utils"
)

type env struct {
	cfg     *config.AppConfig
	server  *httptest.Server
	users   store.UsersStore
	reports store.ReportsStore
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.AppConfig{
		DBDriver:   "sqlite",
		DBPath:     filepath.Join(dir, "truthlink.db"),
		Pepper:     "pepper",
		SessionTTL: time.Hour,
		Security: config.SecurityConfig{
			LoginBurst:      100,
			SubmitBurst:     100,
			MaxPayloadBytes: 64 * 1024,
			MaxUploadBytes:  1 << 20,
		},
		Evidence: config.EvidenceConfig{Provider: "local", LocalDir: filepath.Join(dir, "evidence")},
	}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, nil)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, "sqlite", nil); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	audits := store.NewAuditStore(db)
	reportsStore := store.NewReportsStore(db)
	blobs, err := storage.NewLocalStore(cfg.Evidence.LocalDir)
	if err != nil {
		t.Fatalf("blobs: %v", err)
	}
	svc := reports.NewService(reportsStore, publicid.NewGenerator(), nil, logger)
	server, err := api.NewServer(cfg, api.ServerDeps{
		Users:      users,
		Sessions:   sessions,
		Audits:     audits,
		ReportsSvc: svc,
		Blobs:      blobs,
	}, logger)
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &env{cfg: cfg, server: ts, users: users, reports: reportsStore}
}

func (e *env) createUser(t *testing.T, username, password string, roles []string) {
	t.Helper()
	ph := auth.MustHashPassword(password, e.cfg.Pepper)
	u := &store.User{Username: username, PasswordHash: ph.Hash, Salt: ph.Salt, Active: true}
	if _, err := e.users.Create(context.Background(), u, roles); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
}

type session struct {
	client *http.Client
	csrf   string
}

func (e *env) login(t *testing.T, username, password string) *session {
	t.Helper()
	jar := newCookieJar(t)
	client := &http.Client{Jar: jar}
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := client.Post(e.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	var out struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("login decode: %v", err)
	}
	return &session{client: client, csrf: out.CSRFToken}
}

func (s *session) do(t *testing.T, method, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", s.csrf)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	raw := new(bytes.Buffer)
	_, _ = raw.ReadFrom(resp.Body)
	return resp, raw.Bytes()
}

func submitReport(t *testing.T, base string) map[string]any {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"title":       "Broken streetlights used as cover for muggings",
		"description": "Three incidents in the same alley during the last two weeks.",
		"type":        "ASSAULT",
		"location":    "Elm Street alley",
	})
	resp, err := http.Post(base+"/api/reports", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("submit decode: %v", err)
	}
	return out
}

func TestAnonymousSubmitAndTrack(t *testing.T) {
	e := setupEnv(t)
	out := submitReport(t, e.server.URL)

	trackingID, _ := out["tracking_id"].(string)
	if !strings.HasPrefix(trackingID, "RPT-") {
		t.Fatalf("tracking id %q", trackingID)
	}
	if out["status"] != "PENDING" {
		t.Fatalf("status = %v", out["status"])
	}
	for _, hidden := range []string{"id", "priority", "department", "type", "version", "updated_at"} {
		if _, ok := out[hidden]; ok {
			t.Errorf("anonymous response leaks %q", hidden)
		}
	}

	resp, err := http.Get(e.server.URL + "/api/reports/" + trackingID)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("track status %d", resp.StatusCode)
	}
	var tracked map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&tracked); err != nil {
		t.Fatalf("track decode: %v", err)
	}
	timeline, _ := tracked["timeline"].([]any)
	if len(timeline) != 1 {
		t.Fatalf("timeline = %v", tracked["timeline"])
	}

	// Unknown and malformed ids must be indistinguishable.
	for _, bad := range []string{"RPT-ZZZZZZZZZZZZZZZZZZZZZZZZZZ", "whatever"} {
		resp, err := http.Get(e.server.URL + "/api/reports/" + bad)
		if err != nil {
			t.Fatalf("track %s: %v", bad, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("track %s status %d", bad, resp.StatusCode)
		}
	}
}

func TestInvestigatorLifecycleOverHTTP(t *testing.T) {
	e := setupEnv(t)
	e.createUser(t, "holmes", "s3cret", []string{"investigator"})
	submitReport(t, e.server.URL)

	sess := e.login(t, "holmes", "s3cret")

	resp, body := sess.do(t, http.MethodGet, e.server.URL+"/api/reports?status=PENDING", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", resp.StatusCode, body)
	}
	var list struct {
		Items []struct {
			ID      int64 `json:"id"`
			Version int   `json:"version"`
		} `json:"items"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("list decode: %v", err)
	}
	if list.Total != 1 || len(list.Items) != 1 {
		t.Fatalf("list = %s", body)
	}
	id := list.Items[0].ID

	url := fmt.Sprintf("%s/api/reports/%d", e.server.URL, id)

	// A transition and a triage edit are separate mutations; mixing
	// them in one request is rejected before anything is written.
	resp, body = sess.do(t, http.MethodPatch, url, map[string]any{"version": 1, "status": "IN_PROGRESS", "priority": "HIGH"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("mixed patch status %d: %s", resp.StatusCode, body)
	}

	resp, body = sess.do(t, http.MethodPatch, url, map[string]any{"version": 1, "status": "IN_PROGRESS", "note": "assigned"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d: %s", resp.StatusCode, body)
	}
	var updated struct {
		Version  int `json:"version"`
		Timeline []struct {
			Actor string `json:"actor"`
		} `json:"timeline"`
	}
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatalf("patch decode: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("version = %d", updated.Version)
	}
	if len(updated.Timeline) != 2 || updated.Timeline[1].Actor != "holmes" {
		t.Fatalf("timeline = %s", body)
	}

	// Replaying the same version must conflict without writing.
	resp, body = sess.do(t, http.MethodPatch, url, map[string]any{"version": 1, "status": "RESOLVED"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("stale patch status %d: %s", resp.StatusCode, body)
	}

	// An edge outside the lifecycle graph is rejected.
	resp, body = sess.do(t, http.MethodPatch, url, map[string]any{"version": 2, "status": "PENDING"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("invalid transition status %d: %s", resp.StatusCode, body)
	}

	resp, body = sess.do(t, http.MethodPatch, url, map[string]any{"version": 2, "priority": "HIGH", "department": "metro police"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analysis status %d: %s", resp.StatusCode, body)
	}

	resp, body = sess.do(t, http.MethodPatch, url, map[string]any{"version": 3, "status": "RESOLVED"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status %d: %s", resp.StatusCode, body)
	}

	// Terminal status: no further transitions, no analysis edits.
	resp, body = sess.do(t, http.MethodPatch, url, map[string]any{"version": 4, "status": "IN_PROGRESS"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("reopen status %d: %s", resp.StatusCode, body)
	}
	resp, body = sess.do(t, http.MethodPatch, url, map[string]any{"version": 4, "priority": "LOW"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("closed analysis status %d: %s", resp.StatusCode, body)
	}
}

func TestAnonymousTimelineRedactsInvestigators(t *testing.T) {
	e := setupEnv(t)
	e.createUser(t, "holmes", "s3cret", []string{"investigator"})
	out := submitReport(t, e.server.URL)
	trackingID := out["tracking_id"].(string)

	sess := e.login(t, "holmes", "s3cret")
	report, err := e.reports.GetReportByPublicID(context.Background(), trackingID)
	if err != nil || report == nil {
		t.Fatalf("report lookup: %v", err)
	}
	url := fmt.Sprintf("%s/api/reports/%d", e.server.URL, report.ID)
	if resp, body := sess.do(t, http.MethodPatch, url, map[string]any{"version": 1, "status": "IN_PROGRESS"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d: %s", resp.StatusCode, body)
	}

	resp, err := http.Get(e.server.URL + "/api/reports/" + trackingID)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	defer resp.Body.Close()
	var tracked struct {
		Timeline []struct {
			Actor string `json:"actor"`
		} `json:"timeline"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tracked); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tracked.Timeline) != 2 {
		t.Fatalf("timeline length = %d", len(tracked.Timeline))
	}
	if tracked.Timeline[0].Actor != "reporter" || tracked.Timeline[1].Actor != "investigator" {
		t.Fatalf("actors = %+v", tracked.Timeline)
	}
}

func TestGuardsRejectAnonymousAndCSRFMisuse(t *testing.T) {
	e := setupEnv(t)
	e.createUser(t, "holmes", "s3cret", []string{"investigator"})
	submitReport(t, e.server.URL)

	// No session at all.
	resp, err := http.Get(e.server.URL + "/api/reports?status=PENDING")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous list status %d", resp.StatusCode)
	}

	// Session without the CSRF header on a mutating call.
	sess := e.login(t, "holmes", "s3cret")
	req, _ := http.NewRequest(http.MethodPatch, e.server.URL+"/api/reports/1", strings.NewReader(`{"version":1,"status":"IN_PROGRESS"}`))
	req.Header.Set("Content-Type", "application/json")
	got, err := sess.client.Do(req)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	got.Body.Close()
	if got.StatusCode != http.StatusForbidden {
		t.Fatalf("missing csrf status %d", got.StatusCode)
	}

	// Investigator role lacks admin-only permissions.
	resp2, body := sess.do(t, http.MethodGet, e.server.URL+"/api/audit", nil)
	if resp2.StatusCode != http.StatusForbidden {
		t.Fatalf("audit status %d: %s", resp2.StatusCode, body)
	}
}

func TestEvidenceUploadAndDownload(t *testing.T) {
	e := setupEnv(t)
	e.createUser(t, "holmes", "s3cret", []string{"investigator"})

	pngBytes := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("file", "photo.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(pngBytes); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	resp, err := http.Post(e.server.URL+"/api/attachments", mw.FormDataContentType(), &form)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status %d", resp.StatusCode)
	}
	var uploaded struct {
		Ref         string `json:"ref"`
		ContentType string `json:"content_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		t.Fatalf("upload decode: %v", err)
	}
	if !strings.HasPrefix(uploaded.Ref, "evidence/") || !strings.HasSuffix(uploaded.Ref, ".png") {
		t.Fatalf("ref = %q", uploaded.Ref)
	}
	if uploaded.ContentType != "image/png" {
		t.Fatalf("content type = %q", uploaded.ContentType)
	}

	// Evidence is investigator-only; anonymous download is refused.
	anon, err := http.Get(e.server.URL + "/api/attachments/" + uploaded.Ref)
	if err != nil {
		t.Fatalf("anonymous download: %v", err)
	}
	anon.Body.Close()
	if anon.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous download status %d", anon.StatusCode)
	}

	sess := e.login(t, "holmes", "s3cret")
	got, body := sess.do(t, http.MethodGet, e.server.URL+"/api/attachments/"+uploaded.Ref, nil)
	if got.StatusCode != http.StatusOK {
		t.Fatalf("download status %d: %s", got.StatusCode, body)
	}
	if !bytes.Equal(body, pngBytes) {
		t.Fatalf("downloaded %d bytes, want %d", len(body), len(pngBytes))
	}
}

func TestAdminSurface(t *testing.T) {
	e := setupEnv(t)
	e.createUser(t, "chief", "s3cret", []string{"admin"})
	submitReport(t, e.server.URL)

	sess := e.login(t, "chief", "s3cret")
	resp, body := sess.do(t, http.MethodGet, e.server.URL+"/api/audit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit status %d: %s", resp.StatusCode, body)
	}
	resp, body = sess.do(t, http.MethodGet, e.server.URL+"/api/accounts", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accounts status %d: %s", resp.StatusCode, body)
	}
	var accounts struct {
		Items []struct {
			Username string   `json:"username"`
			Roles    []string `json:"roles"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &accounts); err != nil {
		t.Fatalf("accounts decode: %v", err)
	}
	if len(accounts.Items) != 1 || accounts.Items[0].Username != "chief" {
		t.Fatalf("accounts = %s", body)
	}

	// Admin inherits the investigator surface.
	resp, body = sess.do(t, http.MethodGet, e.server.URL+"/api/reports", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reports status %d: %s", resp.StatusCode, body)
	}
}
