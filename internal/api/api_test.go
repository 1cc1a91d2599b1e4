package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mistops/org-clone-workbench/internal/models"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	s := &Server{
		Connections: models.NewConnectionStore(),
		Jobs:        models.NewJobStore(),
		Reports:     NewReportStore(),
		Log:         zerolog.Nop(),
	}
	return s, NewRouter(s)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestConnectionCRUD(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doJSON(t, handler, "POST", "/api/connections", map[string]interface{}{
		"name":     "prod",
		"base_url": "https://api.mist.com/api/v1",
		"token":    "secret",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body)
	}
	var created models.Connection
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.ID == "" {
		t.Fatal("no id in create response")
	}
	if created.Role != "source" {
		t.Errorf("default role = %q, want source", created.Role)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Error("token leaked into create response")
	}

	rec = doJSON(t, handler, "GET", "/api/connections", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list []models.Connection
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list) != 1 {
		t.Errorf("list len = %d, want 1", len(list))
	}

	// Empty token on update keeps the stored one
	rec = doJSON(t, handler, "PUT", "/api/connections/"+created.ID, map[string]interface{}{
		"name":     "prod-renamed",
		"base_url": "https://api.mist.com/api/v1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, handler, "DELETE", "/api/connections/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, handler, "DELETE", "/api/connections/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestCreateConnectionValidation(t *testing.T) {
	_, handler := newTestServer(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing base_url", map[string]interface{}{"token": "t"}},
		{"missing token", map[string]interface{}{"base_url": "https://api.mist.com/api/v1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, "POST", "/api/connections", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRunCloneUnknownConnection(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doJSON(t, handler, "POST", "/api/clone/run", map[string]interface{}{
		"source_id":      "nope",
		"destination_id": "nope",
		"spec":           map[string]interface{}{},
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPreflightJobFlow(t *testing.T) {
	// Minimal fake source cloud: enough endpoints for a preflight.
	cloud := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/sites/s1/setting":
			w.Write([]byte(`{"vars":{"a":"1"}}`))
		case r.URL.Path == "/sites/s1":
			w.Write([]byte(`{"id":"s1","name":"HQ"}`))
		default:
			w.Write([]byte(`[]`))
		}
	}))
	defer cloud.Close()

	s, handler := newTestServer(t)
	conn := &models.Connection{Name: "src", BaseURL: cloud.URL, Token: "t"}
	s.Connections.Create(conn)

	rec := doJSON(t, handler, "POST", "/api/clone/preflight", map[string]interface{}{
		"source_id": conn.ID,
		"spec": map[string]interface{}{
			"source_org_id":   "org-1",
			"assignment_mode": 4,
			"site_plans":      []map[string]interface{}{{"source_site_id": "s1", "new_site_name": "HQ2"}},
		},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("preflight status = %d, body = %s", rec.Code, rec.Body)
	}
	var accepted map[string]string
	json.Unmarshal(rec.Body.Bytes(), &accepted)
	jobID := accepted["job_id"]
	if jobID == "" {
		t.Fatal("no job_id in response")
	}

	// Poll until the job finishes
	deadline := time.Now().Add(5 * time.Second)
	for {
		if s.Jobs.Get(jobID).CurrentStatus() != "running" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("preflight job did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = doJSON(t, handler, "GET", "/api/clone/preflight/"+jobID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report status = %d, body = %s", rec.Code, rec.Body)
	}
	var report models.PreflightReport
	json.Unmarshal(rec.Body.Bytes(), &report)
	if report.SourceOrgID != "org-1" {
		t.Errorf("report source org = %q", report.SourceOrgID)
	}
	if report.SiteVarsCount != 1 {
		t.Errorf("vars count = %d, want 1", report.SiteVarsCount)
	}
}

func TestGetPreflightReportStates(t *testing.T) {
	s, handler := newTestServer(t)

	rec := doJSON(t, handler, "GET", "/api/clone/preflight/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d, want 404", rec.Code)
	}

	running := s.Jobs.Create("preflight", "c")
	rec = doJSON(t, handler, "GET", "/api/clone/preflight/"+running.ID, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("running job status = %d, want 409", rec.Code)
	}

	failed := s.Jobs.Create("preflight", "c")
	failed.Fail("upstream exploded")
	rec = doJSON(t, handler, "GET", "/api/clone/preflight/"+failed.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed job status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "upstream exploded") {
		t.Errorf("failed job body = %s", rec.Body)
	}
}

func TestJobEndpoints(t *testing.T) {
	s, handler := newTestServer(t)
	job := s.Jobs.Create("clone-run", "c")
	job.AppendLog("started")

	rec := doJSON(t, handler, "GET", "/api/jobs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}

	rec = doJSON(t, handler, "GET", "/api/jobs/"+job.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "started") {
		t.Errorf("job output missing from body: %s", rec.Body)
	}

	rec = doJSON(t, handler, "POST", "/api/jobs/"+job.ID+"/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", rec.Code)
	}
	if job.CurrentStatus() != "cancelled" {
		t.Errorf("status after cancel = %q", job.CurrentStatus())
	}

	// Cancelling again conflicts
	rec = doJSON(t, handler, "POST", "/api/jobs/"+job.ID+"/cancel", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("second cancel status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, handler, "GET", "/api/jobs/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", rec.Code)
	}
}

func TestReportStore(t *testing.T) {
	store := NewReportStore()
	if store.GetPreflight("x") != nil || store.GetRun("x") != nil {
		t.Error("empty store returned a report")
	}
	store.StorePreflight("j1", &models.PreflightReport{SourceOrgID: "o"})
	store.StoreRun("j2", &models.RunReport{NewOrgID: "n"})
	if got := store.GetPreflight("j1"); got == nil || got.SourceOrgID != "o" {
		t.Errorf("GetPreflight() = %+v", got)
	}
	if got := store.GetRun("j2"); got == nil || got.NewOrgID != "n" {
		t.Errorf("GetRun() = %+v", got)
	}
}

func TestListOrgsEndpoint(t *testing.T) {
	cloud := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/self" {
			fmt.Fprint(w, `{"privileges":[{"scope":"org","org_id":"o1","name":"Prod"}]}`)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer cloud.Close()

	s, handler := newTestServer(t)
	conn := &models.Connection{Name: "src", BaseURL: cloud.URL, Token: "t"}
	s.Connections.Create(conn)

	rec := doJSON(t, handler, "GET", "/api/connections/"+conn.ID+"/orgs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var orgs []models.NamedRef
	json.Unmarshal(rec.Body.Bytes(), &orgs)
	if len(orgs) != 1 || orgs[0].Name != "Prod" {
		t.Errorf("orgs = %+v", orgs)
	}
}
