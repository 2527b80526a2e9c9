package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"medical-record-access/internal/platform/logger"
)

// E2E contra el router completo con repos in-memory y auth de dev
// (header X-Debug-Actor-ID).

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv("DB_DSN", "")

	srv := httptest.NewServer(NewRouter(Options{Log: logger.Nop()}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, actorID string, body any) (int, []byte) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, srv.URL+path, buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if actorID != "" {
		req.Header.Set("X-Debug-Actor-ID", actorID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, raw
}

func createActor(t *testing.T, srv *httptest.Server, role, name, category string) string {
	t.Helper()

	status, raw := doJSON(t, srv, http.MethodPost, "/actors", "", map[string]any{
		"role":         role,
		"display_name": name,
		"category":     category,
	})
	if status != http.StatusCreated {
		t.Fatalf("create actor %s: status %d, body %s", name, status, raw)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode actor: %v", err)
	}
	return out.ID
}

type grantJSON struct {
	ID           string  `json:"id"`
	RequesterID  string  `json:"requester_id"`
	SubjectID    string  `json:"subject_id"`
	Status       string  `json:"status"`
	ScopeLimited bool    `json:"scope_limited"`
	ExpiresAt    *string `json:"expires_at"`
}

type recordJSON struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Category string `json:"category"`
	Verified bool   `json:"verified"`
}

func TestAPI_GrantLifecycleAndRecordAccess(t *testing.T) {
	srv := newTestServer(t)

	subjectID := createActor(t, srv, "subject", "Ana Torres", "")
	cardioID := createActor(t, srv, "requester", "Dr. Gomez", "cardiology")
	imagingID := createActor(t, srv, "requester", "Dra. Ruiz", "imaging")
	adminID := createActor(t, srv, "supervisor", "Mesa de control", "")

	// Sin header de actor no hay acceso
	if status, _ := doJSON(t, srv, http.MethodPost, "/grants", "", map[string]any{"subject_id": subjectID}); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without actor header, got %d", status)
	}

	// Sin grant, el requester no lista registros del subject
	status, raw := doJSON(t, srv, http.MethodGet, "/subjects/"+subjectID+"/records", cardioID, nil)
	if status != http.StatusForbidden || strings.TrimSpace(string(raw)) != "no active grant" {
		t.Fatalf("expected 403 'no active grant', got %d %s", status, raw)
	}

	// Pedido de acceso
	status, raw = doJSON(t, srv, http.MethodPost, "/grants", cardioID, map[string]any{
		"subject_id":              subjectID,
		"purpose":                 "seguimiento post operatorio",
		"requested_duration_days": 30,
	})
	if status != http.StatusCreated {
		t.Fatalf("request grant: status %d, body %s", status, raw)
	}
	var g grantJSON
	if err := json.Unmarshal(raw, &g); err != nil {
		t.Fatalf("decode grant: %v", err)
	}
	if g.Status != "pending" || g.ExpiresAt != nil {
		t.Fatalf("expected pending grant without expiry, got %+v", g)
	}

	// Segundo pending para el mismo par: conflicto
	if status, _ := doJSON(t, srv, http.MethodPost, "/grants", cardioID, map[string]any{
		"subject_id":              subjectID,
		"purpose":                 "otro pedido",
		"requested_duration_days": 5,
	}); status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate pending, got %d", status)
	}

	// El subject ve el pedido en su bandeja
	status, raw = doJSON(t, srv, http.MethodGet, "/subjects/"+subjectID+"/grants", subjectID, nil)
	if status != http.StatusOK {
		t.Fatalf("list grants by subject: %d %s", status, raw)
	}
	var inbox []grantJSON
	if err := json.Unmarshal(raw, &inbox); err != nil || len(inbox) != 1 {
		t.Fatalf("expected 1 pending grant in inbox, got %s (err %v)", raw, err)
	}

	// El requester no puede aprobar su propio pedido
	if status, _ := doJSON(t, srv, http.MethodPost, "/grants/"+g.ID+"/approve", cardioID, nil); status != http.StatusForbidden {
		t.Fatalf("requester approving own grant must be 403, got %d", status)
	}

	// El subject aprueba con scope limitado
	status, raw = doJSON(t, srv, http.MethodPost, "/grants/"+g.ID+"/approve", subjectID, map[string]any{
		"scope_limited": true,
	})
	if status != http.StatusOK {
		t.Fatalf("approve: %d %s", status, raw)
	}
	var approved grantJSON
	_ = json.Unmarshal(raw, &approved)
	if approved.Status != "approved" || approved.ExpiresAt == nil || !approved.ScopeLimited {
		t.Fatalf("expected approved scope-limited grant with expiry, got %+v", approved)
	}

	// El subject carga sus registros
	var cardioRec, imagingRec recordJSON
	for _, rec := range []struct {
		title, category string
		into            *recordJSON
	}{
		{"Electrocardiograma 2026", "cardiology", &cardioRec},
		{"Radiografía de tórax", "imaging", &imagingRec},
	} {
		status, raw = doJSON(t, srv, http.MethodPost, "/subjects/"+subjectID+"/records", subjectID, map[string]any{
			"title":    rec.title,
			"category": rec.category,
		})
		if status != http.StatusCreated {
			t.Fatalf("create record %q: %d %s", rec.title, status, raw)
		}
		if err := json.Unmarshal(raw, rec.into); err != nil {
			t.Fatalf("decode record: %v", err)
		}
		if rec.into.Verified {
			t.Fatalf("subject-created record must not be verified")
		}
	}

	// Scope limitado: el requester de cardiología solo ve su especialidad
	status, raw = doJSON(t, srv, http.MethodGet, "/subjects/"+subjectID+"/records", cardioID, nil)
	if status != http.StatusOK {
		t.Fatalf("list records with grant: %d %s", status, raw)
	}
	var visible []recordJSON
	if err := json.Unmarshal(raw, &visible); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(visible) != 1 || visible[0].Category != "cardiology" {
		t.Fatalf("expected only the cardiology record, got %s", raw)
	}

	// El registro fuera de especialidad se niega con la razón, no con 404
	status, raw = doJSON(t, srv, http.MethodGet, "/subjects/"+subjectID+"/records/"+imagingRec.ID, cardioID, nil)
	if status != http.StatusForbidden || strings.TrimSpace(string(raw)) != "out of scope" {
		t.Fatalf("expected 403 'out of scope', got %d %s", status, raw)
	}

	// El de su especialidad se lee y se descarga
	if status, _ := doJSON(t, srv, http.MethodGet, "/subjects/"+subjectID+"/records/"+cardioRec.ID, cardioID, nil); status != http.StatusOK {
		t.Fatalf("get in-scope record: %d", status)
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/subjects/"+subjectID+"/records/"+cardioRec.ID+"/download", nil)
	req.Header.Set("X-Debug-Actor-ID", cardioID)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Disposition"), "attachment") {
		t.Fatalf("expected attachment download, got %d %q", resp.StatusCode, resp.Header.Get("Content-Disposition"))
	}

	// Un requester con grant activo puede agregar un registro (queda verified)
	status, raw = doJSON(t, srv, http.MethodPost, "/subjects/"+subjectID+"/records", cardioID, map[string]any{
		"title":    "Informe de consulta",
		"category": "cardiology",
	})
	if status != http.StatusCreated {
		t.Fatalf("requester create record: %d %s", status, raw)
	}
	var contributed recordJSON
	_ = json.Unmarshal(raw, &contributed)
	if !contributed.Verified {
		t.Fatalf("requester-created record must be verified")
	}

	// Otro requester sin grant sigue afuera
	if status, _ := doJSON(t, srv, http.MethodGet, "/subjects/"+subjectID+"/records", imagingID, nil); status != http.StatusForbidden {
		t.Fatalf("requester without grant must get 403, got %d", status)
	}

	// Supervisor ve todo sin grant
	status, raw = doJSON(t, srv, http.MethodGet, "/subjects/"+subjectID+"/records", adminID, nil)
	if status != http.StatusOK {
		t.Fatalf("supervisor list: %d", status)
	}
	var all []recordJSON
	_ = json.Unmarshal(raw, &all)
	if len(all) != 3 {
		t.Fatalf("supervisor must see all 3 records, got %d", len(all))
	}

	// Revocación: el acceso muere en el acto
	if status, raw = doJSON(t, srv, http.MethodPost, "/grants/"+g.ID+"/revoke", subjectID, nil); status != http.StatusOK {
		t.Fatalf("revoke: %d %s", status, raw)
	}
	status, raw = doJSON(t, srv, http.MethodGet, "/subjects/"+subjectID+"/records", cardioID, nil)
	if status != http.StatusForbidden || strings.TrimSpace(string(raw)) != "no active grant" {
		t.Fatalf("expected 403 after revoke, got %d %s", status, raw)
	}

	// Un grant revocado no se re-aprueba
	if status, _ := doJSON(t, srv, http.MethodPost, "/grants/"+g.ID+"/approve", subjectID, nil); status != http.StatusConflict {
		t.Fatalf("re-approving revoked grant must be 409, got %d", status)
	}

	// El requester ve su grant con el status final
	status, raw = doJSON(t, srv, http.MethodGet, "/me/grants", cardioID, nil)
	if status != http.StatusOK {
		t.Fatalf("me/grants: %d", status)
	}
	var mine []grantJSON
	_ = json.Unmarshal(raw, &mine)
	if len(mine) != 1 || mine[0].Status != "revoked" {
		t.Fatalf("expected 1 revoked grant, got %s", raw)
	}
}

func TestAPI_AuditTrail(t *testing.T) {
	srv := newTestServer(t)

	subjectID := createActor(t, srv, "subject", "Ana Torres", "")
	requesterID := createActor(t, srv, "requester", "Dr. Gomez", "cardiology")
	adminID := createActor(t, srv, "supervisor", "Mesa de control", "")

	// request -> approve -> lectura -> revoke: cada paso deja rastro
	status, raw := doJSON(t, srv, http.MethodPost, "/grants", requesterID, map[string]any{
		"subject_id":              subjectID,
		"purpose":                 "control",
		"requested_duration_days": 7,
	})
	if status != http.StatusCreated {
		t.Fatalf("request grant: %d %s", status, raw)
	}
	var g grantJSON
	_ = json.Unmarshal(raw, &g)

	if status, raw = doJSON(t, srv, http.MethodPost, "/grants/"+g.ID+"/approve", subjectID, nil); status != http.StatusOK {
		t.Fatalf("approve: %d %s", status, raw)
	}
	if status, _ = doJSON(t, srv, http.MethodGet, "/subjects/"+subjectID+"/records", requesterID, nil); status != http.StatusOK {
		t.Fatalf("list records: %d", status)
	}
	if status, _ = doJSON(t, srv, http.MethodPost, "/grants/"+g.ID+"/revoke", subjectID, nil); status != http.StatusOK {
		t.Fatalf("revoke: %d", status)
	}

	type entryJSON struct {
		ActorID string `json:"actor_id"`
		Action  string `json:"action"`
	}

	// Un actor común no consulta el log global
	if status, _ = doJSON(t, srv, http.MethodGet, "/audit", requesterID, nil); status != http.StatusForbidden {
		t.Fatalf("non-supervisor on /audit must get 403, got %d", status)
	}

	// Supervisor: log completo, más reciente primero
	status, raw = doJSON(t, srv, http.MethodGet, "/audit", adminID, nil)
	if status != http.StatusOK {
		t.Fatalf("audit query: %d %s", status, raw)
	}
	var entries []entryJSON
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("decode audit entries: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 audit entries, got %d: %s", len(entries), raw)
	}
	wantOrder := []string{"revoked", "record_accessed", "approved", "requested"}
	for i, want := range wantOrder {
		if entries[i].Action != want {
			t.Fatalf("entry %d: expected action %q, got %q", i, want, entries[i].Action)
		}
	}

	// Filtro por acción
	status, raw = doJSON(t, srv, http.MethodGet, "/audit?action=approved", adminID, nil)
	if status != http.StatusOK {
		t.Fatalf("audit filter: %d", status)
	}
	entries = nil
	_ = json.Unmarshal(raw, &entries)
	if len(entries) != 1 || entries[0].ActorID != subjectID {
		t.Fatalf("expected single 'approved' entry by subject, got %s", raw)
	}

	// /me/audit: cada actor solo lo suyo
	status, raw = doJSON(t, srv, http.MethodGet, "/me/audit", requesterID, nil)
	if status != http.StatusOK {
		t.Fatalf("me/audit: %d", status)
	}
	entries = nil
	_ = json.Unmarshal(raw, &entries)
	if len(entries) == 0 {
		t.Fatalf("expected own audit entries")
	}
	for _, e := range entries {
		if e.ActorID != requesterID {
			t.Fatalf("me/audit leaked entry of %s", e.ActorID)
		}
	}
}

func TestAPI_Health(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", resp.StatusCode)
	}
}
