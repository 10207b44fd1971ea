package odoo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/attendify/pos-event-sync/internal/candidates"
)

type fakeServer struct {
	logins   atomic.Int32
	lastArgs []any
	fail     bool
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/jsonrpc" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch req.Params.Service + "." + req.Params.Method {
	case "common.login":
		f.logins.Add(1)
		if req.Params.Args[2] != "secret" {
			json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": false})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": 2})
	case "object.execute_kw":
		f.lastArgs = req.Params.Args
		if f.fail {
			json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{
				"code": 200, "message": "Odoo Server Error", "data": map[string]any{"message": "Access Denied"},
			}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": []map[string]any{
			{"id": 1, "name": "Expo", "external_uid": "EXPO-1", "date_begin": "2026-05-01 09:00:00", "date_end": "2026-05-03 18:00:00"},
			{"id": 4, "name": "Fair", "external_uid": false, "date_begin": "2026-05-02 09:00:00", "date_end": "2026-05-02 18:00:00"},
		}})
	default:
		http.Error(w, "unknown method", http.StatusBadRequest)
	}
}

func TestFetchCandidates(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(srv.URL+"/", "pos", "admin", "secret", 5*time.Second)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	got, err := c.FetchCandidates(context.Background(), candidates.Filter{ValidAfter: at, Limit: 50})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 4 {
		t.Fatalf("unexpected candidates %+v", got)
	}
	if got[0].ExternalUID != "EXPO-1" || got[1].ExternalUID != "" {
		t.Fatalf("unexpected external uids %q %q", got[0].ExternalUID, got[1].ExternalUID)
	}
	if !got[0].ValidUntil.Equal(time.Date(2026, 5, 3, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date_end %s", got[0].ValidUntil)
	}

	if len(fake.lastArgs) != 7 || fake.lastArgs[3] != "event.event" || fake.lastArgs[4] != "search_read" {
		t.Fatalf("unexpected execute_kw args %v", fake.lastArgs)
	}
	domain := fake.lastArgs[5].([]any)[0].([]any)[0].([]any)
	if domain[0] != "date_end" || domain[1] != ">=" || domain[2] != "2026-05-01 12:00:00" {
		t.Fatalf("unexpected domain %v", domain)
	}
	kwargs := fake.lastArgs[6].(map[string]any)
	if kwargs["order"] != "date_begin asc" || kwargs["limit"] != float64(50) {
		t.Fatalf("unexpected kwargs %v", kwargs)
	}

	if _, err := c.FetchCandidates(context.Background(), candidates.Filter{ValidAfter: at}); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if n := fake.logins.Load(); n != 1 {
		t.Fatalf("expected cached login, got %d logins", n)
	}
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{})
	defer srv.Close()

	c := NewClient(srv.URL, "pos", "admin", "wrong", 5*time.Second)
	if _, err := c.Login(context.Background()); err == nil {
		t.Fatal("expected login error")
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{fail: true})
	defer srv.Close()

	c := NewClient(srv.URL, "pos", "admin", "secret", 5*time.Second)
	_, err := c.FetchCandidates(context.Background(), candidates.Filter{ValidAfter: time.Now()})
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Data.Message != "Access Denied" {
		t.Fatalf("expected RPCError, got %v", err)
	}
}

func TestUnreachableServerIsDataUnavailable(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{})
	url := srv.URL
	srv.Close()

	store := candidates.NewStore(NewClient(url, "pos", "admin", "secret", time.Second), 10)
	if _, err := store.Refresh(context.Background(), time.Now()); !errors.Is(err, candidates.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "pos", "admin", "secret", time.Second)
	if err := c.Call(context.Background(), "common", "version", nil, nil); err == nil {
		t.Fatal("expected HTTP error")
	}
}
