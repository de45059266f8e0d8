package clickup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jStrider/grafana-publisher/internal/config"
	"github.com/jStrider/grafana-publisher/internal/publisher"
	"github.com/jStrider/grafana-publisher/internal/schema"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.ClickUpConfig{
		APIURL:    srv.URL,
		Token:     "pk_test",
		ListID:    "901",
		RateLimit: 1000, // keep tests fast
	}, 0)
}

func TestClient_ListOpenTickets(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/v2/list/901/task" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("archived") != "false" {
			t.Errorf("archived = %q, want false", r.URL.Query().Get("archived"))
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"last_page": true,
			"tasks": []map[string]interface{}{
				{
					"id":          "abc1",
					"name":        "[chu][vm1] disk space",
					"description": "details\n\ngp:fp:aaaa000011112222",
					"status":      map[string]string{"status": "To Do"},
					"priority":    map[string]string{"id": "2"},
				},
			},
		})
	}))

	tickets, err := client.ListOpenTickets(context.Background())
	if err != nil {
		t.Fatalf("ListOpenTickets() error = %v", err)
	}
	if gotAuth != "pk_test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(tickets) != 1 {
		t.Fatalf("tickets = %d, want 1", len(tickets))
	}
	tk := tickets[0]
	if tk.ID != "abc1" || tk.Priority != "high" || tk.Status != "To Do" {
		t.Errorf("ticket = %+v", tk)
	}
	if tk.URL != "https://app.clickup.com/t/abc1" {
		t.Errorf("url = %q", tk.URL)
	}
}

func TestClient_ListOpenTickets_Paginates(t *testing.T) {
	pages := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pages++
		resp := map[string]interface{}{"last_page": page == "1", "tasks": []map[string]interface{}{
			{"id": "tk_" + page, "name": "t" + page},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))

	tickets, err := client.ListOpenTickets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if pages != 2 || len(tickets) != 2 {
		t.Errorf("pages = %d, tickets = %d, want 2 and 2", pages, len(tickets))
	}
}

func TestClient_CreateTicket(t *testing.T) {
	var gotBody createTaskRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v2/list/901/task" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "new1", "name": gotBody.Name, "url": "https://app.clickup.com/t/new1",
		})
	}))

	created, err := client.CreateTicket(context.Background(), publisher.CreateRequest{
		Title:       "[chu][vm1] disk space",
		Description: "body",
		Status:      "To Do",
		Priority:    "critical",
	})
	if err != nil {
		t.Fatalf("CreateTicket() error = %v", err)
	}
	if gotBody.Priority != 1 {
		t.Errorf("priority = %d, want 1 for critical", gotBody.Priority)
	}
	if created.ID != "new1" || created.URL != "https://app.clickup.com/t/new1" {
		t.Errorf("created = %+v", created)
	}
}

func TestClient_UpdateTicket(t *testing.T) {
	var gotBody map[string]interface{}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v2/task/abc1" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))

	err := client.UpdateTicket(context.Background(), "abc1", publisher.UpdateRequest{Priority: "high"})
	if err != nil {
		t.Fatalf("UpdateTicket() error = %v", err)
	}
	if gotBody["priority"] != float64(2) {
		t.Errorf("priority = %v, want 2", gotBody["priority"])
	}
	if _, ok := gotBody["description"]; ok {
		t.Error("empty description must not be sent")
	}
}

func TestClient_ListCustomFields(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/list/901/field" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"fields": []map[string]interface{}{
				{
					"id": "f1", "name": "Priority", "type": "drop_down",
					"type_config": map[string]interface{}{
						"options": []map[string]string{{"id": "o1", "name": "high"}},
					},
				},
				{
					"id": "f2", "name": "Customer", "type": "labels",
					"type_config": map[string]interface{}{
						"options": []map[string]string{{"id": "o2", "label": "chu-lyon"}},
					},
				},
			},
		})
	}))

	got, err := client.ListCustomFields(context.Background())
	if err != nil {
		t.Fatalf("ListCustomFields() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("fields = %d, want 2", len(got))
	}
	if got[0].Type != schema.TypeDropdown || got[0].Options[0].Label != "high" {
		t.Errorf("dropdown field = %+v", got[0])
	}
	if got[1].Options[0].Label != "chu-lyon" {
		t.Errorf("labels option label = %+v, want fallback to label key", got[1].Options[0])
	}
}

func TestClient_ListStatuses(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/list/901" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"statuses": []map[string]string{
				{"status": "To Do", "type": "open"},
				{"status": "Done", "type": "done"},
			},
		})
	}))

	got, err := client.ListStatuses(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "To Do" || got[0].Type != "open" {
		t.Errorf("statuses = %+v", got)
	}
}

func TestClient_APIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"err":"Token invalid","ECODE":"OAUTH_025"}`))
	}))

	_, err := client.ListOpenTickets(context.Background())
	if err == nil {
		t.Fatal("want error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.StatusCode != 401 || apiErr.ECode != "OAUTH_025" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}
