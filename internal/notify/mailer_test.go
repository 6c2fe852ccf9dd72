package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPMailer_SendPayloadAndHeaders(t *testing.T) {
	var gotBody []byte
	var gotAuth, gotContentType, gotMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mailer := NewHTTPMailer(server.URL, 5*time.Second)
	result := mailer.Send(context.Background(), Request{
		EventName:         "Reunião",
		EventDescription:  "Pauta X",
		EventDate:         "10/06/2025",
		EventTime:         "14:00",
		ParticipantEmails: []string{"ana@example.com", "beto@example.com"},
		Token:             "secret-token",
	})

	if !result.IsSuccess() {
		t.Fatalf("expected success, got %+v", result)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want Bearer secret-token", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}

	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if payload["eventName"] != "Reunião" {
		t.Errorf("eventName = %v", payload["eventName"])
	}
	if payload["eventDate"] != "10/06/2025" {
		t.Errorf("eventDate = %v, want DD/MM/YYYY", payload["eventDate"])
	}
	if payload["eventTime"] != "14:00" {
		t.Errorf("eventTime = %v", payload["eventTime"])
	}
	emails, ok := payload["participantEmails"].([]any)
	if !ok || len(emails) != 2 {
		t.Errorf("participantEmails = %v", payload["participantEmails"])
	}
	if _, leaked := payload["Token"]; leaked {
		t.Error("bearer token must not appear in the body")
	}
}

func TestHTTPMailer_SendNon2xxIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	mailer := NewHTTPMailer(server.URL, 5*time.Second)
	result := mailer.Send(context.Background(), Request{EventName: "x"})

	if result.IsSuccess() {
		t.Error("502 should not be a success")
	}
	if result.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", result.StatusCode)
	}
}

func TestHTTPMailer_SendConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	mailer := NewHTTPMailer(server.URL, time.Second)
	result := mailer.Send(context.Background(), Request{EventName: "x"})

	if result.Error == nil {
		t.Fatal("expected a transport error")
	}
	if result.IsSuccess() {
		t.Error("transport error should not be a success")
	}
}

func TestHTTPMailer_FetchDirectory(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"users":[
			{"id":"u1","firstName":"Ana","lastName":"Souza","email":"ana@example.com"},
			{"id":"u2","firstName":"Beto","lastName":"Lima","email":"beto@example.com"}
		]}`)
	}))
	defer server.Close()

	mailer := NewHTTPMailer(server.URL, 5*time.Second)
	users, err := mailer.FetchDirectory(context.Background(), "svc-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer svc-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(users) != 2 {
		t.Fatalf("users = %d, want 2", len(users))
	}
	if users[0].ID != "u1" || users[0].FirstName != "Ana" || users[0].Email != "ana@example.com" {
		t.Errorf("unexpected first user: %+v", users[0])
	}
}

func TestHTTPMailer_FetchDirectoryErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	mailer := NewHTTPMailer(server.URL, 5*time.Second)
	if _, err := mailer.FetchDirectory(context.Background(), "tok"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestServiceDirectory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fixed" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		io.WriteString(w, `{"users":[{"id":"u1","firstName":"Ana","lastName":"Souza","email":"a@b.c"}]}`)
	}))
	defer server.Close()

	dir := NewServiceDirectory(NewHTTPMailer(server.URL, 5*time.Second), "fixed")
	users, err := dir.ListParticipants(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("users = %d, want 1", len(users))
	}
}
