package gmail_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/option"

	"scholardigest/internal/logging"
	"scholardigest/internal/services/gmail"
)

type fakeMailbox struct {
	t        *testing.T
	queries  []string
	messages map[string]map[string]any
	pages    [][]string
}

func (m *fakeMailbox) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const prefix = "/gmail/v1/users/me/messages"
	switch {
	case r.URL.Path == prefix:
		m.queries = append(m.queries, r.URL.Query().Get("q"))
		page := 0
		if tok := r.URL.Query().Get("pageToken"); tok == "p2" {
			page = 1
		}
		refs := make([]map[string]string, 0)
		for _, id := range m.pages[page] {
			refs = append(refs, map[string]string{"id": id})
		}
		resp := map[string]any{"messages": refs}
		if page == 0 && len(m.pages) > 1 {
			resp["nextPageToken"] = "p2"
		}
		_ = json.NewEncoder(w).Encode(resp)
	case strings.HasPrefix(r.URL.Path, prefix+"/"):
		id := strings.TrimPrefix(r.URL.Path, prefix+"/")
		if got := r.URL.Query().Get("format"); got != "full" {
			m.t.Errorf("expected format=full, got %q", got)
		}
		msg, ok := m.messages[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(msg)
	default:
		http.NotFound(w, r)
	}
}

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func newSource(t *testing.T, box *fakeMailbox) *gmail.Source {
	t.Helper()
	server := httptest.NewServer(box)
	t.Cleanup(server.Close)
	src, err := gmail.NewSource(context.Background(),
		gmail.Settings{User: "me", Sender: "scholaralerts-noreply@google.com", MaxResults: 50},
		logging.NewNop(),
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"),
	)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	return src
}

func TestFetchSincePagesAndDecodes(t *testing.T) {
	box := &fakeMailbox{
		t:     t,
		pages: [][]string{{"m1"}, {"m2", "m3"}},
		messages: map[string]map[string]any{
			"m1": {
				"id":           "m1",
				"internalDate": "1716199200000",
				"payload": map[string]any{
					"mimeType": "multipart/alternative",
					"parts": []any{
						map[string]any{"mimeType": "text/plain", "body": map[string]any{"data": encode("plain body")}},
						map[string]any{"mimeType": "text/html", "body": map[string]any{"data": encode("<h3>html body</h3>")}},
					},
				},
			},
			"m2": {
				"id": "m2",
				"payload": map[string]any{
					"mimeType": "text/plain",
					"headers":  []any{map[string]any{"name": "Date", "value": "Mon, 20 May 2024 11:00:00 +0000"}},
					"body":     map[string]any{"data": base64.RawURLEncoding.EncodeToString([]byte("only plain?"))},
				},
			},
			"m3": {
				"id":           "m3",
				"internalDate": "1000",
				"payload":      map[string]any{"mimeType": "text/html", "body": map[string]any{"data": encode("old")}},
			},
		},
	}
	src := newSource(t, box)

	since := time.Unix(1716190000, 0)
	messages, err := src.FetchSince(context.Background(), &since)
	if err != nil {
		t.Fatalf("FetchSince: %v", err)
	}
	if len(box.queries) != 2 || box.queries[0] != "from:scholaralerts-noreply@google.com after:1716190000" {
		t.Fatalf("unexpected queries %v", box.queries)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages after the since filter, got %d", len(messages))
	}
	if messages[0].ID != "m1" || messages[0].Body != "<h3>html body</h3>" || messages[0].Timestamp.Unix() != 1716199200 {
		t.Fatalf("unexpected first message %+v", messages[0])
	}
	if messages[1].Body != "only plain?" || messages[1].Timestamp.Unix() != 1716202800 {
		t.Fatalf("unexpected second message %+v", messages[1])
	}
}

func TestFetchSinceWithoutWatermark(t *testing.T) {
	box := &fakeMailbox{t: t, pages: [][]string{{}}}
	src := newSource(t, box)
	messages, err := src.FetchSince(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchSince: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(messages))
	}
	if box.queries[0] != "from:scholaralerts-noreply@google.com" {
		t.Fatalf("unexpected query %q", box.queries[0])
	}
}

func TestFetchSinceFailsOnMissingMessage(t *testing.T) {
	box := &fakeMailbox{t: t, pages: [][]string{{"gone"}}, messages: map[string]map[string]any{}}
	src := newSource(t, box)
	if _, err := src.FetchSince(context.Background(), nil); err == nil {
		t.Fatal("expected error for missing message")
	}
}

func TestQuery(t *testing.T) {
	ts := time.Unix(42, 0)
	if got := gmail.Query("a@b", &ts); got != "from:a@b after:42" {
		t.Fatalf("unexpected query %q", got)
	}
}
