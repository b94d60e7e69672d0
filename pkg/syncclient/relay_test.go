package syncclient

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"teamsync/api/internal/app"
	"teamsync/api/internal/auth"
	"teamsync/api/internal/config"
	"teamsync/api/internal/relay"
)

func TestClientsExchangePatchesThroughRelay(t *testing.T) {
	cfg := config.Config{
		JWTSecret:         "relay-secret",
		TokenTTL:          time.Hour,
		HeartbeatInterval: time.Hour,
		BufferSize:        16,
		MaxBodyBytes:      1 << 20,
	}
	registry := relay.NewRegistry()
	ts := httptest.NewServer(app.NewHTTPServer(app.New(cfg, registry), "*").Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(registry.CloseAll)

	token, _, err := auth.IssueToken([]byte(cfg.JWTSecret), "avery", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	newClient := func(uid string) (*Client, chan Message, chan Message) {
		client, err := New(Options{Endpoint: ts.URL + "/sync", Room: "team-42", UID: uid, Token: token})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		t.Cleanup(client.Close)
		hellos := make(chan Message, 1)
		patches := make(chan Message, 4)
		client.On(EventHello, func(m Message) { hellos <- m })
		client.On(EventPatch, func(m Message) { patches <- m })
		client.Connect()
		select {
		case <-hellos:
		case <-time.After(3 * time.Second):
			t.Fatalf("%s: no hello", uid)
		}
		return client, hellos, patches
	}

	a, _, patchesA := newClient("a")
	_, _, patchesB := newClient("b")

	a.Publish(context.Background(), []byte(`{"op":"insert","pos":4,"text":"hi"}`))

	for name, ch := range map[string]chan Message{"a": patchesA, "b": patchesB} {
		select {
		case m := <-ch:
			if string(m.Data) != `{"op":"insert","pos":4,"text":"hi"}` {
				t.Fatalf("%s received %q", name, m.Data)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("%s: no patch", name)
		}
	}

	a.Close()
	waitUntil(t, "closed client to leave the room", func() bool {
		return registry.Size("team-42") == 1
	})
}

func TestClientWithBadTokenNeverJoins(t *testing.T) {
	cfg := config.Config{JWTSecret: "relay-secret", HeartbeatInterval: time.Hour}
	registry := relay.NewRegistry()
	ts := httptest.NewServer(app.NewHTTPServer(app.New(cfg, registry), "*").Handler())
	t.Cleanup(ts.Close)

	client, rec := newTestClient(t, ts.URL+"/sync")
	client.Connect()

	waitUntil(t, "client to give up", client.GaveUp)
	if len(rec.snapshot()) != DefaultMaxAttempts {
		t.Fatalf("expected %d reconnects, got %v", DefaultMaxAttempts, rec.snapshot())
	}
	if got := registry.Stats(); got != (relay.Stats{}) {
		t.Fatalf("expected empty registry, got %+v", got)
	}
}
