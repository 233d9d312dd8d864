package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"

	"marketchat/internal/app/chatsync"
	"marketchat/internal/app/devchat"
	"marketchat/internal/infra/config"
	ginserver "marketchat/internal/infra/http/gin"
	"marketchat/internal/infra/obs"
	"marketchat/internal/infra/storage/memory"
)

func newDevBackend(t *testing.T) *httptest.Server {
	t.Helper()
	svc := &devchat.Service{
		Repo: memory.NewConversationRepository(),
		Users: devchat.StaticDirectory{
			"buyer":  {ID: "buyer", Name: "Ana"},
			"seller": {ID: "seller", Name: "Mihai"},
		},
	}
	auth := ginserver.AuthMiddleware{Tokens: ginserver.TokenTable{
		"tok-buyer":  config.DevUser{ID: "buyer", Name: "Ana", Token: "tok-buyer"},
		"tok-seller": config.DevUser{ID: "seller", Name: "Mihai", Token: "tok-seller"},
	}}
	router := ginserver.NewRouter("test", obs.Middleware{}, obs.HealthHandlers{}, ginserver.Handlers{
		Chat:           ginserver.ChatHandler{Service: svc},
		AuthMiddleware: auth.Handle,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTripsAgainstDevBackend(t *testing.T) {
	srv := newDevBackend(t)
	ctx := context.Background()
	buyer := NewClient(srv.URL+"/api", "tok-buyer", srv.Client(), BreakerSettings{}, nil)
	seller := NewClient(srv.URL+"/api/", "tok-seller", srv.Client(), BreakerSettings{}, nil)

	res, err := buyer.SendMessage(ctx, chatsync.SendRequest{AdID: "ad123", ReceiverID: "seller", Content: chatsync.SeedMessage})
	require.NoError(t, err)
	require.NotEmpty(t, res.MessageID)
	require.NotEmpty(t, res.ConversationID)
	require.False(t, res.CreatedAt.IsZero())

	unread, err := seller.UnreadCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, unread)

	convs, err := seller.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Equal(t, res.ConversationID, convs[0].ID)
	require.Equal(t, "ad123", convs[0].AdID)
	require.Equal(t, "Ana", convs[0].OtherUser.Name)
	require.Equal(t, 1, convs[0].UnreadCount)
	require.Equal(t, 1, convs[0].MessageCount)
	require.ElementsMatch(t, []string{"buyer", "seller"}, convs[0].Participants)

	th, err := seller.GetThread(ctx, res.ConversationID)
	require.NoError(t, err)
	require.Len(t, th.Messages, 1)
	require.Equal(t, chatsync.SeedMessage, th.Messages[0].Content)
	require.Equal(t, "buyer", th.Messages[0].SenderID)
	require.Equal(t, "Ana", th.OtherUser.Name)

	unread, err = seller.UnreadCount(ctx)
	require.NoError(t, err)
	require.Zero(t, unread)
}

func TestClientReturnsStatusError(t *testing.T) {
	srv := newDevBackend(t)
	anon := NewClient(srv.URL+"/api", "", srv.Client(), BreakerSettings{}, nil)

	_, err := anon.ListConversations(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusUnauthorized, se.Code)
	require.Equal(t, "auth required", se.Body)
	require.False(t, se.Temporary())

	buyer := NewClient(srv.URL+"/api", "tok-buyer", srv.Client(), BreakerSettings{}, nil)
	_, err = buyer.GetThread(context.Background(), "missing")
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusNotFound, se.Code)
}

func TestClientBreakerOpensOnServerErrors(t *testing.T) {
	var hits, badHeaders atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok" || r.Header.Get("X-Request-ID") != "req-42" {
			badHeaders.Add(1)
		}
		http.Error(w, `{"error":"boom"}`, http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", srv.Client(), BreakerSettings{MaxFailures: 2, Timeout: time.Minute}, nil)
	ctx := obs.WithRequestID(context.Background(), "req-42")
	for i := 0; i < 2; i++ {
		_, err := c.ListConversations(ctx)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		require.True(t, se.Temporary())
		require.Equal(t, "boom", se.Body)
	}

	_, err := c.ListConversations(ctx)
	require.True(t, errors.Is(err, gobreaker.ErrOpenState))
	require.Equal(t, int32(2), hits.Load())
	require.Zero(t, badHeaders.Load())
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", srv.Client(), BreakerSettings{MaxFailures: 1}, nil)
	for i := 0; i < 3; i++ {
		_, err := c.GetThread(context.Background(), "c1")
		var se *StatusError
		require.ErrorAs(t, err, &se)
		require.Equal(t, "nope", se.Body)
	}
}

func TestClientCanceledCallsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"conversations":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", srv.Client(), BreakerSettings{MaxFailures: 2, Timeout: time.Minute}, nil)
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.GetThread(ctx, "c1")
		require.ErrorIs(t, err, context.Canceled)
	}

	convs, err := c.ListConversations(context.Background())
	require.NoError(t, err)
	require.Empty(t, convs)
}
