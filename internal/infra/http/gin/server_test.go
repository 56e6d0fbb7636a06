package ginserver

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"marketplace/internal/app/dto"
	messagingapp "marketplace/internal/app/handlers/messaging"
	appoutbox "marketplace/internal/app/outbox"
	authsvc "marketplace/internal/app/services/auth"
	listingsvc "marketplace/internal/app/services/listings"
	"marketplace/internal/infra/directory"
	"marketplace/internal/infra/obs"
	"marketplace/internal/infra/security"
	"marketplace/internal/infra/storage/memory"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	outbox *memory.Outbox
}

func newTestServer(t *testing.T, sendsPerMinute, burst int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := memory.NewUserRepository()
	listingRepo := memory.NewListingRepository()
	box := memory.NewOutbox()

	tokens, err := security.NewJWTIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	auth := &authsvc.Service{Users: users, Passwords: security.BcryptHasher{}, Tokens: tokens, Logger: logger}
	listingService := &listingsvc.Service{Listings: listingRepo, Users: users, Logger: logger}

	cmdBus, queryBus := messagingapp.NewBuses(messagingapp.BusOptions{
		Base: messagingapp.Base{
			UoWFactory:            memory.Factory{Store: memory.NewStore()},
			Outbox:                box,
			Encoder:               appoutbox.JSONEventEncoder{},
			Identities:            directory.Identities{Users: users},
			Listings:              directory.Listings{Repo: listingRepo},
			Logger:                logger,
			SearchConversationCap: 50,
		},
		Idempotency:    memory.NewIdempotencyStore(),
		IdempotencyTTL: time.Hour,
	})

	limiter := NewLimiterStore(sendsPerMinute, burst, 0)
	t.Cleanup(limiter.Stop)

	router := NewRouter(obs.Middleware{Logger: logger}, obs.HealthHandlers{}, Handlers{
		Auth:           AuthHandler{Service: auth, Logger: logger},
		Listing:        ListingHandler{Service: listingService, Logger: logger},
		Chat:           ChatHandler{Commands: cmdBus, Queries: queryBus, Logger: logger},
		AuthMiddleware: AuthMiddleware{Service: auth, Logger: logger}.Handle,
		SendLimiter:    SendRateLimit(limiter),
	})
	return &testServer{t: t, router: router, outbox: box}
}

type call struct {
	method  string
	path    string
	token   string
	body    any
	headers map[string]string
}

func (s *testServer) do(c call) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) register(email, first, last, role string) dto.AuthResponse {
	s.t.Helper()
	rec := s.do(call{method: http.MethodPost, path: "/api/v1/auth/register", body: map[string]string{
		"email": email, "first_name": first, "last_name": last, "password": "correct-horse", "role": role,
	}})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[dto.AuthResponse](s.t, rec)
}

type errorEnvelope struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
		Fields  []struct {
			Field string `json:"field"`
			Rule  string `json:"rule"`
		} `json:"fields"`
	} `json:"error"`
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, 60, 10)

	t.Run("register login me", func(t *testing.T) {
		req := require.New(t)
		reg := s.register("anne@example.com", "Anne", "Martin", "")
		req.NotEmpty(reg.Token)

		rec := s.do(call{method: http.MethodPost, path: "/api/v1/auth/login", body: map[string]string{
			"email": "ANNE@example.com", "password": "correct-horse",
		}})
		req.Equal(http.StatusOK, rec.Code)
		login := decode[dto.AuthResponse](t, rec)

		rec = s.do(call{method: http.MethodGet, path: "/api/v1/auth/me", token: login.Token})
		req.Equal(http.StatusOK, rec.Code)
		me := decode[dto.UserProfile](t, rec)
		req.Equal(reg.User.ID, me.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := s.do(call{method: http.MethodPost, path: "/api/v1/auth/login", body: map[string]string{
			"email": "anne@example.com", "password": "nope-nope",
		}})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		rec := s.do(call{method: http.MethodPost, path: "/api/v1/auth/register", body: map[string]string{
			"email": "anne@example.com", "first_name": "A", "last_name": "B", "password": "correct-horse",
		}})
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("validation error body", func(t *testing.T) {
		req := require.New(t)
		rec := s.do(call{method: http.MethodPost, path: "/api/v1/auth/register", body: map[string]string{
			"email": "not-an-email", "first_name": "A", "last_name": "B", "password": "short",
		}})
		req.Equal(http.StatusBadRequest, rec.Code)
		body := decode[errorEnvelope](t, rec)
		req.Equal("validation", body.Error.Kind)
		fields := map[string]string{}
		for _, f := range body.Error.Fields {
			fields[f.Field] = f.Rule
		}
		req.Equal("email", fields["email"])
		req.Equal("min", fields["password"])
	})

	t.Run("missing or bad token", func(t *testing.T) {
		req := require.New(t)
		rec := s.do(call{method: http.MethodGet, path: "/api/v1/auth/me"})
		req.Equal(http.StatusUnauthorized, rec.Code)
		req.Equal("unauthenticated", decode[errorEnvelope](t, rec).Error.Kind)
		rec = s.do(call{method: http.MethodGet, path: "/api/v1/conversations", token: "garbage"})
		req.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func TestListingsEndpoints(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t, 60, 10)
	provider := s.register("pro@example.com", "Bruno", "Petit", "provider")
	customer := s.register("cus@example.com", "Chloe", "Durand", "")

	rec := s.do(call{method: http.MethodPost, path: "/api/v1/listings", token: customer.Token, body: map[string]any{"title": "Nope"}})
	req.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(call{method: http.MethodPost, path: "/api/v1/listings", token: provider.Token, body: map[string]any{
		"title": "Piano lessons", "category": "music", "city": "Lyon", "price_cents": 3000,
	}})
	req.Equal(http.StatusCreated, rec.Code, rec.Body.String())
	listing := decode[dto.Listing](t, rec)
	req.Equal(provider.User.ID, listing.ProviderID)

	rec = s.do(call{method: http.MethodGet, path: "/api/v1/listings"})
	req.Equal(http.StatusOK, rec.Code)
	req.Equal(1, decode[dto.ListingCatalog](t, rec).Total)

	rec = s.do(call{method: http.MethodGet, path: "/api/v1/listings/" + listing.ID})
	req.Equal(http.StatusOK, rec.Code)

	rec = s.do(call{method: http.MethodPost, path: "/api/v1/listings/" + listing.ID + "/deactivate", token: customer.Token})
	req.Equal(http.StatusForbidden, rec.Code)
	rec = s.do(call{method: http.MethodPost, path: "/api/v1/listings/" + listing.ID + "/deactivate", token: provider.Token})
	req.Equal(http.StatusOK, rec.Code)
	req.False(decode[dto.Listing](t, rec).IsActive)

	rec = s.do(call{method: http.MethodGet, path: "/api/v1/listings/missing"})
	req.Equal(http.StatusNotFound, rec.Code)
}

func TestConversationFlow(t *testing.T) {
	s := newTestServer(t, 600, 100)
	provider := s.register("pro@example.com", "Bruno", "Petit", "provider")
	customer := s.register("cus@example.com", "Chloe", "Durand", "")
	outsider := s.register("out@example.com", "Dan", "Roux", "")

	rec := s.do(call{method: http.MethodPost, path: "/api/v1/listings", token: provider.Token, body: map[string]any{"title": "Piano lessons"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	listing := decode[dto.Listing](t, rec)

	rec = s.do(call{method: http.MethodPost, path: "/api/v1/conversations", token: customer.Token, body: map[string]string{
		"participant_id": provider.User.ID, "service_id": listing.ID,
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	conv := decode[dto.Conversation](t, rec)
	require.Equal(t, "Piano lessons", conv.ServiceTitle)
	convPath := "/api/v1/conversations/" + conv.ID

	t.Run("get or create is idempotent", func(t *testing.T) {
		rec := s.do(call{method: http.MethodPost, path: "/api/v1/conversations", token: provider.Token, body: map[string]string{
			"participant_id": customer.User.ID,
		}})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, conv.ID, decode[dto.Conversation](t, rec).ID)
	})

	t.Run("send and count unread", func(t *testing.T) {
		req := require.New(t)
		for _, text := range []string{"Bonjour", "Are you free on Monday?"} {
			rec := s.do(call{method: http.MethodPost, path: convPath + "/messages", token: customer.Token, body: map[string]string{"content": text}})
			req.Equal(http.StatusCreated, rec.Code, rec.Body.String())
		}
		rec := s.do(call{method: http.MethodGet, path: "/api/v1/messages/unread-count", token: provider.Token})
		req.Equal(http.StatusOK, rec.Code)
		req.Equal(2, decode[dto.UnreadTotal](t, rec).Count)

		rec = s.do(call{method: http.MethodGet, path: "/api/v1/conversations", token: provider.Token})
		req.Equal(http.StatusOK, rec.Code)
		list := decode[dto.ConversationList](t, rec)
		req.Len(list.Items, 1)
		req.Equal(2, list.Items[0].Unread)
		req.Equal("Are you free on Monday?", list.Items[0].LastMessage.Content)
	})

	t.Run("idempotency key replays the send", func(t *testing.T) {
		req := require.New(t)
		headers := map[string]string{idempotencyHeader: "send-once"}
		first := s.do(call{method: http.MethodPost, path: convPath + "/messages", token: provider.Token, body: map[string]string{"content": "Yes"}, headers: headers})
		req.Equal(http.StatusCreated, first.Code)
		second := s.do(call{method: http.MethodPost, path: convPath + "/messages", token: provider.Token, body: map[string]string{"content": "Yes"}, headers: headers})
		req.Equal(http.StatusCreated, second.Code)
		req.Equal(decode[dto.Message](t, first).ID, decode[dto.Message](t, second).ID)

		rec := s.do(call{method: http.MethodGet, path: convPath + "/messages?limit=50", token: customer.Token})
		req.Equal(http.StatusOK, rec.Code)
		req.Equal(3, decode[dto.MessagePage](t, rec).Total)

		reused := s.do(call{method: http.MethodPost, path: convPath + "/messages", token: provider.Token, body: map[string]string{"content": "Something else"}, headers: headers})
		req.Equal(http.StatusConflict, reused.Code)
		req.Equal("conflict", decode[errorEnvelope](t, reused).Error.Kind)
	})

	t.Run("search edit and read", func(t *testing.T) {
		req := require.New(t)
		rec := s.do(call{method: http.MethodGet, path: "/api/v1/messages/search?q=monday", token: provider.Token})
		req.Equal(http.StatusOK, rec.Code)
		hits := decode[dto.MessageSearchResult](t, rec)
		req.Len(hits.Items, 1)
		msgID := hits.Items[0].ID

		rec = s.do(call{method: http.MethodPatch, path: "/api/v1/messages/" + msgID, token: provider.Token, body: map[string]string{"content": "hijack"}})
		req.Equal(http.StatusForbidden, rec.Code)
		rec = s.do(call{method: http.MethodPatch, path: "/api/v1/messages/" + msgID, token: customer.Token, body: map[string]string{"content": "Are you free on Tuesday?"}})
		req.Equal(http.StatusOK, rec.Code)
		req.True(decode[dto.Message](t, rec).IsEdited)

		rec = s.do(call{method: http.MethodPost, path: "/api/v1/messages/" + msgID + "/read", token: provider.Token})
		req.Equal(http.StatusOK, rec.Code)
		req.True(decode[dto.Message](t, rec).IsRead)

		rec = s.do(call{method: http.MethodGet, path: "/api/v1/messages/search?q=", token: provider.Token})
		req.Equal(http.StatusBadRequest, rec.Code)
	})

	t.Run("mark conversation read resets the counter", func(t *testing.T) {
		req := require.New(t)
		rec := s.do(call{method: http.MethodPost, path: convPath + "/read", token: provider.Token})
		req.Equal(http.StatusOK, rec.Code)
		rec = s.do(call{method: http.MethodGet, path: "/api/v1/messages/unread-count", token: provider.Token})
		req.Equal(0, decode[dto.UnreadTotal](t, rec).Count)
	})

	t.Run("outsiders see not found", func(t *testing.T) {
		req := require.New(t)
		for _, c := range []call{
			{method: http.MethodGet, path: convPath},
			{method: http.MethodGet, path: convPath + "/messages"},
			{method: http.MethodPost, path: convPath + "/messages", body: map[string]string{"content": "hi"}},
		} {
			c.token = outsider.Token
			rec := s.do(c)
			req.Equal(http.StatusNotFound, rec.Code, c.method+" "+c.path)
			req.Equal("not_found", decode[errorEnvelope](t, rec).Error.Kind)
		}
	})

	t.Run("bad paging", func(t *testing.T) {
		rec := s.do(call{method: http.MethodGet, path: convPath + "/messages?page=abc", token: customer.Token})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("archive hides the conversation", func(t *testing.T) {
		req := require.New(t)
		rec := s.do(call{method: http.MethodDelete, path: convPath, token: customer.Token})
		req.Equal(http.StatusOK, rec.Code)
		rec = s.do(call{method: http.MethodGet, path: convPath, token: customer.Token})
		req.Equal(http.StatusNotFound, rec.Code)
		rec = s.do(call{method: http.MethodGet, path: "/api/v1/conversations", token: customer.Token})
		req.Empty(decode[dto.ConversationList](t, rec).Items)
	})

	require.NotEmpty(t, s.outbox.Pending())
}

func TestDirectMessage(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t, 600, 100)
	a := s.register("a@example.com", "Anne", "Martin", "")
	b := s.register("b@example.com", "Bruno", "Petit", "")

	rec := s.do(call{method: http.MethodPost, path: "/api/v1/messages", token: a.Token, body: map[string]string{
		"recipient_id": b.User.ID, "content": "Bonjour",
	}})
	req.Equal(http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[dto.DirectMessage](t, rec)
	req.True(first.Created)
	req.Equal(1, first.Conversation.UnreadCount[b.User.ID])

	rec = s.do(call{method: http.MethodPost, path: "/api/v1/messages", token: a.Token, body: map[string]string{
		"recipient_id": b.User.ID, "content": "Encore",
	}})
	req.Equal(http.StatusCreated, rec.Code)
	second := decode[dto.DirectMessage](t, rec)
	req.False(second.Created)
	req.Equal(first.Conversation.ID, second.Conversation.ID)

	rec = s.do(call{method: http.MethodPost, path: "/api/v1/messages", token: a.Token, body: map[string]string{
		"recipient_id": a.User.ID, "content": "me",
	}})
	req.Equal(http.StatusConflict, rec.Code)

	rec = s.do(call{method: http.MethodGet, path: "/api/v1/conversations/" + first.Conversation.ID, token: b.Token})
	req.Equal(http.StatusOK, rec.Code)
	req.Equal(0, decode[dto.Conversation](t, rec).Unread)
}

func TestSendRateLimit(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t, 1, 2)
	a := s.register("a@example.com", "Anne", "Martin", "")
	b := s.register("b@example.com", "Bruno", "Petit", "")

	send := func(content string) *httptest.ResponseRecorder {
		return s.do(call{method: http.MethodPost, path: "/api/v1/messages", token: a.Token, body: map[string]string{
			"recipient_id": b.User.ID, "content": content,
		}})
	}
	req.Equal(http.StatusCreated, send("one").Code)
	req.Equal(http.StatusCreated, send("two").Code)
	rec := send("three")
	req.Equal(http.StatusTooManyRequests, rec.Code)
	req.Equal("60", rec.Header().Get("Retry-After"))
	req.Equal("rate_limited", decode[errorEnvelope](t, rec).Error.Kind)

	other := s.do(call{method: http.MethodPost, path: "/api/v1/messages", token: b.Token, body: map[string]string{
		"recipient_id": a.User.ID, "content": "reply",
	}})
	req.Equal(http.StatusCreated, other.Code)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, 60, 10)
	require.Equal(t, http.StatusOK, s.do(call{method: http.MethodGet, path: "/livez"}).Code)
	require.Equal(t, http.StatusOK, s.do(call{method: http.MethodGet, path: "/readyz"}).Code)
}
