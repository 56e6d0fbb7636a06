package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketplace/internal/app/middleware"
	appoutbox "marketplace/internal/app/outbox"
	"marketplace/internal/app/uow"
	domainlistings "marketplace/internal/domain/listings"
	domainmessaging "marketplace/internal/domain/messaging"
	domainuser "marketplace/internal/domain/user"
)

var base = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func begin(t *testing.T, f Factory, readOnly bool) uow.UnitOfWork {
	t.Helper()
	unit, err := f.Begin(context.Background(), uow.TxOptions{ReadOnly: readOnly})
	require.NoError(t, err)
	return unit
}

func seedConversation(t *testing.T, unit uow.UnitOfWork, id domainmessaging.ConversationID, a, b domainmessaging.UserID) *domainmessaging.Conversation {
	t.Helper()
	conv, err := domainmessaging.NewConversation(domainmessaging.NewConversationParams{
		ID:           id,
		Participants: []domainmessaging.Participant{{UserID: a}, {UserID: b}},
		Now:          base,
	})
	require.NoError(t, err)
	require.NoError(t, unit.Conversations().Create(context.Background(), conv))
	return conv
}

func appendMessage(t *testing.T, unit uow.UnitOfWork, id domainmessaging.MessageID, conv domainmessaging.ConversationID, sender domainmessaging.UserID, content string, at time.Time) {
	t.Helper()
	msg, err := domainmessaging.NewMessage(domainmessaging.NewMessageParams{ID: id, ConversationID: conv, SenderID: sender, Content: content, Now: at})
	require.NoError(t, err)
	require.NoError(t, unit.Messages().Append(context.Background(), msg))
}

func TestUnitRollback(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := Factory{Store: NewStore()}

	unit := begin(t, f, false)
	seedConversation(t, unit, "c1", "a", "b")
	appendMessage(t, unit, "m1", "c1", "a", "kept", base.Add(time.Minute))
	req.NoError(unit.Commit(ctx))

	unit = begin(t, f, false)
	appendMessage(t, unit, "m2", "c1", "a", "dropped", base.Add(2*time.Minute))
	_, err := unit.Conversations().UpdateLastMessage(ctx, "c1", domainmessaging.LastMessage{Content: "dropped", SenderID: "a", Timestamp: base.Add(2 * time.Minute)})
	req.NoError(err)
	_, err = unit.Messages().MarkAllRead(ctx, "c1", "b", base.Add(3*time.Minute))
	req.NoError(err)
	seedConversation(t, unit, "c2", "a", "c")
	req.NoError(unit.Rollback(ctx))

	unit = begin(t, f, true)
	defer func() { _ = unit.Rollback(ctx) }()
	conv, err := unit.Conversations().ByID(ctx, "c1")
	req.NoError(err)
	req.Equal(0, conv.UnreadFor("b"))
	req.Empty(conv.LastMessage.Content)
	n, err := unit.Messages().CountByConversation(ctx, "c1")
	req.NoError(err)
	req.Equal(1, n)
	m1, err := unit.Messages().ByID(ctx, "m1")
	req.NoError(err)
	req.False(m1.IsRead)
	_, err = unit.Conversations().ByID(ctx, "c2")
	req.ErrorIs(err, domainmessaging.ErrConversationNotFound)
	_, err = unit.Messages().ByID(ctx, "m2")
	req.ErrorIs(err, domainmessaging.ErrMessageNotFound)
}

func TestUnitGuards(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := Factory{Store: NewStore()}

	ro := begin(t, f, true)
	_, err := ro.Conversations().Archive(ctx, "c1", base)
	req.ErrorIs(err, ErrReadOnlyUnit)
	req.NoError(ro.Commit(ctx))
	_, err = ro.Conversations().ByID(ctx, "c1")
	req.ErrorIs(err, ErrUnitClosed)
	req.ErrorIs(ro.Commit(ctx), ErrUnitClosed)

	_, err = Factory{}.Begin(ctx, uow.TxOptions{})
	req.ErrorIs(err, ErrFactoryMisconfigured)
}

func TestConversationRepo(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := Factory{Store: NewStore()}
	unit := begin(t, f, false)
	defer func() { _ = unit.Commit(ctx) }()
	repo := unit.Conversations()

	seedConversation(t, unit, "c1", "a", "b")
	seedConversation(t, unit, "c2", "c", "a")
	req.ErrorIs(repo.Create(ctx, &domainmessaging.Conversation{ID: "c1"}), domainmessaging.ErrConversationExists)

	found, err := repo.FindBetween(ctx, "b", "a")
	req.NoError(err)
	req.Equal(domainmessaging.ConversationID("c1"), found.ID)

	_, err = repo.UpdateLastMessage(ctx, "c2", domainmessaging.LastMessage{Content: "hi", SenderID: "c", Timestamp: base.Add(time.Hour)})
	req.NoError(err)
	ids, err := repo.IDsForUser(ctx, "a", 0)
	req.NoError(err)
	req.Equal([]domainmessaging.ConversationID{"c2", "c1"}, ids)
	ids, err = repo.IDsForUser(ctx, "a", 1)
	req.NoError(err)
	req.Len(ids, 1)

	conv, err := repo.MarkRead(ctx, "c2", "a", base.Add(2*time.Hour))
	req.NoError(err)
	req.Equal(0, conv.UnreadFor("a"))

	_, err = repo.Archive(ctx, "c1", base.Add(3*time.Hour))
	req.NoError(err)
	_, err = repo.FindBetween(ctx, "a", "b")
	req.ErrorIs(err, domainmessaging.ErrConversationNotFound)
	_, err = repo.UpdateLastMessage(ctx, "c1", domainmessaging.LastMessage{Content: "late", SenderID: "a", Timestamp: base})
	req.ErrorIs(err, domainmessaging.ErrConversationNotFound)
	list, err := repo.ListForUser(ctx, "a")
	req.NoError(err)
	req.Len(list, 1)
}

func TestMessageRepo(t *testing.T) {
	ctx := context.Background()
	f := Factory{Store: NewStore()}
	unit := begin(t, f, false)
	defer func() { _ = unit.Commit(ctx) }()
	seedConversation(t, unit, "c1", "a", "b")
	seedConversation(t, unit, "c2", "a", "c")
	appendMessage(t, unit, "m1", "c1", "a", "Hello there", base.Add(1*time.Minute))
	appendMessage(t, unit, "m2", "c1", "b", "hello back", base.Add(2*time.Minute))
	appendMessage(t, unit, "m3", "c1", "a", "bye", base.Add(2*time.Minute))
	appendMessage(t, unit, "m4", "c2", "c", "HELLO from c", base.Add(3*time.Minute))
	repo := unit.Messages()

	t.Run("duplicate id", func(t *testing.T) {
		msg, err := domainmessaging.NewMessage(domainmessaging.NewMessageParams{ID: "m1", ConversationID: "c1", SenderID: "a", Content: "x"})
		require.NoError(t, err)
		require.ErrorIs(t, repo.Append(ctx, msg), domainmessaging.ErrMessageExists)
	})

	t.Run("newest first with insertion tie break", func(t *testing.T) {
		req := require.New(t)
		items, err := repo.ListByConversation(ctx, "c1", 2, 0)
		req.NoError(err)
		req.Equal(domainmessaging.MessageID("m3"), items[0].ID)
		req.Equal(domainmessaging.MessageID("m2"), items[1].ID)
		items, err = repo.ListByConversation(ctx, "c1", 2, 2)
		req.NoError(err)
		req.Len(items, 1)
		items, err = repo.ListByConversation(ctx, "c1", 2, 10)
		req.NoError(err)
		req.Empty(items)
	})

	t.Run("search is case insensitive", func(t *testing.T) {
		req := require.New(t)
		hits, err := repo.Search(ctx, []domainmessaging.ConversationID{"c1", "c2"}, "HELLO", 20)
		req.NoError(err)
		req.Len(hits, 3)
		req.Equal(domainmessaging.MessageID("m4"), hits[0].ID)
		hits, err = repo.Search(ctx, []domainmessaging.ConversationID{"c1"}, "hello", 1)
		req.NoError(err)
		req.Len(hits, 1)
		hits, err = repo.Search(ctx, []domainmessaging.ConversationID{"c1"}, "  ", 20)
		req.NoError(err)
		req.Empty(hits)
	})

	t.Run("unread counting and marking", func(t *testing.T) {
		req := require.New(t)
		n, err := repo.CountUnreadForUser(ctx, "a", []domainmessaging.ConversationID{"c1", "c2", "c1"})
		req.NoError(err)
		req.Equal(2, n)

		marked, err := repo.MarkAllRead(ctx, "c1", "a", base.Add(time.Hour))
		req.NoError(err)
		req.Equal(1, marked)
		n, err = repo.CountUnreadForUser(ctx, "a", []domainmessaging.ConversationID{"c1", "c2"})
		req.NoError(err)
		req.Equal(1, n)

		msg, err := repo.MarkRead(ctx, "m4", base.Add(time.Hour))
		req.NoError(err)
		req.True(msg.IsRead)
		again, err := repo.MarkRead(ctx, "m4", base.Add(2*time.Hour))
		req.NoError(err)
		req.Equal(msg.ReadAt, again.ReadAt)
	})

	t.Run("edit", func(t *testing.T) {
		req := require.New(t)
		msg, err := repo.EditContent(ctx, "m3", "  goodbye ", base.Add(time.Hour))
		req.NoError(err)
		req.Equal("goodbye", msg.Content)
		req.True(msg.IsEdited)
		_, err = repo.EditContent(ctx, "missing", "x", base)
		req.ErrorIs(err, domainmessaging.ErrMessageNotFound)
	})
}

func TestOutbox(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	box := NewOutbox()
	clock := base
	box.now = func() time.Time { return clock }

	req.NoError(box.Add(ctx, appoutbox.EventRecord{ID: "e1", Name: "message.sent"}))
	rec, err := box.Claim(ctx, "w")
	req.NoError(err)
	req.Nil(rec)

	req.NoError(box.Flush(ctx))
	rec, err = box.Claim(ctx, "w")
	req.NoError(err)
	req.Equal("e1", rec.ID)
	again, err := box.Claim(ctx, "w")
	req.NoError(err)
	req.Nil(again)

	req.NoError(box.MarkFailed(ctx, "e1", clock.Add(time.Minute), "boom"))
	rec, err = box.Claim(ctx, "w")
	req.NoError(err)
	req.Nil(rec)
	clock = clock.Add(2 * time.Minute)
	rec, err = box.Claim(ctx, "w")
	req.NoError(err)
	req.Equal(1, rec.Attempts)
	req.NoError(box.MarkSent(ctx, "e1"))
	req.Empty(box.Pending())

	t.Run("rollback discards staged records", func(t *testing.T) {
		req := require.New(t)
		f := Factory{Store: NewStore()}
		unit := begin(t, f, false)
		unitCtx := uow.Bind(ctx, unit)
		req.NoError(box.Add(unitCtx, appoutbox.EventRecord{ID: "e2"}))
		req.Len(box.Pending(), 1)
		req.NoError(unit.Rollback(ctx))
		req.Empty(box.Pending())
	})
}

func TestUserRepository(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewUserRepository()
	u, err := domainuser.NewUser(domainuser.CreateParams{ID: "u1", Email: "a@example.com", FirstName: "A", LastName: "B", PasswordHash: "h"})
	req.NoError(err)
	req.NoError(repo.Save(ctx, u))

	byEmail, err := repo.ByEmail(ctx, "A@example.com")
	req.NoError(err)
	req.Equal(domainuser.ID("u1"), byEmail.ID)

	dup, err := domainuser.NewUser(domainuser.CreateParams{ID: "u2", Email: "a@example.com", FirstName: "C", LastName: "D", PasswordHash: "h"})
	req.NoError(err)
	req.ErrorIs(repo.Save(ctx, dup), domainuser.ErrEmailAlreadyUsed)

	_, err = repo.ByID(ctx, "nope")
	req.ErrorIs(err, domainuser.ErrNotFound)
}

func TestIdempotencyStoreExpiry(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewIdempotencyStore()
	clock := base
	s.now = func() time.Time { return clock }

	req.NoError(s.Save(ctx, middleware.IdempotencyRecord{Key: "k", Payload: []byte(`{}`), ExpiresAt: base.Add(time.Minute)}))
	_, found, err := s.Get(ctx, "k")
	req.NoError(err)
	req.True(found)
	clock = clock.Add(2 * time.Minute)
	_, found, err = s.Get(ctx, "k")
	req.NoError(err)
	req.False(found)
}

func TestListingSearchPaging(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewListingRepository()
	for i, title := range []string{"Piano lessons", "Guitar lessons", "Plumbing"} {
		l, err := domainlistings.NewListing(domainlistings.CreateListingParams{
			ID:       domainlistings.ListingID(title),
			Provider: "p1",
			Title:    title,
			Category: "music",
			City:     "Lyon",
			Now:      base.Add(time.Duration(i) * time.Hour),
		})
		req.NoError(err)
		req.NoError(repo.Save(ctx, l))
	}

	res, err := repo.Search(ctx, domainlistings.SearchParams{Query: "LESSONS", Limit: 1})
	req.NoError(err)
	req.Equal(2, res.Total)
	req.Len(res.Items, 1)
	req.Equal("Guitar lessons", res.Items[0].Title)

	res, err = repo.Search(ctx, domainlistings.SearchParams{Query: "lessons", Limit: 1, Offset: 1})
	req.NoError(err)
	req.Equal("Piano lessons", res.Items[0].Title)

	res, err = repo.Search(ctx, domainlistings.SearchParams{City: "paris"})
	req.NoError(err)
	req.Zero(res.Total)
	req.Empty(res.Items)
}
