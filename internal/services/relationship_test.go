package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereayou/whisper/internal/database"
	"github.com/thereayou/whisper/internal/models"
	"github.com/thereayou/whisper/internal/testutil"
)

type relFixture struct {
	db       *database.Database
	svc      *RelationshipService
	notifier *testutil.Notifier
	alice    *models.User
	bob      *models.User
	carol    *models.User
}

func newRelFixture(t *testing.T) *relFixture {
	db := testutil.NewDB(t)
	notifier := &testutil.Notifier{}
	return &relFixture{
		db:       db,
		svc:      NewRelationshipService(db, notifier),
		notifier: notifier,
		alice:    testutil.CreateUser(t, db, "u1", "alice"),
		bob:      testutil.CreateUser(t, db, "u2", "bob"),
		carol:    testutil.CreateUser(t, db, "u3", "carol"),
	}
}

func (f *relFixture) requireDual(t *testing.T, a, b string, want RelationshipStatus) {
	t.Helper()
	ctx := context.Background()

	ab, err := f.svc.Status(ctx, a, b)
	require.NoError(t, err)
	ba, err := f.svc.Status(ctx, b, a)
	require.NoError(t, err)

	dual := map[RelationshipStatus]RelationshipStatus{
		StatusFriends:         StatusFriends,
		StatusRequestSent:     StatusRequestReceived,
		StatusRequestReceived: StatusRequestSent,
		StatusUnknown:         StatusUnknown,
	}
	assert.Equal(t, want, ab.Status)
	assert.Equal(t, dual[want], ba.Status)
}

func TestRelationshipStatusDuality(t *testing.T) {
	ctx := context.Background()
	f := newRelFixture(t)

	f.requireDual(t, "u1", "u2", StatusUnknown)

	res, err := f.svc.SendChatRequest(ctx, f.alice, "u2")
	require.NoError(t, err)
	f.requireDual(t, "u1", "u2", StatusRequestSent)

	rel, err := f.svc.Status(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, res.Request.ID, rel.RequestID)

	accepted, err := f.svc.RespondToChatRequest(ctx, f.bob, res.Request.ID, models.RequestAccepted)
	require.NoError(t, err)
	f.requireDual(t, "u1", "u2", StatusFriends)

	rel, err = f.svc.Status(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, accepted.Chat.ID, rel.ChatID)

	f.requireDual(t, "u1", "u3", StatusUnknown)
	f.requireDual(t, "u1", "u1", StatusUnknown)
}

func TestSendChatRequest(t *testing.T) {
	ctx := context.Background()
	f := newRelFixture(t)

	res, err := f.svc.SendChatRequest(ctx, f.alice, "u2")
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, res.Request.Status)
	assert.Nil(t, res.Chat)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "u2", sent[0].UserID)
	assert.Equal(t, EventIncomingChatRequest, sent[0].Event)
	payload := sent[0].Payload.(IncomingChatRequest)
	assert.Equal(t, res.Request.ID, payload.ID)
	assert.Equal(t, "u1", payload.SenderID)
	assert.Equal(t, "alice", payload.Sender.Username)

	t.Run("duplicate", func(t *testing.T) {
		_, err := f.svc.SendChatRequest(ctx, f.alice, "u2")
		assert.ErrorIs(t, err, ErrDuplicateRequest)
	})

	t.Run("self", func(t *testing.T) {
		_, err := f.svc.SendChatRequest(ctx, f.alice, "u1")
		assert.ErrorIs(t, err, ErrInvalidTarget)
	})

	t.Run("unknown receiver", func(t *testing.T) {
		_, err := f.svc.SendChatRequest(ctx, f.alice, "nobody")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("already friends", func(t *testing.T) {
		_, err := f.svc.RespondToChatRequest(ctx, f.bob, res.Request.ID, models.RequestAccepted)
		require.NoError(t, err)

		_, err = f.svc.SendChatRequest(ctx, f.bob, "u1")
		assert.ErrorIs(t, err, ErrAlreadyFriends)
	})

	assert.Len(t, f.notifier.Sent(), 2, "failed sends must not notify")
}

func TestSendChatRequestAfterRejection(t *testing.T) {
	ctx := context.Background()
	f := newRelFixture(t)

	res, err := f.svc.SendChatRequest(ctx, f.alice, "u2")
	require.NoError(t, err)
	_, err = f.svc.RespondToChatRequest(ctx, f.bob, res.Request.ID, models.RequestRejected)
	require.NoError(t, err)

	_, err = f.svc.SendChatRequest(ctx, f.alice, "u2")
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestReversePendingRequestIsMutualAcceptance(t *testing.T) {
	ctx := context.Background()
	f := newRelFixture(t)

	first, err := f.svc.SendChatRequest(ctx, f.alice, "u2")
	require.NoError(t, err)

	res, err := f.svc.SendChatRequest(ctx, f.bob, "u1")
	require.NoError(t, err)
	require.NotNil(t, res.Chat)
	assert.Equal(t, first.Request.ID, res.Request.ID)
	assert.Equal(t, models.RequestAccepted, res.Request.Status)
	assert.Equal(t, models.ChatTypeOneOnOne, res.Chat.ChatType)

	members, err := f.db.GetChatMembers(ctx, []string{res.Chat.ID})
	require.NoError(t, err)
	assert.Len(t, members, 2)
	f.requireDual(t, "u1", "u2", StatusFriends)

	sent := f.notifier.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "u1", sent[1].UserID)
	assert.Equal(t, EventChatRequestAccepted, sent[1].Event)
	assert.Equal(t, res.Chat.ID, sent[1].Payload.(ChatRequestAccepted).ChatID)

	_, err = f.db.FindChatRequest(ctx, "u2", "u1")
	assert.ErrorIs(t, err, database.ErrNotFound, "no second request row is created")
}

func TestRespondToChatRequestAccept(t *testing.T) {
	ctx := context.Background()
	f := newRelFixture(t)

	sent, err := f.svc.SendChatRequest(ctx, f.alice, "u2")
	require.NoError(t, err)

	res, err := f.svc.RespondToChatRequest(ctx, f.bob, sent.Request.ID, models.RequestAccepted)
	require.NoError(t, err)
	require.NotNil(t, res.Chat)
	assert.Equal(t, models.ChatTypeOneOnOne, res.Chat.ChatType)

	members, err := f.db.GetChatMembers(ctx, []string{res.Chat.ID})
	require.NoError(t, err)
	require.Len(t, members, 2)
	ids := []string{members[0].MemberID, members[1].MemberID}
	assert.ElementsMatch(t, []string{"u1", "u2"}, ids)
	assert.Equal(t, models.RoleMember, members[0].Role)

	chats, err := f.db.GetUserChats(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	notes := f.notifier.Sent()
	require.Len(t, notes, 2)
	assert.Equal(t, "u1", notes[1].UserID)
	assert.Equal(t, EventChatRequestAccepted, notes[1].Event)
	accepted := notes[1].Payload.(ChatRequestAccepted)
	assert.Equal(t, res.Chat.ID, accepted.ChatID)
	assert.Equal(t, sent.Request.ID, accepted.RequestID)

	for _, decision := range []models.ChatRequestStatus{models.RequestAccepted, models.RequestRejected} {
		_, err = f.svc.RespondToChatRequest(ctx, f.bob, sent.Request.ID, decision)
		assert.ErrorIs(t, err, ErrAlreadyResolved)
	}

	chats, err = f.db.GetUserChats(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, chats, 1, "a resolved request never creates a second chat")
}

func TestRespondToChatRequestReject(t *testing.T) {
	ctx := context.Background()
	f := newRelFixture(t)

	sent, err := f.svc.SendChatRequest(ctx, f.alice, "u2")
	require.NoError(t, err)

	res, err := f.svc.RespondToChatRequest(ctx, f.bob, sent.Request.ID, models.RequestRejected)
	require.NoError(t, err)
	assert.Nil(t, res.Chat)

	chats, err := f.db.GetUserChats(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, chats)

	req, err := f.db.GetChatRequest(ctx, sent.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, req.Status)

	notes := f.notifier.Sent()
	require.Len(t, notes, 2)
	assert.Equal(t, EventChatRequestRejected, notes[1].Event)
	assert.Equal(t, ChatRequestRejected{RequestID: sent.Request.ID, Status: "rejected"}, notes[1].Payload)

	_, err = f.svc.RespondToChatRequest(ctx, f.bob, sent.Request.ID, models.RequestAccepted)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	req, err = f.db.GetChatRequest(ctx, sent.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, req.Status)
}

func TestRespondToChatRequestValidation(t *testing.T) {
	ctx := context.Background()
	f := newRelFixture(t)

	sent, err := f.svc.SendChatRequest(ctx, f.alice, "u2")
	require.NoError(t, err)

	_, err = f.svc.RespondToChatRequest(ctx, f.bob, sent.Request.ID, "maybe")
	assert.ErrorIs(t, err, ErrInvalidDecision)

	_, err = f.svc.RespondToChatRequest(ctx, f.bob, "missing", models.RequestAccepted)
	assert.ErrorIs(t, err, ErrRequestNotFound)

	_, err = f.svc.RespondToChatRequest(ctx, f.carol, sent.Request.ID, models.RequestAccepted)
	assert.ErrorIs(t, err, ErrRequestNotFound)

	_, err = f.svc.RespondToChatRequest(ctx, f.alice, sent.Request.ID, models.RequestAccepted)
	assert.ErrorIs(t, err, ErrRequestNotFound, "the sender cannot answer their own request")
}

func TestConcurrentAcceptHasOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newRelFixture(t)

	sent, err := f.svc.SendChatRequest(ctx, f.alice, "u2")
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.RespondToChatRequest(ctx, f.bob, sent.Request.ID, models.RequestAccepted)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyResolved)
	}
	assert.Equal(t, 1, wins)

	chats, err := f.db.GetUserChats(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestCrossingRequestsBecomeOneChat(t *testing.T) {
	ctx := context.Background()
	f := newRelFixture(t)

	var wg sync.WaitGroup
	results := make([]*SendResult, 2)
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = f.svc.SendChatRequest(ctx, f.alice, "u2")
	}()
	go func() {
		defer wg.Done()
		results[1], errs[1] = f.svc.SendChatRequest(ctx, f.bob, "u1")
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	chats := 0
	for _, res := range results {
		if res.Chat != nil {
			chats++
		}
	}
	assert.Equal(t, 1, chats, "exactly one send turns into mutual acceptance")

	for _, id := range []string{"u1", "u2"} {
		pending, err := f.svc.ListPendingRequests(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, pending)
	}
	userChats, err := f.db.GetUserChats(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, userChats, 1)
	f.requireDual(t, "u1", "u2", StatusFriends)
}

func TestSendChatRequestToDeletedUser(t *testing.T) {
	ctx := context.Background()
	f := newRelFixture(t)
	require.NoError(t, f.db.SoftDeleteUser(ctx, "u3"))

	_, err := f.svc.SendChatRequest(ctx, f.alice, "u3")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, f.notifier.Sent())
}

func TestListPendingRequests(t *testing.T) {
	ctx := context.Background()
	f := newRelFixture(t)

	fromBob, err := f.svc.SendChatRequest(ctx, f.bob, "u1")
	require.NoError(t, err)
	fromCarol, err := f.svc.SendChatRequest(ctx, f.carol, "u1")
	require.NoError(t, err)
	_, err = f.svc.SendChatRequest(ctx, f.alice, "u3")
	assert.NoError(t, err, "carol's request is accepted by the reverse send")

	list, err := f.svc.ListPendingRequests(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fromBob.Request.ID, list[0].ID)
	assert.Equal(t, "bob", list[0].Sender.Username)
	assert.Equal(t, "pending", list[0].Status)
	assert.NotEqual(t, fromCarol.Request.ID, list[0].ID)

	empty, err := f.svc.ListPendingRequests(ctx, "u2")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestRelationshipsBatch(t *testing.T) {
	ctx := context.Background()
	f := newRelFixture(t)
	testutil.CreateUser(t, f.db, "u4", "dave")

	toBob, err := f.svc.SendChatRequest(ctx, f.alice, "u2")
	require.NoError(t, err)
	fromCarol, err := f.svc.SendChatRequest(ctx, f.carol, "u1")
	require.NoError(t, err)

	rels, err := f.svc.Relationships(ctx, "u1", []string{"u2", "u3", "u4"})
	require.NoError(t, err)
	assert.Equal(t, Relationship{Status: StatusRequestSent, RequestID: toBob.Request.ID}, rels["u2"])
	assert.Equal(t, Relationship{Status: StatusRequestReceived, RequestID: fromCarol.Request.ID}, rels["u3"])
	assert.Equal(t, Relationship{Status: StatusUnknown}, rels["u4"])
}
