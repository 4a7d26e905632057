package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantumReadingGroupScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	user2 := h.user(t, "user2")

	d := h.create(t, admin, "Quantum Reading Group", model.PrivacyInviteOnly)
	require.Len(t, d.InviteCode, 8)
	assert.Equal(t, strings.ToUpper(d.InviteCode), d.InviteCode)
	assert.Equal(t, int64(1), d.MemberCount)

	res, err := h.members.JoinByCode(ctx, user2.ID, d.InviteCode)
	require.NoError(t, err)
	assert.True(t, res.Joined)
	assert.Equal(t, d.ID, res.DiscussionID)
	assert.Equal(t, "Quantum Reading Group", res.Title)
	assert.Equal(t, int64(2), res.MemberCount)

	poll, err := h.messages.Poll(ctx, user2.ID, d.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, poll.Messages, 1)
	msg := poll.Messages[0]
	assert.Equal(t, "user2 joined the discussion.", msg.Content)
	assert.Equal(t, model.MessageTypeSystem, msg.Type)
	assert.Nil(t, msg.UserID)
	assert.Equal(t, msg.ID, poll.Cursor)
	assert.False(t, poll.HasMore)
	assert.Equal(t, int64(2), poll.Stats.MemberCount)
	require.NotEmpty(t, poll.RecentJoins)
	assert.Equal(t, "user2", poll.RecentJoins[len(poll.RecentJoins)-1].Name)
}

func TestJoinByCode_Postconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	user := h.user(t, "reader")
	d := h.create(t, admin, "Reading", model.PrivacyPrivate)

	before := h.discussion(t, d.ID).MemberCount
	_, err := h.members.JoinByCode(ctx, user.ID, d.InviteCode)
	require.NoError(t, err)

	assert.Equal(t, int64(1), h.countRows(t, &model.Membership{}, "discussion_id = ? AND user_id = ? AND status = ?", d.ID, user.ID, model.MemberStatusActive))
	assert.Equal(t, before+1, h.discussion(t, d.ID).MemberCount)
	assert.Equal(t, int64(1), h.countRows(t, &model.Message{}, "discussion_id = ? AND message_type = ?", d.ID, model.MessageTypeSystem))

	events := h.outboxEvents(t, model.NotificationMemberJoined)
	require.Len(t, events, 1)
	assert.Equal(t, []uuid.UUID{admin.ID}, events[0].Payload.RecipientIDs)
	assert.Equal(t, "reader", events[0].Payload.ActorName)

	assert.Len(t, h.pub.ofType(model.WSEventMemberJoined), 1)
}

func TestJoinByCode_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	user := h.user(t, "reader")
	d := h.create(t, admin, "Reading", model.PrivacyInviteOnly)

	first, err := h.members.JoinByCode(ctx, user.ID, d.InviteCode)
	require.NoError(t, err)
	second, err := h.members.JoinByCode(ctx, user.ID, strings.ToLower(d.InviteCode))
	require.NoError(t, err)

	assert.True(t, first.Joined)
	assert.False(t, second.Joined)
	assert.Equal(t, d.ID, second.DiscussionID)
	assert.Equal(t, int64(2), second.MemberCount)
	assert.Equal(t, int64(2), h.discussion(t, d.ID).MemberCount)
	assert.Equal(t, int64(1), h.countRows(t, &model.Membership{}, "discussion_id = ? AND user_id = ?", d.ID, user.ID))
	assert.Equal(t, int64(1), h.countRows(t, &model.Message{}, "discussion_id = ?", d.ID))
	assert.Len(t, h.outboxEvents(t, model.NotificationMemberJoined), 1)
}

func TestJoinByCode_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	user := h.user(t, "reader")

	_, err := h.members.JoinByCode(ctx, user.ID, "NOPE1234")
	assert.ErrorIs(t, err, service.ErrInviteCodeInvalid)
	_, err = h.members.JoinByCode(ctx, user.ID, "   ")
	assert.ErrorIs(t, err, service.ErrInviteCodeInvalid)

	archived := h.create(t, admin, "Archived", model.PrivacyPrivate)
	require.NoError(t, h.discussions.Archive(ctx, admin.ID, archived.ID))
	_, err = h.members.JoinByCode(ctx, user.ID, archived.InviteCode)
	assert.ErrorIs(t, err, service.ErrInviteCodeInvalid)

	deleted := h.create(t, admin, "Deleted", model.PrivacyPrivate)
	require.NoError(t, h.discussions.Delete(ctx, admin.ID, deleted.ID))
	_, err = h.members.JoinByCode(ctx, user.ID, deleted.InviteCode)
	assert.ErrorIs(t, err, service.ErrInviteCodeInvalid)
	assert.Equal(t, service.KindNotFound, service.KindOf(err))
}

func TestJoinByID_AsymmetricWithJoinByCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	user := h.user(t, "reader")
	d := h.create(t, admin, "Open", model.PrivacyPublic)

	res, err := h.members.JoinByID(ctx, user.ID, d.ID)
	require.NoError(t, err)
	assert.True(t, res.Joined)

	_, err = h.members.JoinByID(ctx, user.ID, d.ID)
	assert.ErrorIs(t, err, service.ErrAlreadyMember)
	assert.Equal(t, service.KindConflict, service.KindOf(err))

	// the code path treats the same state as success
	again, err := h.members.JoinByCode(ctx, user.ID, d.InviteCode)
	require.NoError(t, err)
	assert.False(t, again.Joined)

	assert.Equal(t, int64(2), h.discussion(t, d.ID).MemberCount)
}

func TestJoinByID_RequiresPublic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	user := h.user(t, "reader")

	for _, privacy := range []model.Privacy{model.PrivacyPrivate, model.PrivacyInviteOnly} {
		d := h.create(t, admin, string(privacy), privacy)
		_, err := h.members.JoinByID(ctx, user.ID, d.ID)
		assert.ErrorIs(t, err, service.ErrNotPublic)
		assert.Equal(t, service.KindForbidden, service.KindOf(err))
	}

	_, err := h.members.JoinByID(ctx, user.ID, 9999)
	assert.ErrorIs(t, err, service.ErrDiscussionNotFound)
}

func TestLeave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	user := h.user(t, "reader")
	stranger := h.user(t, "stranger")
	d := h.create(t, admin, "Open", model.PrivacyPublic)

	err := h.members.Leave(ctx, admin.ID, d.ID)
	assert.ErrorIs(t, err, service.ErrAdminCannotLeave)
	assert.Equal(t, service.KindForbidden, service.KindOf(err))

	assert.ErrorIs(t, h.members.Leave(ctx, stranger.ID, d.ID), service.ErrNotMember)

	_, err = h.members.JoinByID(ctx, user.ID, d.ID)
	require.NoError(t, err)
	joined := h.membership(t, d.ID, user.ID)

	require.NoError(t, h.members.Leave(ctx, user.ID, d.ID))
	left := h.membership(t, d.ID, user.ID)
	assert.Equal(t, model.MemberStatusLeft, left.Status)
	assert.NotNil(t, left.LeftAt)
	assert.Equal(t, int64(1), h.discussion(t, d.ID).MemberCount)
	assert.Equal(t, int64(1), h.countRows(t, &model.Message{}, "discussion_id = ? AND content = ?", d.ID, "reader left the discussion."))
	assert.Len(t, h.outboxEvents(t, model.NotificationMemberLeft), 1)

	assert.ErrorIs(t, h.members.Leave(ctx, user.ID, d.ID), service.ErrNotMember)

	// re-joining reactivates the same row
	res, err := h.members.JoinByID(ctx, user.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.MemberCount)
	rejoined := h.membership(t, d.ID, user.ID)
	assert.Equal(t, joined.ID, rejoined.ID)
	assert.Equal(t, model.MemberStatusActive, rejoined.Status)
	assert.Nil(t, rejoined.LeftAt)
}

func TestLeave_ConcurrentNeverBelowZero(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	user := h.user(t, "reader")
	d := h.create(t, admin, "Open", model.PrivacyPublic)
	_, err := h.members.JoinByID(ctx, user.ID, d.ID)
	require.NoError(t, err)

	// simulate drift so a second decrement would go negative
	require.NoError(t, h.db.Model(&model.Discussion{}).Where("id = ?", d.ID).Update("member_count", 0).Error)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := h.members.Leave(ctx, user.ID, d.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if !errors.Is(err, service.ErrNotMember) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, int64(0), h.discussion(t, d.ID).MemberCount)
}

func TestCanAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	member := h.user(t, "member")
	stranger := h.user(t, "stranger")
	public := h.create(t, admin, "Open", model.PrivacyPublic)
	private := h.create(t, admin, "Closed", model.PrivacyPrivate)
	_, err := h.members.JoinByCode(ctx, member.ID, private.InviteCode)
	require.NoError(t, err)

	tests := []struct {
		name string
		user *model.User
		d    *model.Discussion
		want bool
	}{
		{"public stranger", stranger, public, true},
		{"private admin", admin, private, true},
		{"private member", member, private, true},
		{"private stranger", stranger, private, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.members.CanAccess(ctx, tt.user.ID, tt.d.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	require.NoError(t, h.members.Leave(ctx, member.ID, private.ID))
	ok, err := h.members.CanAccess(ctx, member.ID, private.ID)
	require.NoError(t, err)
	assert.False(t, ok, "left members lose access")
}

func TestUpdateMember_BanAndRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	mod := h.user(t, "mod")
	user := h.user(t, "reader")
	d := h.create(t, admin, "Closed", model.PrivacyPrivate)
	for _, u := range []*model.User{mod, user} {
		_, err := h.members.JoinByCode(ctx, u.ID, d.InviteCode)
		require.NoError(t, err)
	}
	_, err := h.members.UpdateMember(ctx, admin.ID, d.ID, mod.ID, model.UpdateMemberRequest{Role: model.MemberRoleModerator})
	require.NoError(t, err)

	m, err := h.members.UpdateMember(ctx, mod.ID, d.ID, user.ID, model.UpdateMemberRequest{Status: model.MemberStatusBanned})
	require.NoError(t, err)
	assert.Equal(t, model.MemberStatusBanned, m.Status)
	assert.Equal(t, int64(2), h.discussion(t, d.ID).MemberCount)

	_, err = h.members.JoinByCode(ctx, user.ID, d.InviteCode)
	assert.ErrorIs(t, err, service.ErrBanned)
	ok, err := h.members.CanAccess(ctx, user.ID, d.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	m, err = h.members.UpdateMember(ctx, admin.ID, d.ID, user.ID, model.UpdateMemberRequest{Status: model.MemberStatusActive})
	require.NoError(t, err)
	assert.Equal(t, model.MemberStatusActive, m.Status)
	assert.Equal(t, int64(3), h.discussion(t, d.ID).MemberCount)

	// moderators cannot change roles or touch the admin
	_, err = h.members.UpdateMember(ctx, mod.ID, d.ID, user.ID, model.UpdateMemberRequest{Role: model.MemberRoleGuest})
	assert.ErrorIs(t, err, service.ErrNotAdmin)
	_, err = h.members.UpdateMember(ctx, mod.ID, d.ID, admin.ID, model.UpdateMemberRequest{Status: model.MemberStatusMuted})
	assert.ErrorIs(t, err, service.ErrCannotModerateAdmin)
	_, err = h.members.UpdateMember(ctx, user.ID, d.ID, mod.ID, model.UpdateMemberRequest{Status: model.MemberStatusMuted})
	assert.ErrorIs(t, err, service.ErrNotModerator)
}

func TestInviteMembers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	a := h.user(t, "alice")
	b := h.user(t, "bob")
	d := h.create(t, admin, "Closed", model.PrivacyInviteOnly)
	_, err := h.members.JoinByCode(ctx, a.ID, d.InviteCode)
	require.NoError(t, err)

	stranger := uuid.New()
	added, err := h.members.InviteMembers(ctx, admin.ID, d.ID, []uuid.UUID{a.ID, b.ID, b.ID, stranger, admin.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID}, added)
	assert.Equal(t, int64(3), h.discussion(t, d.ID).MemberCount)
	assert.Equal(t, int64(1), h.countRows(t, &model.Message{}, "discussion_id = ? AND content = ?", d.ID, "bob joined the discussion."))

	events := h.outboxEvents(t, model.NotificationInvited)
	require.Len(t, events, 1)
	assert.Equal(t, []uuid.UUID{b.ID}, events[0].Payload.RecipientIDs)
	assert.Equal(t, d.InviteCode, events[0].Payload.InviteCode)

	_, err = h.members.InviteMembers(ctx, a.ID, d.ID, []uuid.UUID{b.ID})
	assert.ErrorIs(t, err, service.ErrNotModerator)
}

func TestListMembers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")
	outsider := h.user(t, "outsider")
	d := h.create(t, admin, "Private lab", model.PrivacyPrivate)

	_, err := h.members.JoinByCode(ctx, alice.ID, d.InviteCode)
	require.NoError(t, err)
	_, err = h.members.JoinByCode(ctx, bob.ID, d.InviteCode)
	require.NoError(t, err)
	_, err = h.members.UpdateMember(ctx, admin.ID, d.ID, bob.ID, model.UpdateMemberRequest{Status: model.MemberStatusBanned})
	require.NoError(t, err)

	ids := func(ms []model.Membership) []uuid.UUID {
		out := make([]uuid.UUID, 0, len(ms))
		for _, m := range ms {
			out = append(out, m.UserID)
		}
		return out
	}

	members, err := h.members.ListMembers(ctx, alice.ID, d.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{admin.ID, alice.ID}, ids(members))

	// moderators also see banned members
	members, err = h.members.ListMembers(ctx, admin.ID, d.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{admin.ID, alice.ID, bob.ID}, ids(members))

	_, err = h.members.ListMembers(ctx, outsider.ID, d.ID)
	assert.ErrorIs(t, err, service.ErrAccessDenied)
	_, err = h.members.ListMembers(ctx, bob.ID, d.ID)
	assert.ErrorIs(t, err, service.ErrAccessDenied)
}

func TestJoinByCode_RollsBackWhenALateStepFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	user := h.user(t, "reader")
	d := h.create(t, admin, "Atomic", model.PrivacyPrivate)

	// the outbox insert is the last write of a join
	lift := h.failWrites(t, "outbox_events", nil)
	_, err := h.members.JoinByCode(ctx, user.ID, d.InviteCode)
	require.ErrorIs(t, err, errInjected)

	assert.Equal(t, int64(0), h.countRows(t, &model.Membership{}, "discussion_id = ? AND user_id = ?", d.ID, user.ID))
	assert.Equal(t, int64(1), h.discussion(t, d.ID).MemberCount)
	assert.Equal(t, int64(0), h.countRows(t, &model.Message{}, "discussion_id = ?", d.ID))
	assert.Empty(t, h.outboxEvents(t, model.NotificationMemberJoined))
	assert.Empty(t, h.pub.ofType(model.WSEventMemberJoined))

	lift()
	res, err := h.members.JoinByCode(ctx, user.ID, d.InviteCode)
	require.NoError(t, err)
	assert.True(t, res.Joined)
	assert.Equal(t, int64(2), res.MemberCount)
	assert.Equal(t, int64(1), h.countRows(t, &model.Message{}, "discussion_id = ?", d.ID))
}

func TestLeave_RollsBackWhenALateStepFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	user := h.user(t, "reader")
	d := h.create(t, admin, "Atomic", model.PrivacyPublic)
	_, err := h.members.JoinByID(ctx, user.ID, d.ID)
	require.NoError(t, err)

	h.failWrites(t, "outbox_events", nil)
	require.ErrorIs(t, h.members.Leave(ctx, user.ID, d.ID), errInjected)

	assert.Equal(t, model.MemberStatusActive, h.membership(t, d.ID, user.ID).Status)
	assert.Equal(t, int64(2), h.discussion(t, d.ID).MemberCount)
	assert.Equal(t, int64(1), h.countRows(t, &model.Message{}, "discussion_id = ?", d.ID), "only the joined message")
}

func TestAnnouncePresence_TargetsCoMembersOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	alice := h.user(t, "alice")
	bob := h.user(t, "bob")
	leaver := h.user(t, "leaver")
	stranger := h.user(t, "stranger")

	d := h.create(t, admin, "Seminar", model.PrivacyPublic)
	for _, u := range []*model.User{alice, bob, leaver} {
		_, err := h.members.JoinByID(ctx, u.ID, d.ID)
		require.NoError(t, err)
	}
	require.NoError(t, h.members.Leave(ctx, leaver.ID, d.ID))
	h.create(t, stranger, "Elsewhere", model.PrivacyPublic)

	require.NoError(t, h.members.AnnouncePresence(ctx, alice.ID, true))
	online := h.pub.ofType(model.WSEventOnline)
	require.Len(t, online, 1)
	assert.ElementsMatch(t, []uuid.UUID{admin.ID, bob.ID}, online[0].userIDs)
	assert.Equal(t, model.OnlineEvent{UserID: alice.ID, IsOnline: true}, online[0].event.Payload)

	require.NoError(t, h.members.AnnouncePresence(ctx, stranger.ID, false))
	offline := h.pub.ofType(model.WSEventOffline)
	require.Len(t, offline, 1)
	assert.Empty(t, offline[0].userIDs)
}
