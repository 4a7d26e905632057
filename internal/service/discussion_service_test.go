package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

func TestCreate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	a := h.user(t, "alice")
	b := h.user(t, "bob")

	_, err := h.discussions.Create(ctx, admin.ID, model.CreateDiscussionRequest{Title: "   "})
	assert.ErrorIs(t, err, service.ErrTitleRequired)
	assert.Equal(t, service.KindValidation, service.KindOf(err))

	_, err = h.discussions.Create(ctx, uuid.New(), model.CreateDiscussionRequest{Title: "Ghost"})
	assert.ErrorIs(t, err, service.ErrUserNotFound)

	d, err := h.discussions.Create(ctx, admin.ID, model.CreateDiscussionRequest{
		Title:          "  Lattice Methods  ",
		Description:    `<p>Weekly</p><script>alert(1)</script>`,
		Tags:           []string{"Physics", "physics", " math "},
		InitialMembers: []uuid.UUID{a.ID, b.ID, admin.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "Lattice Methods", d.Title)
	assert.Equal(t, "<p>Weekly</p>", d.Description)
	assert.Equal(t, model.PrivacyPublic, d.Privacy)
	assert.Equal(t, model.DiscussionTypeGeneral, d.Type)
	assert.Equal(t, []string{"physics", "math"}, d.Tags)
	assert.Equal(t, admin.ID, d.AdminID)
	assert.Equal(t, "admin", d.Admin.Name)
	assert.Equal(t, int64(3), d.MemberCount)

	m := h.membership(t, d.ID, admin.ID)
	assert.Equal(t, model.MemberRoleAdmin, m.Role)
	assert.Equal(t, int64(2), h.countRows(t, &model.Message{}, "discussion_id = ? AND message_type = ?", d.ID, model.MessageTypeSystem))
	assert.Len(t, h.outboxEvents(t, model.NotificationInvited), 1)
}

func TestGet_HidesInviteCodeFromOutsiders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	stranger := h.user(t, "stranger")
	public := h.create(t, admin, "Open", model.PrivacyPublic)
	private := h.create(t, admin, "Closed", model.PrivacyPrivate)

	view, err := h.discussions.Get(ctx, admin.ID, public.ID)
	require.NoError(t, err)
	assert.Equal(t, public.InviteCode, view.InviteCode)
	assert.Equal(t, model.MemberRoleAdmin, view.MyRole)

	view, err = h.discussions.Get(ctx, stranger.ID, public.ID)
	require.NoError(t, err)
	assert.Empty(t, view.InviteCode)
	assert.Empty(t, view.MyRole)

	_, err = h.discussions.Get(ctx, stranger.ID, private.ID)
	assert.ErrorIs(t, err, service.ErrAccessDenied)
}

func TestListings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	user := h.user(t, "reader")
	open := h.create(t, admin, "Quantum Optics", model.PrivacyPublic)
	h.create(t, admin, "Quantum Secrets", model.PrivacyPrivate)
	archived := h.create(t, admin, "Quantum Archive", model.PrivacyPublic)
	require.NoError(t, h.discussions.Archive(ctx, admin.ID, archived.ID))

	public, err := h.discussions.ListPublic(ctx, model.DiscussionListRequest{Query: "quantum"})
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, open.ID, public[0].ID)
	assert.Empty(t, public[0].InviteCode)

	_, err = h.members.JoinByID(ctx, user.ID, open.ID)
	require.NoError(t, err)
	mine, err := h.discussions.ListMine(ctx, user.ID, model.DiscussionListRequest{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, open.ID, mine[0].ID)

	adminArchived, err := h.discussions.ListMine(ctx, admin.ID, model.DiscussionListRequest{Archived: true})
	require.NoError(t, err)
	require.Len(t, adminArchived, 1)
	assert.Equal(t, archived.ID, adminArchived[0].ID)
}

func TestRegenerateInviteCode_RejectsCollisions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	a := h.create(t, admin, "A", model.PrivacyPrivate)
	b := h.create(t, admin, "B", model.PrivacyPrivate)

	for _, code := range []string{b.InviteCode, strings.ToLower(b.InviteCode)} {
		_, err := h.discussions.RegenerateInviteCode(ctx, admin.ID, a.ID, code)
		assert.ErrorIs(t, err, service.ErrInviteCodeTaken)
		assert.Equal(t, service.KindConflict, service.KindOf(err))
		assert.Equal(t, a.InviteCode, h.discussion(t, a.ID).InviteCode)
	}

	// the metadata update is refused along with the code
	_, err := h.discussions.Update(ctx, admin.ID, a.ID, model.UpdateDiscussionRequest{Title: strPtr("Renamed"), InviteCode: b.InviteCode})
	assert.ErrorIs(t, err, service.ErrInviteCodeTaken)
	assert.Equal(t, "A", h.discussion(t, a.ID).Title)

	// codes of deleted discussions stay reserved
	require.NoError(t, h.discussions.Delete(ctx, admin.ID, b.ID))
	_, err = h.discussions.RegenerateInviteCode(ctx, admin.ID, a.ID, b.InviteCode)
	assert.ErrorIs(t, err, service.ErrInviteCodeTaken)
}

func TestRegenerateInviteCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	user := h.user(t, "reader")
	d := h.create(t, admin, "A", model.PrivacyInviteOnly)

	_, err := h.discussions.RegenerateInviteCode(ctx, user.ID, d.ID, "")
	assert.ErrorIs(t, err, service.ErrNotAdmin)

	_, err = h.discussions.RegenerateInviteCode(ctx, admin.ID, d.ID, "ab!")
	assert.ErrorIs(t, err, service.ErrInvalidInviteCode)

	code, err := h.discussions.RegenerateInviteCode(ctx, admin.ID, d.ID, "")
	require.NoError(t, err)
	assert.NotEqual(t, d.InviteCode, code)
	assert.Len(t, code, 8)

	_, err = h.members.JoinByCode(ctx, user.ID, d.InviteCode)
	assert.ErrorIs(t, err, service.ErrInviteCodeInvalid, "the old code stops working")

	custom, err := h.discussions.RegenerateInviteCode(ctx, admin.ID, d.ID, "qubits2024")
	require.NoError(t, err)
	assert.Equal(t, "QUBITS2024", custom)

	res, err := h.members.JoinByCode(ctx, user.ID, "Qubits2024")
	require.NoError(t, err)
	assert.True(t, res.Joined)
}

func TestUpdate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	user := h.user(t, "reader")
	d := h.create(t, admin, "A", model.PrivacyPublic)

	_, err := h.discussions.Update(ctx, user.ID, d.ID, model.UpdateDiscussionRequest{Title: strPtr("x")})
	assert.ErrorIs(t, err, service.ErrNotAdmin)

	pinned := true
	tags := []string{"Optics"}
	updated, err := h.discussions.Update(ctx, admin.ID, d.ID, model.UpdateDiscussionRequest{
		Title:       strPtr("Optics"),
		Description: strPtr("<b>notes</b>"),
		IsPinned:    &pinned,
		Tags:        &tags,
	})
	require.NoError(t, err)
	assert.Equal(t, "Optics", updated.Title)
	assert.Equal(t, "<b>notes</b>", updated.Description)
	assert.True(t, updated.IsPinned)
	assert.Equal(t, []string{"optics"}, updated.Tags)
	assert.Equal(t, d.InviteCode, updated.InviteCode)

	pinned = false
	updated, err = h.discussions.Update(ctx, admin.ID, d.ID, model.UpdateDiscussionRequest{IsPinned: &pinned})
	require.NoError(t, err)
	assert.False(t, updated.IsPinned)
	assert.Equal(t, "Optics", updated.Title)
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	user := h.user(t, "reader")
	troll := h.user(t, "troll")
	d := h.create(t, admin, "Doomed", model.PrivacyPublic)
	_, err := h.members.JoinByID(ctx, user.ID, d.ID)
	require.NoError(t, err)
	_, err = h.messages.Send(ctx, user.ID, d.ID, model.SendMessageRequest{Content: "bye"})
	require.NoError(t, err)
	_, err = h.members.JoinByID(ctx, troll.ID, d.ID)
	require.NoError(t, err)
	_, err = h.members.UpdateMember(ctx, admin.ID, d.ID, troll.ID, model.UpdateMemberRequest{Status: model.MemberStatusBanned})
	require.NoError(t, err)

	assert.ErrorIs(t, h.discussions.Delete(ctx, user.ID, d.ID), service.ErrNotAdmin)
	require.NoError(t, h.discussions.Delete(ctx, admin.ID, d.ID))

	stored := h.discussion(t, d.ID)
	assert.True(t, stored.DeletedAt.Valid)
	assert.Equal(t, int64(0), stored.MemberCount)
	assert.Equal(t, int64(0), h.countRows(t, &model.Message{}, "discussion_id = ?", d.ID))
	assert.Equal(t, int64(0), h.countRows(t, &model.Membership{}, "discussion_id = ? AND status IN ?", d.ID, model.CurrentStatuses))
	assert.Equal(t, int64(3), h.countRows(t, &model.Membership{}, "discussion_id = ? AND status = ?", d.ID, model.MemberStatusLeft))
	assert.Equal(t, model.MemberStatusLeft, h.membership(t, d.ID, troll.ID).Status, "banned rows are closed too")
	assert.NotNil(t, h.membership(t, d.ID, troll.ID).LeftAt)

	events := h.outboxEvents(t, model.NotificationDiscussionDeleted)
	require.Len(t, events, 1)
	assert.Equal(t, []uuid.UUID{user.ID}, events[0].Payload.RecipientIDs)
	assert.Len(t, h.pub.ofType(model.WSEventDiscussionDeleted), 1)

	_, err = h.messages.Poll(ctx, user.ID, d.ID, 0, 10)
	assert.ErrorIs(t, err, service.ErrDiscussionNotFound)
	assert.ErrorIs(t, h.discussions.Delete(ctx, admin.ID, d.ID), service.ErrDiscussionNotFound)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, service.KindInternal, service.KindOf(assert.AnError))
	assert.Equal(t, service.KindNotFound, service.KindOf(service.ErrDiscussionNotFound))
}

func TestArchive_ReadOnlyUntilUnarchived(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	member := h.user(t, "member")
	d := h.create(t, admin, "Seminar", model.PrivacyPublic)
	_, err := h.members.JoinByID(ctx, member.ID, d.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, h.discussions.Archive(ctx, member.ID, d.ID), service.ErrNotAdmin)
	require.NoError(t, h.discussions.Archive(ctx, admin.ID, d.ID))
	require.NoError(t, h.discussions.Archive(ctx, admin.ID, d.ID), "archiving twice is a no-op")

	_, err = h.messages.Send(ctx, member.ID, d.ID, model.SendMessageRequest{Content: "hello?"})
	assert.ErrorIs(t, err, service.ErrDiscussionArchived)
	_, err = h.messages.Send(ctx, admin.ID, d.ID, model.SendMessageRequest{Content: "closing notes"})
	assert.ErrorIs(t, err, service.ErrDiscussionArchived)

	// reading still works
	poll, err := h.messages.Poll(ctx, member.ID, d.ID, 0, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, poll.Messages)

	require.NoError(t, h.discussions.Unarchive(ctx, admin.ID, d.ID))
	_, err = h.messages.Send(ctx, member.ID, d.ID, model.SendMessageRequest{Content: "back again"})
	assert.NoError(t, err)
}

func TestUpdate_InviteCodeAndFieldsCommitTogether(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.user(t, "admin")
	d := h.create(t, admin, "Before", model.PrivacyPrivate)

	selectsTitle := func(db *gorm.DB) bool {
		for _, col := range db.Statement.Selects {
			if col == "title" {
				return true
			}
		}
		return false
	}
	lift := h.failWrites(t, "discussions", selectsTitle)
	_, err := h.discussions.Update(ctx, admin.ID, d.ID, model.UpdateDiscussionRequest{
		Title:                strPtr("After"),
		RegenerateInviteCode: true,
	})
	require.ErrorIs(t, err, errInjected)

	stored := h.discussion(t, d.ID)
	assert.Equal(t, "Before", stored.Title)
	assert.Equal(t, d.InviteCode, stored.InviteCode, "the code change rolled back with the metadata")

	lift()
	updated, err := h.discussions.Update(ctx, admin.ID, d.ID, model.UpdateDiscussionRequest{
		Title:      strPtr("After"),
		InviteCode: "after2024",
	})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Title)
	assert.Equal(t, "AFTER2024", updated.InviteCode)
}
