package service

import "errors"

var (
	// NotFound
	ErrDiscussionNotFound   = errors.New("discussion not found")
	ErrInviteCodeInvalid    = errors.New("invite code invalid or expired")
	ErrMessageNotFound      = errors.New("message not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// Forbidden
	ErrNotPublic           = errors.New("discussion is not public, join with an invite code")
	ErrNotAdmin            = errors.New("only the discussion admin can do this")
	ErrNotModerator        = errors.New("only the admin or a moderator can do this")
	ErrAdminCannotLeave    = errors.New("the admin cannot leave the discussion")
	ErrNotMember           = errors.New("you are not a member of this discussion")
	ErrAccessDenied        = errors.New("you do not have access to this discussion")
	ErrBanned              = errors.New("you are banned from this discussion")
	ErrMuted               = errors.New("you are muted in this discussion")
	ErrDiscussionArchived  = errors.New("discussion is archived and read-only")
	ErrCannotModerateAdmin = errors.New("the discussion admin cannot be moderated")
	ErrCannotDeleteMessage = errors.New("you cannot delete this message")

	// Conflict
	ErrAlreadyMember   = errors.New("you are already a member of this discussion")
	ErrInviteCodeTaken = errors.New("invite code is already in use")

	// Validation
	ErrTitleRequired      = errors.New("title is required")
	ErrInvalidPrivacy     = errors.New("invalid privacy")
	ErrInvalidType        = errors.New("invalid discussion type")
	ErrInvalidInviteCode  = errors.New("invite code must be 6 to 16 letters or digits")
	ErrEmptyMessage       = errors.New("message needs content, a document or an attachment")
	ErrInvalidReply       = errors.New("reply target is not a message of this discussion")
	ErrAttachmentNotFound = errors.New("attachment does not exist")
	ErrInvalidMemberState = errors.New("invalid member status or role")

	// Internal
	ErrInviteCodeExhausted = errors.New("could not generate a unique invite code")
)

// Kind classifies a service error for transport mapping
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindValidation
)

var kinds = []struct {
	kind Kind
	errs []error
}{
	{KindNotFound, []error{ErrDiscussionNotFound, ErrInviteCodeInvalid, ErrMessageNotFound, ErrMemberNotFound, ErrUserNotFound, ErrNotificationNotFound}},
	{KindForbidden, []error{ErrNotPublic, ErrNotAdmin, ErrNotModerator, ErrAdminCannotLeave, ErrNotMember, ErrAccessDenied, ErrBanned, ErrMuted, ErrDiscussionArchived, ErrCannotModerateAdmin, ErrCannotDeleteMessage}},
	{KindConflict, []error{ErrAlreadyMember, ErrInviteCodeTaken}},
	{KindValidation, []error{ErrTitleRequired, ErrInvalidPrivacy, ErrInvalidType, ErrInvalidInviteCode, ErrEmptyMessage, ErrInvalidReply, ErrAttachmentNotFound, ErrInvalidMemberState}},
}

// KindOf returns the kind of err, KindInternal for anything unclassified
func KindOf(err error) Kind {
	for _, k := range kinds {
		for _, target := range k.errs {
			if errors.Is(err, target) {
				return k.kind
			}
		}
	}
	return KindInternal
}
