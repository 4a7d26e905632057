package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/repository"
	"github.com/academvault/discussions/internal/service"
	"github.com/academvault/discussions/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type published struct {
	userIDs []uuid.UUID
	event   model.WSEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) PublishToUsers(userIDs []uuid.UUID, event model.WSEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{userIDs: userIDs, event: event})
}

func (p *fakePublisher) ofType(eventType string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	db          *gorm.DB
	repos       *repository.Repositories
	pub         *fakePublisher
	discussions *service.DiscussionService
	members     *service.MembershipService
	messages    *service.MessageService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	repos := repository.NewRepositories(db)
	pub := &fakePublisher{}
	log := zap.NewNop()
	return &harness{
		db:          db,
		repos:       repos,
		pub:         pub,
		discussions: service.NewDiscussionService(repos, pub, log),
		members:     service.NewMembershipService(repos, pub, log),
		messages:    service.NewMessageService(repos, pub, nil, log),
	}
}

func (h *harness) user(t *testing.T, name string) *model.User {
	return testutil.CreateUser(t, h.db, name)
}

func (h *harness) create(t *testing.T, admin *model.User, title string, privacy model.Privacy) *model.Discussion {
	t.Helper()
	d, err := h.discussions.Create(context.Background(), admin.ID, model.CreateDiscussionRequest{
		Title:   title,
		Privacy: privacy,
	})
	require.NoError(t, err)
	return d
}

func (h *harness) discussion(t *testing.T, id uint) *model.Discussion {
	t.Helper()
	var d model.Discussion
	require.NoError(t, h.db.Unscoped().First(&d, id).Error)
	return &d
}

func (h *harness) membership(t *testing.T, discussionID uint, userID uuid.UUID) *model.Membership {
	t.Helper()
	var m model.Membership
	require.NoError(t, h.db.Where("discussion_id = ? AND user_id = ?", discussionID, userID).First(&m).Error)
	return &m
}

func (h *harness) countRows(t *testing.T, value interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(value).Where(query, args...).Count(&n).Error)
	return n
}

func (h *harness) outboxEvents(t *testing.T, typ model.NotificationType) []model.OutboxEvent {
	t.Helper()
	var events []model.OutboxEvent
	require.NoError(t, h.db.Where("type = ?", typ).Order("id").Find(&events).Error)
	return events
}

var errInjected = errors.New("injected write failure")

// failWrites makes creates and updates on table fail while match holds (nil
// matches every write). The returned func lifts the failure.
func (h *harness) failWrites(t *testing.T, table string, match func(*gorm.DB) bool) func() {
	t.Helper()
	name := "test:fail_writes_" + table
	fail := func(db *gorm.DB) {
		if db.Statement.Table == table && (match == nil || match(db)) {
			_ = db.AddError(errInjected)
		}
	}
	require.NoError(t, h.db.Callback().Create().Before("gorm:create").Register(name, fail))
	require.NoError(t, h.db.Callback().Update().Before("gorm:update").Register(name, fail))

	lifted := false
	lift := func() {
		if lifted {
			return
		}
		lifted = true
		_ = h.db.Callback().Create().Remove(name)
		_ = h.db.Callback().Update().Remove(name)
	}
	t.Cleanup(lift)
	return lift
}
