package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/academvault/discussions/internal/config"
	"github.com/academvault/discussions/internal/model"
	"github.com/academvault/discussions/internal/repository"
	"github.com/academvault/discussions/internal/service"
	"github.com/academvault/discussions/pkg/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const demoDiscussion = "Quantum Reading Group"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Force DB logging off to avoid noise
	db, err := config.NewPostgresDB(cfg.Database, false)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		logger.Fatal("failed to migrate", zap.Error(err))
	}

	ctx := context.Background()
	repos := repository.NewRepositories(db)
	jm := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)

	logger.Info("seeding 10 users")
	users := make([]model.User, 0, 10)
	for i := 1; i <= 10; i++ {
		u, err := seedUser(ctx, repos, i)
		if err != nil {
			logger.Error("failed to seed user", zap.Int("n", i), zap.Error(err))
			continue
		}
		users = append(users, *u)

		token, err := jm.GenerateToken(u.ID, u.Name)
		if err != nil {
			logger.Fatal("failed to mint token", zap.Error(err))
		}
		logger.Info("user ready", zap.String("email", u.Email), zap.String("id", u.ID.String()), zap.String("token", token))
	}

	if err := seedDiscussion(ctx, repos, logger, users); err != nil {
		logger.Error("failed to seed demo discussion", zap.Error(err))
	}
	logger.Info("seeding completed")
}

func seedUser(ctx context.Context, repos *repository.Repositories, i int) (*model.User, error) {
	email := fmt.Sprintf("user%d@academvault.local", i)
	if existing, err := repos.Users.FindByEmail(ctx, email); err == nil {
		return existing, nil
	} else if !repository.IsNotFound(err) {
		return nil, err
	}

	u := &model.User{
		ID:     uuid.New(),
		Name:   fmt.Sprintf("Researcher %d", i),
		Email:  email,
		Avatar: fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=user%d", i),
	}
	if err := repos.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// seedDiscussion creates the demo discussion through the service layer so
// counters, system messages and outbox events match real traffic
func seedDiscussion(ctx context.Context, repos *repository.Repositories, logger *zap.Logger, users []model.User) error {
	if len(users) < 3 {
		return nil
	}
	admin := users[0]

	existing, err := repos.Discussions.ListForUser(ctx, admin.ID, false, 100, 0)
	if err != nil {
		return err
	}
	for _, d := range existing {
		if d.Title == demoDiscussion {
			return nil
		}
	}

	discussions := service.NewDiscussionService(repos, nil, logger)
	d, err := discussions.Create(ctx, admin.ID, model.CreateDiscussionRequest{
		Title:          demoDiscussion,
		Description:    "Weekly reading of recent papers on quantum error correction.",
		Type:           model.DiscussionTypeGroup,
		Privacy:        model.PrivacyInviteOnly,
		Tags:           []string{"physics", "reading-group"},
		InitialMembers: []uuid.UUID{users[1].ID, users[2].ID},
	})
	if err != nil {
		return err
	}

	messages := service.NewMessageService(repos, nil, nil, logger)
	if _, err := messages.Send(ctx, admin.ID, d.ID, model.SendMessageRequest{
		Content: "Welcome! This week we start with the surface code review.",
	}); err != nil {
		return err
	}

	logger.Info("created demo discussion",
		zap.String("title", d.Title),
		zap.String("invite_code", d.InviteCode),
		zap.Int64("members", d.MemberCount))
	return nil
}
