package service

import (
	"context"
	"time"

	"github.com/sugarloaf/chat-server-go/internal/model"
	"github.com/sugarloaf/chat-server-go/internal/repository"
	"github.com/sugarloaf/chat-server-go/internal/util"
)

type AdminService struct {
	adminSessionRepo  repository.AdminSessionRepository
	chatSessionRepo   repository.ChatSessionRepository
	chatMessageRepo   repository.ChatMessageRepository
	adminPasswordHash string
	sessionSecret     string
}

func NewAdminService(
	adminSessionRepo repository.AdminSessionRepository,
	chatSessionRepo repository.ChatSessionRepository,
	chatMessageRepo repository.ChatMessageRepository,
	adminPasswordHash, sessionSecret string,
) *AdminService {
	return &AdminService{
		adminSessionRepo:  adminSessionRepo,
		chatSessionRepo:   chatSessionRepo,
		chatMessageRepo:   chatMessageRepo,
		adminPasswordHash: adminPasswordHash,
		sessionSecret:     sessionSecret,
	}
}

// Login checks the password and mints a session token. An empty token with a
// nil error means the password was wrong.
func (s *AdminService) Login(ctx context.Context, password string) (string, error) {
	if !util.CheckPasswordHash(password, s.adminPasswordHash) {
		return "", nil
	}

	token, err := util.GenerateToken()
	if err != nil {
		return "", err
	}

	tokenHash := util.HmacSHA256(s.sessionSecret, token)
	expiresAt := time.Now().Add(24 * time.Hour)

	_, err = s.adminSessionRepo.Create(ctx, model.CreateAdminSessionParams{
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return "", err
	}

	return token, nil
}

func (s *AdminService) Logout(ctx context.Context, token string) error {
	tokenHash := util.HmacSHA256(s.sessionSecret, token)
	return s.adminSessionRepo.DeleteByTokenHash(ctx, tokenHash)
}

func (s *AdminService) ValidateSession(ctx context.Context, token string) bool {
	tokenHash := util.HmacSHA256(s.sessionSecret, token)
	session, err := s.adminSessionRepo.FindByTokenHash(ctx, tokenHash)
	return err == nil && session != nil
}

type Stats struct {
	Sessions struct {
		Total    int `json:"total"`
		Bot      int `json:"bot"`
		Waiting  int `json:"waiting"`
		Human    int `json:"human"`
		Resolved int `json:"resolved"`
	} `json:"sessions"`
	Messages struct {
		Total int `json:"total"`
		Today int `json:"today"`
	} `json:"messages"`
}

func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	total, err := s.chatSessionRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.Sessions.Total = total

	counts := []struct {
		status model.SessionStatus
		dest   *int
	}{
		{model.StatusBot, &stats.Sessions.Bot},
		{model.StatusWaiting, &stats.Sessions.Waiting},
		{model.StatusHuman, &stats.Sessions.Human},
		{model.StatusResolved, &stats.Sessions.Resolved},
	}
	for _, c := range counts {
		n, err := s.chatSessionRepo.CountByStatus(ctx, c.status)
		if err != nil {
			return nil, err
		}
		*c.dest = n
	}

	msgTotal, err := s.chatMessageRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.Messages.Total = msgTotal

	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	msgToday, err := s.chatMessageRepo.CountSince(ctx, todayStart)
	if err != nil {
		return nil, err
	}
	stats.Messages.Today = msgToday

	return stats, nil
}
