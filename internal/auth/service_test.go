package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/fieldserve/ticket-engine/internal/auth"
	"github.com/fieldserve/ticket-engine/internal/config"
	"github.com/fieldserve/ticket-engine/internal/domain"
	"github.com/fieldserve/ticket-engine/internal/repository"
	apperrors "github.com/fieldserve/ticket-engine/pkg/util"
)

// AuthServiceTestSuite covers registration and login.
type AuthServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	service *auth.Service
}

func (s *AuthServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.service = auth.NewService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 15,
		BcryptCost:            4,
	}, repository.NewMemoryUserRepository())
}

func (s *AuthServiceTestSuite) TestRegisterDefaultsToTechnician() {
	user, token, _, err := s.service.Register(s.ctx, "Jamie Fox", "  Jamie@Example.COM ", "s3cret", "")
	s.Require().NoError(err)
	s.Equal("jamie@example.com", user.Email)
	s.Equal(domain.UserRoleTechnician, user.Role)
	s.NotEmpty(token)

	claims, err := s.service.TokenManager().ParseToken(token)
	s.Require().NoError(err)
	s.Equal(user.ID, claims.UserID)
	s.Equal(domain.UserRoleTechnician, claims.Role)
}

func (s *AuthServiceTestSuite) TestRegisterRejectsDuplicateEmail() {
	_, _, _, err := s.service.Register(s.ctx, "Jamie Fox", "jamie@example.com", "s3cret", "")
	s.Require().NoError(err)

	_, _, _, err = s.service.Register(s.ctx, "Someone Else", "jamie@example.com", "other", "")
	s.Require().Error(err)
	s.Equal("CONFLICT", apperrors.ToDomainError(err).Code)
}

func (s *AuthServiceTestSuite) TestLogin() {
	registered, _, _, err := s.service.Register(s.ctx, "Alex Brand", "alex@example.com", "s3cret", domain.UserRoleManager)
	s.Require().NoError(err)

	user, token, _, err := s.service.Login(s.ctx, "alex@example.com", "s3cret")
	s.Require().NoError(err)
	s.Equal(registered.ID, user.ID)
	s.NotEmpty(token)

	_, _, _, err = s.service.Login(s.ctx, "alex@example.com", "wrong")
	s.Require().Error(err)
	s.Equal("UNAUTHORIZED", apperrors.ToDomainError(err).Code)

	_, _, _, err = s.service.Login(s.ctx, "nobody@example.com", "s3cret")
	s.Require().Error(err)
	s.Equal("UNAUTHORIZED", apperrors.ToDomainError(err).Code)
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}
