package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/storeit/backend/internal/docstore"
	"github.com/storeit/backend/internal/identity"
	"github.com/storeit/backend/pkg/logger"
	"github.com/storeit/backend/pkg/utils"
)

// SignInPath is where callers are sent after signing out.
const SignInPath = "/sign-in"

type AuthService struct {
	store                docstore.Store
	identity             identity.Provider
	audit                *AuditService
	avatarPlaceholderURL string
}

func NewAuthService(store docstore.Store, provider identity.Provider, audit *AuditService, avatarPlaceholderURL string) *AuthService {
	return &AuthService{
		store:                store,
		identity:             provider,
		audit:                audit,
		avatarPlaceholderURL: avatarPlaceholderURL,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount sends a one-time code to email and makes sure a user
// document exists for it. It returns the account id to verify against.
func (s *AuthService) CreateAccount(ctx context.Context, fullName, email, ipAddress string) (string, error) {
	const op = "auth.create_account"
	email = NormalizeEmail(email)

	existing, err := findUser(ctx, s.store, "email", email)
	if err != nil {
		logger.Error("user_lookup_failed", err, map[string]interface{}{"op": op})
		return "", newError(KindPersistenceFailed, op, err)
	}

	accountID, err := s.identity.SendOneTimeCode(ctx, email)
	if err != nil {
		logger.Error("otp_send_failed", err, map[string]interface{}{"op": op})
		return "", newError(KindOtpDispatchFailed, op, err)
	}

	if existing != nil {
		return accountID, nil
	}

	userID := uuid.NewString()
	_, err = s.store.Create(ctx, usersCollection, userID, docstore.Document{
		"full_name":  strings.TrimSpace(fullName),
		"email":      email,
		"avatar":     s.avatarPlaceholderURL,
		"account_id": accountID,
	})
	if err != nil {
		// A concurrent sign-up for the same email may have won the unique index.
		if raced, lookupErr := findUser(ctx, s.store, "email", email); lookupErr == nil && raced != nil {
			return accountID, nil
		}
		logger.Error("user_create_failed", err, map[string]interface{}{
			"account_id": accountID,
		})
		return "", newError(KindPersistenceFailed, op, err)
	}

	logger.InfoWithUser(userID, "user_created", map[string]interface{}{
		"account_id": accountID,
	})
	s.audit.LogAsync(AuditEntry{
		UserID:       userID,
		Action:       "user.sign_up",
		ResourceType: "user",
		ResourceID:   userID,
		IPAddress:    ipAddress,
	})
	return accountID, nil
}

// SignIn mails a fresh code to an existing user. Unknown emails fail with
// UserNotFound and no code is sent.
func (s *AuthService) SignIn(ctx context.Context, email, ipAddress string) (string, error) {
	const op = "auth.sign_in"
	email = NormalizeEmail(email)

	user, err := findUser(ctx, s.store, "email", email)
	if err != nil {
		logger.Error("user_lookup_failed", err, map[string]interface{}{"op": op})
		return "", newError(KindPersistenceFailed, op, err)
	}
	if user == nil {
		return "", newError(KindUserNotFound, op, nil)
	}

	accountID, err := s.identity.SendOneTimeCode(ctx, email)
	if err != nil {
		logger.ErrorWithUser(user.ID, "otp_send_failed", err, map[string]interface{}{"op": op})
		return "", newError(KindOtpDispatchFailed, op, err)
	}

	s.audit.LogAsync(AuditEntry{
		UserID:       user.ID,
		Action:       "user.sign_in",
		ResourceType: "user",
		ResourceID:   user.ID,
		IPAddress:    ipAddress,
	})
	return accountID, nil
}

// VerifyCode exchanges a one-time code for a session credential, stores it
// in credentials and returns the session id. Nothing is stored on failure.
func (s *AuthService) VerifyCode(ctx context.Context, credentials CredentialStore, accountID, code string, client identity.ClientInfo) (string, error) {
	const op = "auth.verify_code"

	credential, err := s.identity.ExchangeCode(ctx, accountID, code, client)
	if errors.Is(err, identity.ErrInvalidCode) {
		return "", newError(KindInvalidCode, op, err)
	}
	if err != nil {
		logger.Error("otp_exchange_failed", err, map[string]interface{}{
			"account_id": accountID,
		})
		return "", newError(KindPersistenceFailed, op, err)
	}

	claims, err := utils.ValidateSessionToken(credential)
	if err != nil {
		return "", newError(KindPersistenceFailed, op, err)
	}

	credentials.SetCredential(credential)
	return claims.SessionID().String(), nil
}

// SignOut revokes the current credential and clears it locally. The local
// credential is cleared even when revocation fails; that failure is still
// returned. On success it returns the path to send the caller to.
func (s *AuthService) SignOut(ctx context.Context, credentials CredentialStore, userID, ipAddress string) (string, error) {
	const op = "auth.sign_out"

	credential, ok := credentials.Credential()
	var revokeErr error
	if ok && credential != "" {
		revokeErr = s.identity.Revoke(ctx, credential)
	}
	credentials.ClearCredential()

	if revokeErr != nil {
		if errors.Is(revokeErr, identity.ErrInvalidCredential) {
			return "", newError(KindAuthRequired, op, revokeErr)
		}
		logger.Error("session_revoke_failed", revokeErr, nil)
		return "", newError(KindPersistenceFailed, op, revokeErr)
	}

	if userID != "" {
		s.audit.LogAsync(AuditEntry{
			UserID:       userID,
			Action:       "user.sign_out",
			ResourceType: "user",
			ResourceID:   userID,
			IPAddress:    ipAddress,
		})
	}
	return SignInPath, nil
}
