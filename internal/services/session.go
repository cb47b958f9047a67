package services

import (
	"context"
	"errors"

	"github.com/storeit/backend/internal/docstore"
	"github.com/storeit/backend/internal/identity"
	"github.com/storeit/backend/pkg/logger"
)

// CredentialStore reads and writes the caller's persisted session credential.
// The HTTP layer backs it with the session cookie.
type CredentialStore interface {
	Credential() (string, bool)
	SetCredential(credential string)
	ClearCredential()
}

type SessionManager struct {
	identity identity.Provider
	store    docstore.Store
}

func NewSessionManager(provider identity.Provider, store docstore.Store) *SessionManager {
	return &SessionManager{identity: provider, store: store}
}

// ResolveCurrentUser returns the signed-in user. A missing or invalid
// credential yields (nil, nil). A live credential whose account has no user
// document yields a NotFound error.
func (m *SessionManager) ResolveCurrentUser(ctx context.Context, credentials CredentialStore) (*User, error) {
	const op = "session.resolve_current_user"

	credential, ok := credentials.Credential()
	if !ok || credential == "" {
		return nil, nil
	}

	account, err := m.identity.CurrentAccount(ctx, credential)
	if errors.Is(err, identity.ErrInvalidCredential) {
		return nil, nil
	}
	if err != nil {
		logger.Error("session_resolve_failed", err, nil)
		return nil, newError(KindPersistenceFailed, op, err)
	}

	user, err := findUser(ctx, m.store, "account_id", account.ID.String())
	if err != nil {
		logger.Error("session_user_lookup_failed", err, map[string]interface{}{
			"account_id": account.ID.String(),
		})
		return nil, newError(KindPersistenceFailed, op, err)
	}
	if user == nil {
		logger.Warn("session_user_missing", map[string]interface{}{
			"account_id": account.ID.String(),
		})
		return nil, newError(KindNotFound, op, docstore.ErrNotFound)
	}
	return user, nil
}
