// Package identity is the account provider behind passwordless sign-in: it
// issues emailed one-time codes, exchanges them for session credentials and
// resolves or revokes those credentials.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/storeit/backend/internal/config"
	"github.com/storeit/backend/internal/mailer"
	"github.com/storeit/backend/internal/models"
	"github.com/storeit/backend/pkg/logger"
	"github.com/storeit/backend/pkg/utils"
	"gorm.io/gorm"
)

var (
	ErrDispatchFailed    = errors.New("one-time code dispatch failed")
	ErrInvalidCode       = errors.New("invalid or expired one-time code")
	ErrInvalidCredential = errors.New("invalid session credential")
)

type Provider interface {
	SendOneTimeCode(ctx context.Context, email string) (string, error)
	ExchangeCode(ctx context.Context, accountID, code string, client ClientInfo) (string, error)
	CurrentAccount(ctx context.Context, credential string) (*models.Account, error)
	Revoke(ctx context.Context, credential string) error
}

// ClientInfo is recorded on the session row for auditing.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type LocalProvider struct {
	db          *gorm.DB
	mailer      mailer.Mailer
	issuer      string
	ttl         time.Duration
	maxAttempts int
	digits      otp.Digits
	now         func() time.Time
}

func NewLocalProvider(db *gorm.DB, m mailer.Mailer, cfg config.OTPConfig) *LocalProvider {
	digits := otp.DigitsSix
	if cfg.Digits == 8 {
		digits = otp.DigitsEight
	}
	return &LocalProvider{
		db:          db,
		mailer:      m,
		issuer:      cfg.Issuer,
		ttl:         cfg.TTL,
		maxAttempts: cfg.MaxAttempts,
		digits:      digits,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (p *LocalProvider) codeOpts() totp.ValidateOpts {
	period := uint(p.ttl / time.Second)
	if period == 0 {
		period = 30
	}
	return totp.ValidateOpts{Period: period, Digits: p.digits, Algorithm: otp.AlgorithmSHA1}
}

// SendOneTimeCode finds or creates the account for email, replaces any
// outstanding code with a fresh one and mails it. It returns the account id.
func (p *LocalProvider) SendOneTimeCode(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	db := p.db.WithContext(ctx)

	var account models.Account
	err := db.Where("email = ?", email).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		account = models.Account{Email: email}
		err = db.Create(&account).Error
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: email,
		Period:      p.codeOpts().Period,
		Digits:      p.digits,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	issuedAt := p.now()
	code, err := totp.GenerateCodeCustom(key.Secret(), issuedAt, p.codeOpts())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	sealed, err := utils.SealSecret(key.Secret())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	token := models.OneTimeToken{
		AccountID:    account.ID,
		SealedSecret: sealed,
		IssuedAt:     issuedAt,
		ExpiresAt:    issuedAt.Add(p.ttl),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", account.ID).Delete(&models.OneTimeToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&token).Error
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	if err := p.mailer.SendOneTimeCode(ctx, email, mailer.CodeMessage{AccountID: account.ID.String(), Code: code, Issuer: p.issuer, ExpiresIn: p.ttl}); err != nil {
		db.Delete(&token)
		logger.Error("otp_dispatch_failed", err, map[string]interface{}{
			"account_id": account.ID.String(),
		})
		return "", fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	logger.Info("otp_dispatched", map[string]interface{}{
		"account_id": account.ID.String(),
		"expires_at": token.ExpiresAt,
	})
	return account.ID.String(), nil
}

// ExchangeCode consumes the outstanding code for accountID and opens a new
// session, returning its credential. Wrong codes count against the token.
func (p *LocalProvider) ExchangeCode(ctx context.Context, accountID, code string, client ClientInfo) (string, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return "", ErrInvalidCode
	}
	db := p.db.WithContext(ctx)

	var token models.OneTimeToken
	if err := db.Where("account_id = ?", id).Order("issued_at DESC").First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCode
		}
		return "", err
	}

	now := p.now()
	if !now.Before(token.ExpiresAt) || token.Attempts >= p.maxAttempts {
		db.Delete(&token)
		return "", ErrInvalidCode
	}

	secret, err := utils.OpenSecret(token.SealedSecret)
	if err != nil {
		return "", err
	}

	valid, err := totp.ValidateCustom(strings.TrimSpace(code), secret, token.IssuedAt, p.codeOpts())
	if err != nil || !valid {
		db.Model(&token).Update("attempts", gorm.Expr("attempts + ?", 1))
		logger.Warn("otp_verification_failed", map[string]interface{}{
			"account_id": accountID,
			"attempts":   token.Attempts + 1,
		})
		return "", ErrInvalidCode
	}

	session := models.Session{
		AccountID: id,
		ExpiresAt: now.Add(utils.SessionLifetime()),
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&token)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidCode
		}
		return tx.Create(&session).Error
	})
	if err != nil {
		return "", err
	}

	credential, err := utils.GenerateSessionToken(id, session.ID, session.ExpiresAt)
	if err != nil {
		return "", err
	}

	logger.Info("session_created", map[string]interface{}{
		"account_id": accountID,
		"ip_address": client.IPAddress,
	})
	return credential, nil
}

func (p *LocalProvider) resolveSession(ctx context.Context, credential string) (*models.Session, error) {
	claims, err := utils.ValidateSessionToken(credential)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	var session models.Session
	err = p.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", claims.SessionID(), claims.AccountID).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, err
	}
	if !p.now().Before(session.ExpiresAt) {
		return nil, ErrInvalidCredential
	}
	return &session, nil
}

// CurrentAccount returns the account a live credential belongs to. It only
// reads; the session row is left untouched.
func (p *LocalProvider) CurrentAccount(ctx context.Context, credential string) (*models.Account, error) {
	session, err := p.resolveSession(ctx, credential)
	if err != nil {
		return nil, err
	}

	var account models.Account
	if err := p.db.WithContext(ctx).First(&account, "id = ?", session.AccountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}
	return &account, nil
}

// Revoke ends the session behind credential.
func (p *LocalProvider) Revoke(ctx context.Context, credential string) error {
	session, err := p.resolveSession(ctx, credential)
	if err != nil {
		return err
	}
	if err := p.db.WithContext(ctx).Delete(session).Error; err != nil {
		return err
	}
	logger.Info("session_revoked", map[string]interface{}{
		"account_id": session.AccountID.String(),
	})
	return nil
}

// PurgeExpired removes spent one-time tokens and expired sessions.
func (p *LocalProvider) PurgeExpired(ctx context.Context) (int64, error) {
	now := p.now()
	db := p.db.WithContext(ctx)

	tokens := db.Where("expires_at <= ?", now).Delete(&models.OneTimeToken{})
	if tokens.Error != nil {
		return 0, tokens.Error
	}
	sessions := db.Where("expires_at <= ?", now).Delete(&models.Session{})
	if sessions.Error != nil {
		return tokens.RowsAffected, sessions.Error
	}
	return tokens.RowsAffected + sessions.RowsAffected, nil
}
