package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/storeit/backend/internal/config"
	"github.com/storeit/backend/internal/database"
	"github.com/storeit/backend/internal/mailer"
	"github.com/storeit/backend/internal/models"
	"github.com/storeit/backend/pkg/utils"
	"gorm.io/gorm"
)

type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (m *captureMailer) SendOneTimeCode(_ context.Context, to string, msg mailer.CodeMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.codes == nil {
		m.codes = map[string]string{}
	}
	m.codes[to] = msg.Code
	return nil
}

func (m *captureMailer) last(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

func setupProvider(t *testing.T) (*LocalProvider, *captureMailer, *gorm.DB) {
	t.Helper()

	utils.ConfigureSealing("identity-test-sealing-secret")
	utils.ConfigureJWT("identity-test-jwt-secret", 24)

	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	m := &captureMailer{}
	p := NewLocalProvider(db, m, config.OTPConfig{
		TTL:         15 * time.Minute,
		MaxAttempts: 3,
		Digits:      6,
		Issuer:      "StoreIt",
	})
	return p, m, db
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestSendAndExchangeCode(t *testing.T) {
	p, m, db := setupProvider(t)
	ctx := context.Background()

	accountID, err := p.SendOneTimeCode(ctx, "Alice@X.com")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	code := m.last("alice@x.com")
	if len(code) != 6 {
		t.Fatalf("expected a 6 digit code, got %q", code)
	}

	var token models.OneTimeToken
	if err := db.First(&token).Error; err != nil {
		t.Fatalf("expected stored token: %v", err)
	}
	if token.SealedSecret == "" || token.SealedSecret == code {
		t.Error("expected the secret to be sealed at rest")
	}

	credential, err := p.ExchangeCode(ctx, accountID, code, ClientInfo{IPAddress: "10.0.0.1"})
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	account, err := p.CurrentAccount(ctx, credential)
	if err != nil {
		t.Fatalf("current account failed: %v", err)
	}
	if account.ID.String() != accountID || account.Email != "alice@x.com" {
		t.Errorf("unexpected account %+v", account)
	}

	var before models.Session
	if err := db.First(&before).Error; err != nil {
		t.Fatalf("expected stored session: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := p.CurrentAccount(ctx, credential); err != nil {
		t.Fatalf("current account failed: %v", err)
	}
	var after models.Session
	if err := db.First(&after).Error; err != nil {
		t.Fatalf("expected stored session: %v", err)
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("expected resolving a credential to leave the session untouched, updated_at %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}

	if _, err := p.ExchangeCode(ctx, accountID, code, ClientInfo{}); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("expected a used code to be rejected, got %v", err)
	}

	if err := p.Revoke(ctx, credential); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := p.CurrentAccount(ctx, credential); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("expected revoked credential to be invalid, got %v", err)
	}
	if err := p.Revoke(ctx, credential); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("expected second revoke to fail, got %v", err)
	}
}

func TestSendOneTimeCodeReusesAccount(t *testing.T) {
	p, m, db := setupProvider(t)
	ctx := context.Background()

	first, err := p.SendOneTimeCode(ctx, "bob@x.com")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	firstCode := m.last("bob@x.com")

	second, err := p.SendOneTimeCode(ctx, "bob@x.com")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if first != second {
		t.Errorf("expected the same account id, got %s and %s", first, second)
	}

	var count int64
	db.Model(&models.OneTimeToken{}).Count(&count)
	if count != 1 {
		t.Errorf("expected the older code to be superseded, found %d tokens", count)
	}

	secondCode := m.last("bob@x.com")
	if firstCode != secondCode {
		if _, err := p.ExchangeCode(ctx, first, firstCode, ClientInfo{}); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("expected superseded code to fail, got %v", err)
		}
	}
	if _, err := p.ExchangeCode(ctx, first, secondCode, ClientInfo{}); err != nil {
		t.Errorf("expected newest code to work, got %v", err)
	}
}

func TestExchangeCodeFailures(t *testing.T) {
	t.Run("attempts are capped", func(t *testing.T) {
		p, m, _ := setupProvider(t)
		ctx := context.Background()

		accountID, _ := p.SendOneTimeCode(ctx, "carol@x.com")
		code := m.last("carol@x.com")

		for i := 0; i < 3; i++ {
			if _, err := p.ExchangeCode(ctx, accountID, wrongCode(code), ClientInfo{}); !errors.Is(err, ErrInvalidCode) {
				t.Fatalf("attempt %d: expected ErrInvalidCode, got %v", i, err)
			}
		}
		if _, err := p.ExchangeCode(ctx, accountID, code, ClientInfo{}); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("expected correct code to fail after max attempts, got %v", err)
		}
	})

	t.Run("expired code", func(t *testing.T) {
		p, m, _ := setupProvider(t)
		ctx := context.Background()

		accountID, _ := p.SendOneTimeCode(ctx, "dan@x.com")
		code := m.last("dan@x.com")

		p.now = func() time.Time { return time.Now().UTC().Add(16 * time.Minute) }
		if _, err := p.ExchangeCode(ctx, accountID, code, ClientInfo{}); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("expected expired code to fail, got %v", err)
		}
	})

	t.Run("unknown account", func(t *testing.T) {
		p, _, _ := setupProvider(t)
		if _, err := p.ExchangeCode(context.Background(), "not-a-uuid", "123456", ClientInfo{}); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("expected ErrInvalidCode, got %v", err)
		}
	})
}

func TestSendOneTimeCodeDispatchFailure(t *testing.T) {
	p, m, db := setupProvider(t)
	m.err = errors.New("smtp down")

	if _, err := p.SendOneTimeCode(context.Background(), "erin@x.com"); !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("expected ErrDispatchFailed, got %v", err)
	}

	var count int64
	db.Model(&models.OneTimeToken{}).Count(&count)
	if count != 0 {
		t.Errorf("expected undelivered token to be removed, found %d", count)
	}
}

func TestCurrentAccountRejectsGarbage(t *testing.T) {
	p, _, _ := setupProvider(t)
	if _, err := p.CurrentAccount(context.Background(), "not-a-jwt"); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	p, m, db := setupProvider(t)
	ctx := context.Background()

	accountID, _ := p.SendOneTimeCode(ctx, "frank@x.com")
	if _, err := p.ExchangeCode(ctx, accountID, m.last("frank@x.com"), ClientInfo{}); err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if _, err := p.SendOneTimeCode(ctx, "grace@x.com"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	p.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }
	purged, err := p.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if purged != 2 {
		t.Errorf("expected one token and one session purged, got %d", purged)
	}

	var sessions int64
	db.Model(&models.Session{}).Count(&sessions)
	if sessions != 0 {
		t.Errorf("expected no sessions left, got %d", sessions)
	}
}
