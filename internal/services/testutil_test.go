package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/storeit/backend/internal/config"
	"github.com/storeit/backend/internal/database"
	"github.com/storeit/backend/internal/docstore"
	"github.com/storeit/backend/internal/identity"
	"github.com/storeit/backend/internal/mailer"
	"github.com/storeit/backend/internal/storage"
	"github.com/storeit/backend/pkg/utils"
	"gorm.io/gorm"
)

var errInjected = errors.New("injected failure")

// faultyStore wraps a real store and fails selected calls on demand.
type faultyStore struct {
	docstore.Store
	failCreate bool
	failList   bool
	failUpdate bool
	failDelete bool
}

func (f *faultyStore) Create(ctx context.Context, collection, id string, fields docstore.Document) (docstore.Document, error) {
	if f.failCreate {
		return nil, errInjected
	}
	return f.Store.Create(ctx, collection, id, fields)
}

func (f *faultyStore) List(ctx context.Context, collection string, queries ...docstore.Query) ([]docstore.Document, error) {
	if f.failList {
		return nil, errInjected
	}
	return f.Store.List(ctx, collection, queries...)
}

func (f *faultyStore) Update(ctx context.Context, collection, id string, fields docstore.Document) (docstore.Document, error) {
	if f.failUpdate {
		return nil, errInjected
	}
	return f.Store.Update(ctx, collection, id, fields)
}

func (f *faultyStore) Delete(ctx context.Context, collection, id string) error {
	if f.failDelete {
		return errInjected
	}
	return f.Store.Delete(ctx, collection, id)
}

type faultyBlobs struct {
	*storage.MemoryStore
	failUpload bool
	failDelete bool
}

func (f *faultyBlobs) Upload(ctx context.Context, key string, reader io.Reader, size int64, opts storage.ObjectOptions) error {
	if f.failUpload {
		return errInjected
	}
	return f.MemoryStore.Upload(ctx, key, reader, size, opts)
}

func (f *faultyBlobs) Delete(ctx context.Context, key string) error {
	if f.failDelete {
		return errInjected
	}
	return f.MemoryStore.Delete(ctx, key)
}

type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
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
	m.sent++
	return nil
}

func (m *captureMailer) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

type memCredentials struct {
	value string
	set   bool
}

func (m *memCredentials) Credential() (string, bool) { return m.value, m.set }
func (m *memCredentials) SetCredential(v string)     { m.value, m.set = v, true }
func (m *memCredentials) ClearCredential()           { m.value, m.set = "", false }

type testEnv struct {
	db       *gorm.DB
	store    *faultyStore
	blobs    *faultyBlobs
	views    *ViewVersions
	audit    *AuditService
	mailer   *captureMailer
	provider *identity.LocalProvider
	files    *FileService
	auth     *AuthService
	sessions *SessionManager
}

const testCapacity = 2 * 1024 * 1024 * 1024

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	utils.ConfigureSealing("services-test-sealing-secret")
	utils.ConfigureJWT("services-test-jwt-secret", 24)

	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	env := &testEnv{
		db:     db,
		store:  &faultyStore{Store: docstore.NewGormStore(db)},
		blobs:  &faultyBlobs{MemoryStore: storage.NewMemoryStore("http://blobs.test")},
		views:  NewViewVersions(),
		mailer: &captureMailer{},
	}
	env.audit = NewAuditService(db, env.blobs)
	t.Cleanup(env.audit.Close)

	env.provider = identity.NewLocalProvider(db, env.mailer, config.OTPConfig{
		TTL:         15 * time.Minute,
		MaxAttempts: 5,
		Digits:      6,
		Issuer:      "StoreIt",
	})
	env.files = NewFileService(env.store, env.blobs, env.views, env.audit, testCapacity)
	env.auth = NewAuthService(env.store, env.provider, env.audit, "https://avatars.test/placeholder.jpg")
	env.sessions = NewSessionManager(env.provider, env.store)
	return env
}

func (env *testEnv) createUser(t *testing.T, name, email string) *User {
	t.Helper()

	id := uuid.NewString()
	doc, err := env.store.Store.Create(context.Background(), usersCollection, id, docstore.Document{
		"full_name":  name,
		"email":      email,
		"avatar":     "https://avatars.test/placeholder.jpg",
		"account_id": uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("failed creating user %s: %v", email, err)
	}
	user, err := decodeUser(doc)
	if err != nil {
		t.Fatalf("failed decoding user %s: %v", email, err)
	}
	return user
}

func (env *testEnv) upload(t *testing.T, owner *User, name, content string) *FileRecord {
	t.Helper()

	record, err := env.files.Upload(context.Background(), UploadInput{
		Reader:    strings.NewReader(content),
		Size:      int64(len(content)),
		Name:      name,
		OwnerID:   owner.ID,
		AccountID: owner.AccountID,
		Path:      "/",
	})
	if err != nil {
		t.Fatalf("failed uploading %s: %v", name, err)
	}
	return record
}
