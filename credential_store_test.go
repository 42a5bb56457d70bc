package adminAuth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/adminAuth/session"
	"github.com/MrEthical07/adminAuth/storage"
)

func newTestCredentialStore(t *testing.T, kv storage.Store) *LocalCredentialStore {
	t.Helper()
	cs, err := NewLocalCredentialStore(kv, testConfig())
	if err != nil {
		t.Fatalf("NewLocalCredentialStore failed: %v", err)
	}
	return cs
}

func TestCredentialStoreRegisterAssignsPendingAndHashes(t *testing.T) {
	kv := storage.NewMemory()
	cs := newTestCredentialStore(t, kv)
	ctx := context.Background()

	rec, err := cs.Register(ctx, " Ana ", "ana@x.com", "s1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if rec.ID == "" || rec.Name != "Ana" || rec.Role != RolePending {
		t.Fatalf("unexpected record: %+v", rec)
	}

	raw := rawValue(t, kv, DefaultUsersKey)
	if strings.Contains(raw, `"s1"`) {
		t.Fatalf("plaintext secret stored: %s", raw)
	}
	if !strings.Contains(raw, "$argon2id$") {
		t.Fatalf("expected argon2id hash in stored document: %s", raw)
	}
}

func TestCredentialStoreRejectsEmptyInput(t *testing.T) {
	cs := newTestCredentialStore(t, storage.NewMemory())
	ctx := context.Background()

	cases := [][3]string{
		{"", "a@x.com", "s"},
		{"A", "  ", "s"},
		{"A", "a@x.com", ""},
	}
	for _, c := range cases {
		if _, err := cs.Register(ctx, c[0], c[1], c[2]); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("Register(%q,%q,%q): expected ErrInvalidInput, got %v", c[0], c[1], c[2], err)
		}
	}
}

func TestCredentialStoreRejectsOversizedProfile(t *testing.T) {
	kv := storage.NewMemory()
	cs := newTestCredentialStore(t, kv)
	ctx := context.Background()
	long := strings.Repeat("a", session.MaxTextBytes+1)

	if _, err := cs.Register(ctx, long, "a@x.com", "s"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("long name: expected ErrInvalidInput, got %v", err)
	}
	if _, err := cs.Register(ctx, "A", long+"@x.com", "s"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("long email: expected ErrInvalidInput, got %v", err)
	}
	if _, ok, _ := kv.Get(ctx, DefaultUsersKey); ok {
		t.Fatal("rejected registrations must not write")
	}

	rec, err := cs.Register(ctx, "Ana", "ana@x.com", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cs.UpdateProfile(ctx, rec.ID, long, "ana@x.com"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("UpdateProfile long name: expected ErrInvalidInput, got %v", err)
	}
}

func TestLoginWithLongestNameFitsSession(t *testing.T) {
	svc := newStartedService(t, testConfig(), storage.NewMemory())
	name := strings.Repeat("n", session.MaxTextBytes)
	mustRegister(t, svc, name, "ana@x.com", "s1")

	u := mustLogin(t, svc, "ana@x.com", "s1")
	if len(u.Name) != session.MaxTextBytes {
		t.Fatalf("name length = %d", len(u.Name))
	}
}

func TestCredentialStoreDuplicateEmailIgnoresCase(t *testing.T) {
	cs := newTestCredentialStore(t, storage.NewMemory())
	ctx := context.Background()

	if _, err := cs.Register(ctx, "Ana", "ana@x.com", "s1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := cs.Register(ctx, "Other", "ANA@X.com", "s2"); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	users, err := cs.List(ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("expected 1 user, got %d (%v)", len(users), err)
	}
}

func TestCredentialStoreVerify(t *testing.T) {
	kv := storage.NewMemory()
	cs := newTestCredentialStore(t, kv)
	ctx := context.Background()

	rec, _ := cs.Register(ctx, "Ana", "ana@x.com", "s1")

	got, err := cs.Verify(ctx, "Ana@X.COM", "s1")
	if err != nil || got != rec {
		t.Fatalf("Verify = %+v, %v; want %+v", got, err, rec)
	}

	before := rawValue(t, kv, DefaultUsersKey)
	if _, err := cs.Verify(ctx, "ana@x.com", "wrong"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if _, err := cs.Verify(ctx, "nobody@x.com", "s1"); !errors.Is(err, ErrUnknownEmail) {
		t.Fatalf("expected ErrUnknownEmail, got %v", err)
	}
	if after := rawValue(t, kv, DefaultUsersKey); after != before {
		t.Fatal("failed verification modified the store")
	}
}

func TestCredentialStoreUpgradesLegacyPlaintext(t *testing.T) {
	kv := storage.NewMemory()
	ctx := context.Background()
	legacy := `[{"id":"u1","nome":"Ana","email":"ana@x.com","senha":"s1","role":"usuario"}]`
	if err := kv.Set(ctx, DefaultUsersKey, legacy); err != nil {
		t.Fatal(err)
	}
	cs := newTestCredentialStore(t, kv)

	if _, err := cs.Verify(ctx, "ana@x.com", "nope"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if rawValue(t, kv, DefaultUsersKey) != legacy {
		t.Fatal("failed legacy verification rewrote the store")
	}

	if _, err := cs.Verify(ctx, "ana@x.com", "s1"); err != nil {
		t.Fatalf("legacy Verify failed: %v", err)
	}

	var users []storedUser
	if err := json.Unmarshal([]byte(rawValue(t, kv, DefaultUsersKey)), &users); err != nil {
		t.Fatal(err)
	}
	if users[0].LegacySecret != "" || !strings.HasPrefix(users[0].SecretHash, "$argon2id$") {
		t.Fatalf("expected legacy secret upgraded, got %+v", users[0])
	}
	if _, err := cs.Verify(ctx, "ana@x.com", "s1"); err != nil {
		t.Fatalf("Verify after upgrade failed: %v", err)
	}
}

func TestCredentialStoreUpdateRole(t *testing.T) {
	cs := newTestCredentialStore(t, storage.NewMemory())
	ctx := context.Background()
	rec, _ := cs.Register(ctx, "Ana", "ana@x.com", "s1")

	updated, err := cs.UpdateRole(ctx, rec.ID, RolePremium)
	if err != nil || updated.Role != RolePremium {
		t.Fatalf("UpdateRole = %+v, %v", updated, err)
	}
	if _, err := cs.UpdateRole(ctx, rec.ID, Role("root")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := cs.UpdateRole(ctx, "missing", RoleAdmin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	found, _ := cs.FindByID(ctx, rec.ID)
	if found == nil || found.Role != RolePremium {
		t.Fatalf("FindByID = %+v", found)
	}
}

func TestCredentialStoreUpdateProfileConflict(t *testing.T) {
	cs := newTestCredentialStore(t, storage.NewMemory())
	ctx := context.Background()
	ana, _ := cs.Register(ctx, "Ana", "ana@x.com", "s1")
	_, _ = cs.Register(ctx, "Bia", "bia@x.com", "s2")

	if _, err := cs.UpdateProfile(ctx, ana.ID, "Ana", "BIA@x.com"); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	// Re-casing one's own email is not a conflict.
	updated, err := cs.UpdateProfile(ctx, ana.ID, "Ana Souza", "Ana@X.com")
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.Name != "Ana Souza" || updated.Email != "Ana@X.com" {
		t.Fatalf("unexpected profile: %+v", updated)
	}

	byEmail, _ := cs.FindByEmail(ctx, "ana@x.com")
	if byEmail == nil || byEmail.ID != ana.ID {
		t.Fatalf("FindByEmail = %+v", byEmail)
	}
}

func TestCredentialStoreChangeSecret(t *testing.T) {
	kv := storage.NewMemory()
	cs := newTestCredentialStore(t, kv)
	ctx := context.Background()
	rec, _ := cs.Register(ctx, "Ana", "ana@x.com", "s1")

	before := rawValue(t, kv, DefaultUsersKey)
	if err := cs.ChangeSecret(ctx, rec.ID, "wrong-old", "new"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if rawValue(t, kv, DefaultUsersKey) != before {
		t.Fatal("rejected secret change modified the store")
	}

	if err := cs.ChangeSecret(ctx, rec.ID, "s1", "new"); err != nil {
		t.Fatalf("ChangeSecret failed: %v", err)
	}
	if _, err := cs.Verify(ctx, "ana@x.com", "s1"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("old secret still accepted: %v", err)
	}
	if _, err := cs.Verify(ctx, "ana@x.com", "new"); err != nil {
		t.Fatalf("new secret rejected: %v", err)
	}
}

func TestCredentialStoreBootstrapIsIdempotent(t *testing.T) {
	kv := storage.NewMemory()
	cs := newTestCredentialStore(t, kv)
	ctx := context.Background()

	created, err := cs.BootstrapDefaultAdmin(ctx)
	if err != nil || !created {
		t.Fatalf("first bootstrap = %v, %v", created, err)
	}
	first := rawValue(t, kv, DefaultUsersKey)

	created, err = cs.BootstrapDefaultAdmin(ctx)
	if err != nil || created {
		t.Fatalf("second bootstrap = %v, %v", created, err)
	}
	if rawValue(t, kv, DefaultUsersKey) != first {
		t.Fatal("second bootstrap modified the store")
	}

	users, _ := cs.List(ctx)
	if len(users) != 1 || users[0].Role != RoleAdmin || users[0].Email != defaultAdminEmail {
		t.Fatalf("unexpected users after bootstrap: %+v", users)
	}
}

func TestCredentialStoreStorageFailure(t *testing.T) {
	kv := newFlakyStore()
	cs := newTestCredentialStore(t, kv)
	ctx := context.Background()
	rec, _ := cs.Register(ctx, "Ana", "ana@x.com", "s1")

	kv.set(false, true, false)
	if _, err := cs.UpdateRole(ctx, rec.ID, RoleAdmin); !errors.Is(err, ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity, got %v", err)
	}
	kv.set(false, false, false)

	found, _ := cs.FindByID(ctx, rec.ID)
	if found == nil || found.Role != RolePending {
		t.Fatalf("failed write changed the record: %+v", found)
	}

	kv.set(true, false, false)
	if _, err := cs.Verify(ctx, "ana@x.com", "s1"); !errors.Is(err, ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity on read, got %v", err)
	}
}

func TestCredentialStoreCustomIDs(t *testing.T) {
	n := 0
	cs, err := NewLocalCredentialStore(storage.NewMemory(), testConfig(), WithIDGenerator(func() string {
		n++
		return "id-" + string(rune('0'+n))
	}))
	if err != nil {
		t.Fatal(err)
	}
	rec, err := cs.Register(context.Background(), "Ana", "ana@x.com", "s1")
	if err != nil || rec.ID != "id-1" {
		t.Fatalf("Register = %+v, %v", rec, err)
	}
}
