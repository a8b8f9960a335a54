package credentials

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/user/proxydeck/internal/model"
	"github.com/user/proxydeck/internal/storage"
)

// recordingKV logs every mutating call into a shared journal.
type recordingKV struct {
	*MemoryKV
	name    string
	journal *[]string
	failSet bool
}

func (r *recordingKV) Set(key, value string) error {
	if r.failSet {
		return errors.New("disk full")
	}
	*r.journal = append(*r.journal, r.name+".set."+key)
	return r.MemoryKV.Set(key, value)
}

func (r *recordingKV) Delete(key string) error {
	*r.journal = append(*r.journal, r.name+".delete."+key)
	return r.MemoryKV.Delete(key)
}

func newRecordingPair() (*recordingKV, *recordingKV, *[]string) {
	journal := &[]string{}
	durable := &recordingKV{MemoryKV: NewMemoryKV(), name: "durable", journal: journal}
	session := &recordingKV{MemoryKV: NewMemoryKV(), name: "session", journal: journal}
	return durable, session, journal
}

func assertAbsent(t *testing.T, kv KV, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if _, ok, _ := kv.Get(k); ok {
			t.Errorf("key %q still present", k)
		}
	}
}

func TestLoadPrefersDurable(t *testing.T) {
	durable, session := NewMemoryKV(), NewMemoryKV()
	durable.Set(UsernameKey, "alice")
	durable.Set(PasswordKey, "secret")
	session.Set(SessionUsernameKey, "bob")
	session.Set(SessionPasswordKey, "other")

	got, err := NewStore(durable, session).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := model.Credentials{Username: "alice", Password: "secret", Persist: true}
	if got != want {
		t.Errorf("Load() = %v, want %v", got, want)
	}
}

func TestLoadFallsBackToSession(t *testing.T) {
	tests := []struct {
		name    string
		durable map[string]string
		want    model.Credentials
	}{
		{
			name: "durable empty",
			want: model.Credentials{Username: "bob", Password: "other"},
		},
		{
			name:    "durable only username",
			durable: map[string]string{UsernameKey: "alice"},
			want:    model.Credentials{Username: "bob", Password: "other"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			durable, session := NewMemoryKV(), NewMemoryKV()
			for k, v := range tt.durable {
				durable.Set(k, v)
			}
			session.Set(SessionUsernameKey, "bob")
			session.Set(SessionPasswordKey, "other")

			got, err := NewStore(durable, session).Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got != tt.want {
				t.Errorf("Load() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetPersistWritesDurableAndDropsSession(t *testing.T) {
	durable, session, _ := newRecordingPair()
	session.MemoryKV.Set(SessionUsernameKey, "stale")
	store := NewStore(durable, session)

	if err := store.Set(model.Credentials{Username: "alice", Password: "secret", Persist: true}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if v, _, _ := durable.Get(PasswordKey); v != "secret" {
		t.Errorf("durable password = %q, want secret", v)
	}
	assertAbsent(t, session, SessionUsernameKey, SessionPasswordKey)
}

func TestTogglePersistOffMigratesBeforeErasing(t *testing.T) {
	durable, session, journal := newRecordingPair()
	store := NewStore(durable, session)

	if err := store.Set(model.Credentials{Username: "alice", Password: "secret", Persist: true}); err != nil {
		t.Fatalf("Set persist: %v", err)
	}
	*journal = nil

	if err := store.Set(model.Credentials{Username: "alice", Password: "secret", Persist: false}); err != nil {
		t.Fatalf("Set session: %v", err)
	}

	want := []string{
		"session.set." + SessionUsernameKey,
		"session.set." + SessionPasswordKey,
		"durable.delete." + UsernameKey,
		"durable.delete." + PasswordKey,
	}
	if len(*journal) != len(want) {
		t.Fatalf("journal = %v, want %v", *journal, want)
	}
	for i := range want {
		if (*journal)[i] != want[i] {
			t.Errorf("journal[%d] = %q, want %q", i, (*journal)[i], want[i])
		}
	}

	if v, _, _ := session.Get(SessionPasswordKey); v != "secret" {
		t.Errorf("session password = %q, want secret", v)
	}
	assertAbsent(t, durable, UsernameKey, PasswordKey)
}

func TestFailedSessionWriteKeepsDurableCopy(t *testing.T) {
	durable, session, _ := newRecordingPair()
	store := NewStore(durable, session)
	if err := store.Set(model.Credentials{Username: "alice", Password: "secret", Persist: true}); err != nil {
		t.Fatalf("Set persist: %v", err)
	}

	session.failSet = true
	if err := store.Set(model.Credentials{Username: "alice", Password: "secret"}); err == nil {
		t.Fatal("expected error when session write fails")
	}

	if v, _, _ := durable.Get(PasswordKey); v != "secret" {
		t.Errorf("durable copy erased after failed migration: %q", v)
	}
}

func TestToggleThenClearLeavesNothing(t *testing.T) {
	durable, session := NewMemoryKV(), NewMemoryKV()
	store := NewStore(durable, session)

	store.Set(model.Credentials{Username: "alice", Password: "secret", Persist: true})
	store.Set(model.Credentials{Username: "alice", Password: "secret", Persist: false})

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	assertAbsent(t, durable, UsernameKey, PasswordKey)
	assertAbsent(t, session, SessionUsernameKey, SessionPasswordKey)
	if n := durable.Len() + session.Len(); n != 0 {
		t.Errorf("%d keys left after Clear", n)
	}
	if got := store.Get(); got != (model.Credentials{}) {
		t.Errorf("Get() after Clear = %v, want zero value", got)
	}

	reloaded, err := NewStore(durable, session).Load()
	if err != nil || reloaded.Complete() {
		t.Errorf("reload after Clear = %v, %v", reloaded, err)
	}
}

func TestStoreWithSQLiteDurable(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), storage.DBFileName))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	durable := storage.NewKVStorage(db)
	store := NewStore(durable, NewMemoryKV())
	if err := store.Set(model.Credentials{Username: "alice", Password: "secret", Persist: true}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// A fresh process only sees durable storage.
	got, err := NewStore(durable, NewMemoryKV()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Persist || got.Username != "alice" || got.Password != "secret" {
		t.Errorf("Load() = %v", got)
	}
}
