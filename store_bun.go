package authflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// StoredRecord is one durable key/value entry. Both client-side stores share
// the table; they never share keys.
type StoredRecord struct {
	bun.BaseModel `bun:"table:authflow_records,alias:rec"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Key           string    `bun:"key,notnull,unique" json:"key"`
	Value         string    `bun:"value,notnull" json:"value"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

const (
	keySessionToken    = "session.token"
	keySessionUser     = "session.user"
	keyCredentialEmail = "credentials.email"
	keyCredentialPass  = "credentials.password"
)

// OpenStorage opens the sqlite-backed profile database and ensures the
// record table exists. Use ":memory:" for throwaway profiles.
func OpenStorage(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open profile storage")
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.NewCreateTable().
		Model((*StoredRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create record table")
	}

	return db, nil
}

type kvStore struct {
	db *bun.DB
}

func (s kvStore) set(ctx context.Context, key, value string) error {
	rec := &StoredRecord{
		ID:        uuid.New(),
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write record")
	}
	return nil
}

func (s kvStore) get(ctx context.Context, key string) (string, bool, error) {
	rec := new(StoredRecord)
	err := s.db.NewSelect().
		Model(rec).
		Where("key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read record")
	}
	return rec.Value, true, nil
}

func (s kvStore) del(ctx context.Context, keys ...string) error {
	_, err := s.db.NewDelete().
		Model((*StoredRecord)(nil)).
		Where("key IN (?)", bun.In(keys)).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete records")
	}
	return nil
}

// BunSessionStore is the durable SessionStore: two rows, token and
// JSON-serialized user.
type BunSessionStore struct {
	kv kvStore
}

var _ SessionStore = (*BunSessionStore)(nil)

func NewBunSessionStore(db *bun.DB) *BunSessionStore {
	return &BunSessionStore{kv: kvStore{db: db}}
}

func (s *BunSessionStore) Save(ctx context.Context, token string, user *User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to serialize session user")
	}
	if err := s.kv.set(ctx, keySessionToken, token); err != nil {
		return err
	}
	return s.kv.set(ctx, keySessionUser, string(raw))
}

func (s *BunSessionStore) Load(ctx context.Context) (string, *User, error) {
	token, ok, err := s.kv.get(ctx, keySessionToken)
	if err != nil {
		return "", nil, err
	}
	if !ok || token == "" {
		return "", nil, nil
	}

	raw, ok, err := s.kv.get(ctx, keySessionUser)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return token, nil, nil
	}

	user := new(User)
	if err := json.Unmarshal([]byte(raw), user); err != nil {
		// a corrupt cached user is recoverable, the token still gets revalidated
		return token, nil, nil
	}
	return token, user, nil
}

func (s *BunSessionStore) Clear(ctx context.Context) error {
	return s.kv.del(ctx, keySessionToken, keySessionUser)
}

// BunCredentialStore is the durable remembered-credential pair. Independent
// from the session record: clearing one never touches the other.
type BunCredentialStore struct {
	kv kvStore
}

var _ CredentialStore = (*BunCredentialStore)(nil)

func NewBunCredentialStore(db *bun.DB) *BunCredentialStore {
	return &BunCredentialStore{kv: kvStore{db: db}}
}

func (s *BunCredentialStore) Save(ctx context.Context, email, password string) error {
	if err := s.kv.set(ctx, keyCredentialEmail, email); err != nil {
		return err
	}
	return s.kv.set(ctx, keyCredentialPass, password)
}

func (s *BunCredentialStore) Load(ctx context.Context) (string, string, error) {
	email, _, err := s.kv.get(ctx, keyCredentialEmail)
	if err != nil {
		return "", "", err
	}
	password, _, err := s.kv.get(ctx, keyCredentialPass)
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}

func (s *BunCredentialStore) Clear(ctx context.Context) error {
	return s.kv.del(ctx, keyCredentialEmail, keyCredentialPass)
}
