// Package kvstore implements chat.Store on an embedded badger database, for
// single-node deployments without Postgres.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/onnwee/chat-bridge/chat"
	"github.com/onnwee/chat-bridge/crypto"
)

const prefix = "conn:"

// document is the stored form of a chat.Record.
type document struct {
	Tenant            string    `json:"tenant"`
	AccountID         string    `json:"account_id"`
	Username          string    `json:"username"`
	AccessToken       string    `json:"access_token"`
	EncryptionVersion int       `json:"encryption_version"`
	EncryptionKeyID   string    `json:"encryption_key_id,omitempty"`
	JoinedChannels    []string  `json:"joined_channels"`
	ExpiryNotified    bool      `json:"expiry_notified"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Store struct {
	db  *badger.DB
	enc crypto.Encryptor
	log *slog.Logger
}

// Open opens (or creates) a badger database in dir. An empty dir opens an
// in-memory database.
func Open(dir string, enc crypto.Encryptor, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return New(db, enc, log), nil
}

// New wraps an open badger database. enc may be nil.
func New(db *badger.DB, enc crypto.Encryptor, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, enc: enc, log: log.With(slog.String("component", "kvstore"))}
}

func (s *Store) Close() error { return s.db.Close() }

// key is formatted as "conn:{tenant}:{account}".
func key(k chat.Key) []byte {
	return []byte(prefix + k.Tenant + ":" + k.AccountID)
}

func (s *Store) decode(val []byte) (chat.Record, error) {
	var d document
	if err := json.Unmarshal(val, &d); err != nil {
		return chat.Record{}, err
	}
	token, err := crypto.Open(s.enc, d.AccessToken, d.EncryptionVersion)
	if err != nil {
		return chat.Record{}, fmt.Errorf("decrypt token for %s/%s: %w", d.Tenant, d.AccountID, err)
	}
	return chat.Record{
		Tenant:         d.Tenant,
		AccountID:      d.AccountID,
		Username:       d.Username,
		AccessToken:    token,
		JoinedChannels: d.JoinedChannels,
		ExpiryNotified: d.ExpiryNotified,
		UpdatedAt:      d.UpdatedAt,
	}, nil
}

func (s *Store) encode(rec chat.Record) ([]byte, error) {
	stored, version, keyID, err := crypto.Seal(s.enc, rec.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt token: %w", err)
	}
	return json.Marshal(document{
		Tenant:            rec.Tenant,
		AccountID:         rec.AccountID,
		Username:          rec.Username,
		AccessToken:       stored,
		EncryptionVersion: version,
		EncryptionKeyID:   keyID,
		JoinedChannels:    rec.JoinedChannels,
		ExpiryNotified:    rec.ExpiryNotified,
		UpdatedAt:         time.Now().UTC(),
	})
}

func (s *Store) get(txn *badger.Txn, k chat.Key) (chat.Record, error) {
	item, err := txn.Get(key(k))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return chat.Record{}, fmt.Errorf("%s: %w", k, chat.ErrNotSetUp)
	}
	if err != nil {
		return chat.Record{}, err
	}
	var rec chat.Record
	err = item.Value(func(val []byte) error {
		rec, err = s.decode(val)
		return err
	})
	return rec, err
}

func (s *Store) Load(_ context.Context, k chat.Key) (chat.Record, error) {
	var rec chat.Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = s.get(txn, k)
		return err
	})
	return rec, err
}

// List returns every record in key order.
func (s *Store) List(_ context.Context) ([]chat.Record, error) {
	var out []chat.Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec, err := s.decode(val)
				if err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) Save(_ context.Context, rec chat.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	data, err := s.encode(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(rec.Key()), data)
	})
}

// update applies fn to an existing record inside one transaction.
func (s *Store) update(k chat.Key, fn func(*chat.Record)) error {
	return s.db.Update(func(txn *badger.Txn) error {
		rec, err := s.get(txn, k)
		if err != nil {
			return err
		}
		fn(&rec)
		data, err := s.encode(rec)
		if err != nil {
			return err
		}
		return txn.Set(key(k), data)
	})
}

func (s *Store) SetJoinedChannels(_ context.Context, k chat.Key, channelIDs []string) error {
	return s.update(k, func(r *chat.Record) { r.JoinedChannels = append([]string(nil), channelIDs...) })
}

func (s *Store) SetExpiryNotified(_ context.Context, k chat.Key, notified bool) error {
	return s.update(k, func(r *chat.Record) { r.ExpiryNotified = notified })
}

func (s *Store) UpdateToken(_ context.Context, k chat.Key, token string) error {
	return s.update(k, func(r *chat.Record) {
		r.AccessToken = token
		r.ExpiryNotified = false
	})
}

func (s *Store) Delete(_ context.Context, k chat.Key) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(k))
	})
}

// Ping reports whether the database is open.
func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}
