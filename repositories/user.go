package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
)

// UserRepository keeps the last known connection of each user.
type UserRepository struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewUserRepository(db *badger.DB, log *slog.Logger) UserRepository {
	return UserRepository{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func userKey(userID string) []byte { return []byte(userPrefix + userID) }

// SetOnline records connectionID as the user's current connection.
func (u UserRepository) SetOnline(userID, connectionID string) error {
	return u.mutate(userID, func(user *domain.User) bool {
		user.LastConnectionID = connectionID
		user.Online = true
		user.OnlineAt = u.now()
		return true
	})
}

// SetOffline clears the online flag, unless a newer connection took over meanwhile.
func (u UserRepository) SetOffline(userID, connectionID string) error {
	return u.mutate(userID, func(user *domain.User) bool {
		if user.LastConnectionID != connectionID {
			return false
		}
		user.Online = false
		user.OfflineAt = u.now()
		return true
	})
}

func (u UserRepository) mutate(userID string, apply func(user *domain.User) bool) error {
	var err error
	for attempt := 0; attempt <= maxTxnRetries; attempt++ {
		err = u.db.Update(func(txn *badger.Txn) error {
			user, err := getUser(txn, userID)
			if errors.Is(err, errors.ErrNotFound) {
				user = domain.User{ID: userID}
			} else if err != nil {
				return err
			}
			if !apply(&user) {
				return nil
			}
			return txn.Set(userKey(userID), encodeUser(user))
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	return storeError(err)
}

func (u UserRepository) Get(userID string) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, userID)
		return err
	})
	return user, storeError(err)
}

func getUser(txn *badger.Txn, userID string) (domain.User, error) {
	item, err := txn.Get(userKey(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, fmt.Errorf("%w: user %s", errors.ErrNotFound, userID)
	}
	if err != nil {
		return domain.User{}, err
	}
	var user domain.User
	err = item.Value(func(val []byte) error {
		user, err = decodeUser(val)
		return err
	})
	return user, err
}
