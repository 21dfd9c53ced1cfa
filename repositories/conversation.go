package repositories

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	conversationPrefix = "conv:"
	pairPrefix         = "pair:"
	sequencePrefix     = "seq:"
	messagePrefix      = "msg:"
	receiptPrefix      = "seen:"
	userPrefix         = "user:"

	// Conflicting transactions are replayed, the loser sees the winner's writes.
	maxTxnRetries = 64
)

func conversationKey(id string) []byte { return []byte(conversationPrefix + id) }
func pairKey(a, b string) []byte      { return []byte(pairPrefix + domain.PairKey(a, b)) }
func sequenceKey(id string) []byte    { return []byte(sequencePrefix + id) }

// Ids are padded to 20 digits so that the lexicographic order of keys is the numeric order.
func messageKey(conversationID string, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", messagePrefix, conversationID, id))
}

func messagesPrefix(conversationID string) []byte {
	return []byte(messagePrefix + conversationID + ":")
}

func receiptKey(conversationID string, messageID uint64, userID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", receiptPrefix, conversationID, messageID, userID))
}

func receiptsPrefix(conversationID string) []byte {
	return []byte(receiptPrefix + conversationID + ":")
}

func encodeSequence(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeSequence(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// ConversationRepository persists conversations, messages and seen receipts in Badger.
//
// Layout:
//
//	conv:<id>                         conversation record
//	pair:<min>:<max>                  id of the private conversation of a pair
//	seq:<id>                          last message id allocated in the conversation
//	msg:<id>:<padded message id>      message record
//	seen:<id>:<padded message id>:<u> receipt of user u
type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) ConversationRepository {
	return ConversationRepository{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (r ConversationRepository) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt <= maxTxnRetries; attempt++ {
		err = r.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		r.log.Debug("Transaction conflict, retrying", "attempt", attempt)
	}
	return err
}

// storeError keeps classified errors and turns everything else into a store failure.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.ErrNotFound),
		errors.Is(err, errors.ErrProtocolViolation),
		errors.Is(err, errors.ErrUnauthorized):
		return err
	}
	return fmt.Errorf("%w: %w", errors.ErrStoreFailure, err)
}

// FindOrCreatePrivate returns the conversation whose participant set is exactly {a, b}.
// Two concurrent calls for the same pair always return the same conversation.
func (r ConversationRepository) FindOrCreatePrivate(a, b string) (domain.Conversation, bool, error) {
	if a == "" || b == "" || a == b {
		return domain.Conversation{}, false, fmt.Errorf("%w: a private conversation needs two distinct participants", errors.ErrProtocolViolation)
	}
	var conversation domain.Conversation
	var created bool
	err := r.update(func(txn *badger.Txn) error {
		created = false
		item, err := txn.Get(pairKey(a, b))
		switch {
		case err == nil:
			id, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			conversation, err = getConversation(txn, string(id))
			return err
		case errors.Is(err, badger.ErrKeyNotFound):
			conversation = domain.Conversation{
				ID:           uuid.NewString(),
				Kind:         domain.Private,
				Participants: domain.PrivateParticipants(a, b),
				CreatedAt:    r.now(),
			}
			if err := txn.Set(conversationKey(conversation.ID), encodeConversation(conversation)); err != nil {
				return err
			}
			created = true
			return txn.Set(pairKey(a, b), []byte(conversation.ID))
		default:
			return err
		}
	})
	if err != nil {
		return domain.Conversation{}, false, storeError(err)
	}
	if created {
		r.log.Debug("Private conversation created", "conversation_id", conversation.ID)
	}
	return conversation, created, nil
}

// CreateCommunity always creates a new conversation, communities are not deduplicated.
func (r ConversationRepository) CreateCommunity(doctorIDs, patientIDs []string) (domain.Conversation, error) {
	participants := domain.CommunityParticipants(doctorIDs, patientIDs)
	conversation := domain.Conversation{
		ID:           uuid.NewString(),
		Kind:         domain.Community,
		Participants: participants,
		CreatedAt:    r.now(),
	}
	hasDoctor := false
	for _, p := range participants {
		if p.Role == domain.RoleDoctor {
			hasDoctor = true
			break
		}
	}
	if !hasDoctor {
		return domain.Conversation{}, fmt.Errorf("%w: a community needs at least one doctor", errors.ErrProtocolViolation)
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(conversationKey(conversation.ID), encodeConversation(conversation))
	})
	if err != nil {
		return domain.Conversation{}, storeError(err)
	}
	return conversation, nil
}

func (r ConversationRepository) Get(conversationID string) (domain.Conversation, error) {
	var conversation domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		conversation, err = getConversation(txn, conversationID)
		return err
	})
	return conversation, storeError(err)
}

func getConversation(txn *badger.Txn, conversationID string) (domain.Conversation, error) {
	item, err := txn.Get(conversationKey(conversationID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Conversation{}, fmt.Errorf("%w: conversation %s", errors.ErrNotFound, conversationID)
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	var conversation domain.Conversation
	err = item.Value(func(val []byte) error {
		conversation, err = decodeConversation(val)
		return err
	})
	return conversation, err
}

// AppendMessage allocates the next id of the conversation and stores the message.
// Ids start at 1 and have no gaps, the counter and the message commit together.
func (r ConversationRepository) AppendMessage(msg domain.Message) (domain.Message, error) {
	err := r.update(func(txn *badger.Txn) error {
		if _, err := getConversation(txn, msg.ConversationID); err != nil {
			return err
		}
		var last uint64
		item, err := txn.Get(sequenceKey(msg.ConversationID))
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				last = decodeSequence(val)
				return nil
			}); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		msg.ID = last + 1
		if err := txn.Set(sequenceKey(msg.ConversationID), encodeSequence(msg.ID)); err != nil {
			return err
		}
		return txn.Set(messageKey(msg.ConversationID, msg.ID), encodeMessage(msg))
	})
	if err != nil {
		return domain.Message{}, storeError(err)
	}
	msg.SeenBy = []domain.SeenReceipt{}
	return msg, nil
}

// ListMessages returns the whole history ordered by id, receipts included.
func (r ConversationRepository) ListMessages(conversationID string) ([]domain.Message, error) {
	return r.listMessages(conversationID, 0)
}

// listMessages returns messages with id <= upTo, or all of them when upTo is 0.
func (r ConversationRepository) listMessages(conversationID string, upTo uint64) ([]domain.Message, error) {
	messages := []domain.Message{}
	err := r.db.View(func(txn *badger.Txn) error {
		if _, err := getConversation(txn, conversationID); err != nil {
			return err
		}
		index := make(map[uint64]int)
		prefix := messagesPrefix(conversationID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg domain.Message
			err := it.Item().Value(func(val []byte) error {
				var err error
				msg, err = decodeMessage(val)
				return err
			})
			if err != nil {
				it.Close()
				return err
			}
			if upTo > 0 && msg.ID > upTo {
				break
			}
			msg.SeenBy = []domain.SeenReceipt{}
			index[msg.ID] = len(messages)
			messages = append(messages, msg)
		}
		it.Close()

		prefix = receiptsPrefix(conversationID)
		it = txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			messageID, userID, ok := parseReceiptKey(it.Item().Key(), len(prefix))
			if !ok {
				continue
			}
			pos, ok := index[messageID]
			if !ok {
				continue
			}
			err := it.Item().Value(func(val []byte) error {
				seenAt, err := decodeReceipt(val)
				if err != nil {
					return err
				}
				messages[pos].SeenBy = append(messages[pos].SeenBy, domain.SeenReceipt{UserID: userID, SeenAt: seenAt})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	for i := range messages {
		receipts := messages[i].SeenBy
		sort.SliceStable(receipts, func(a, b int) bool { return receipts[a].SeenAt.Before(receipts[b].SeenAt) })
	}
	return messages, nil
}

func parseReceiptKey(key []byte, prefixLen int) (uint64, string, bool) {
	rest := string(key[prefixLen:])
	if len(rest) < 22 || rest[20] != ':' {
		return 0, "", false
	}
	id, err := strconv.ParseUint(rest[:20], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return id, rest[21:], true
}

// MarkSeen stamps a receipt from userID on every message with id <= watermark that
// lacks one. A receipt key is written at most once: concurrent overlapping calls
// conflict on it and the replayed transaction finds it already present.
// It returns the messages up to the watermark and the number of receipts created.
func (r ConversationRepository) MarkSeen(conversationID, userID string, watermark uint64) ([]domain.Message, int, error) {
	if userID == "" || watermark == 0 {
		return nil, 0, fmt.Errorf("%w: user and watermark are required", errors.ErrProtocolViolation)
	}
	var stamped int
	err := r.update(func(txn *badger.Txn) error {
		stamped = 0
		if _, err := getConversation(txn, conversationID); err != nil {
			return err
		}
		ids, err := messageIDsUpTo(txn, conversationID, watermark)
		if err != nil {
			return err
		}
		seenAt := r.now()
		for _, id := range ids {
			key := receiptKey(conversationID, id, userID)
			_, err := txn.Get(key)
			if err == nil {
				continue
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(key, encodeReceipt(seenAt)); err != nil {
				return err
			}
			stamped++
		}
		return nil
	})
	if err != nil {
		return nil, 0, storeError(err)
	}
	messages, err := r.listMessages(conversationID, watermark)
	if err != nil {
		return nil, stamped, err
	}
	return messages, stamped, nil
}

func messageIDsUpTo(txn *badger.Txn, conversationID string, watermark uint64) ([]uint64, error) {
	var ids []uint64
	prefix := messagesPrefix(conversationID)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		id, err := strconv.ParseUint(string(it.Item().Key()[len(prefix):]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed message key %q: %w", it.Item().Key(), err)
		}
		if id > watermark {
			break
		}
		ids = append(ids, id)
	}
	return ids, nil
}
