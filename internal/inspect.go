package internal

import (
	"chat-relay/repositories"

	"github.com/dgraph-io/badger/v4"
)

type InspectRow struct {
	Key    string
	Type   string
	Size   int
	Detail string
}

type RowMapper func(key, val []byte) InspectRow

// Scan reads at most limit records starting with prefix, limit <= 0 meaning all.
func Scan(db *badger.DB, prefix string, limit int, mapper RowMapper) ([]InspectRow, error) {
	if mapper == nil {
		mapper = DefaultMapper
	}
	var rows []InspectRow
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			if limit > 0 && len(rows) >= limit {
				return nil
			}
			item := it.Item()
			err := item.Value(func(val []byte) error {
				rows = append(rows, mapper(item.KeyCopy(nil), val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rows, err
}

func DefaultMapper(key, val []byte) InspectRow {
	kind, detail := repositories.Describe(key, val)
	return InspectRow{Key: string(key), Type: kind, Size: len(val), Detail: detail}
}
