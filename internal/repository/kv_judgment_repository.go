package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"judgment-rag/internal/model"
)

const judgmentKeyPrefix = "judgment:"

// KVJudgmentRepository persists judgments as JSON documents in badger.
type KVJudgmentRepository struct {
	db *badger.DB
}

func NewKVJudgmentRepository(db *badger.DB) *KVJudgmentRepository {
	return &KVJudgmentRepository{db: db}
}

func judgmentKey(id string) []byte {
	return []byte(judgmentKeyPrefix + id)
}

// Save assigns a fresh identifier and writes the record.
func (r *KVJudgmentRepository) Save(_ context.Context, record *model.JudgmentRecord) error {
	record.ID = uuid.NewString()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal judgment failed: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(judgmentKey(record.ID), payload)
	})
	if err != nil {
		return fmt.Errorf("create judgment failed: %w", err)
	}
	return nil
}

func (r *KVJudgmentRepository) FindByID(_ context.Context, id string) (*model.JudgmentRecord, error) {
	var record model.JudgmentRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(judgmentKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get judgment failed: %w", err)
	}
	return &record, nil
}

// SearchByTitle scans all judgments; titles are matched case-insensitively.
func (r *KVJudgmentRepository) SearchByTitle(ctx context.Context, fragment string) ([]model.JudgmentRecord, error) {
	needle := strings.ToLower(fragment)
	var list []model.JudgmentRecord

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(judgmentKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record model.JudgmentRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			if strings.Contains(strings.ToLower(record.Title), needle) {
				list = append(list, record)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search judgments by title failed: %w", err)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if len(list) > titleSearchLimit {
		list = list[:titleSearchLimit]
	}
	return list, nil
}
