// Package store persists subscriptions, config sets and global settings in
// a single bbolt file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/elysiawen/SubLinks-sub001/internal/model"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	bucketSubscriptions = []byte("subscriptions")
	bucketConfigSets    = []byte("configsets")
	bucketSettings      = []byte("settings")

	settingsKey = []byte("global")
)

var ErrNotFound = errors.New("not found")

// ValidationError rejects a write that would leave the store inconsistent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, os.ModePerm, &bbolt.Options{Timeout: time.Second * 2})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSubscriptions, bucketConfigSets, bucketSettings} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// NewToken mints an opaque subscription token.
func NewToken() string { return uuid.NewString() }

func (s *Store) GetSubscription(token string) (*model.Subscription, error) {
	var sub model.Subscription
	err := s.get(bucketSubscriptions, []byte(token), &sub)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// PutSubscription creates or replaces a subscription. The write path is the
// only place an empty selected-source list is rejected; a subscription that
// later dangles (its sources removed from settings) fails at build time.
func (s *Store) PutSubscription(sub *model.Subscription) error {
	if sub.Token == "" {
		return &ValidationError{Message: "订阅 token 不能为空"}
	}
	settings, err := s.Settings()
	if err != nil {
		return err
	}
	if len(settings.SelectSources(sub.SelectedSources)) == 0 {
		return &ValidationError{Message: "订阅必须至少选择一个有效的上游源"}
	}
	return s.put(bucketSubscriptions, []byte(sub.Token), sub)
}

func (s *Store) DeleteSubscription(token string) error {
	return s.delete(bucketSubscriptions, []byte(token))
}

func (s *Store) ListSubscriptions() ([]*model.Subscription, error) {
	var out []*model.Subscription
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSubscriptions).ForEach(func(_, v []byte) error {
			var sub model.Subscription
			if err := json.Unmarshal(v, &sub); err != nil {
				return err
			}
			out = append(out, &sub)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetConfigSet(id string) (*model.ConfigSet, error) {
	var set model.ConfigSet
	if err := s.get(bucketConfigSets, []byte(id), &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (s *Store) PutConfigSet(set *model.ConfigSet) error {
	if set.ID == "" {
		set.ID = uuid.NewString()
	}
	if set.Kind != model.SetGroups && set.Kind != model.SetRules {
		return &ValidationError{Message: "配置集类型必须是 groups 或 rules"}
	}
	return s.put(bucketConfigSets, []byte(set.ID), set)
}

// DeleteConfigSet removes the set without touching subscriptions that
// reference it; synthesis falls back to default behavior for dangling refs.
func (s *Store) DeleteConfigSet(id string) error {
	return s.delete(bucketConfigSets, []byte(id))
}

func (s *Store) ListConfigSets() ([]*model.ConfigSet, error) {
	var out []*model.ConfigSet
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketConfigSets).ForEach(func(_, v []byte) error {
			var set model.ConfigSet
			if err := json.Unmarshal(v, &set); err != nil {
				return err
			}
			out = append(out, &set)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Settings returns the global settings, or defaults when none were stored.
func (s *Store) Settings() (model.Settings, error) {
	var settings model.Settings
	err := s.get(bucketSettings, settingsKey, &settings)
	if errors.Is(err, ErrNotFound) {
		return model.Settings{CacheDurationHours: model.DefaultCacheDurationHours}, nil
	}
	if err != nil {
		return model.Settings{}, err
	}
	return settings, nil
}

func (s *Store) PutSettings(settings model.Settings) error {
	names := make(map[string]struct{}, len(settings.Sources))
	for _, src := range settings.Sources {
		if src.Name == "" || src.URL == "" {
			return &ValidationError{Message: "上游源的 name/url 不能为空"}
		}
		if _, ok := names[src.Name]; ok {
			return &ValidationError{Message: fmt.Sprintf("重复的上游源名：%s", src.Name)}
		}
		names[src.Name] = struct{}{}
	}
	return s.put(bucketSettings, settingsKey, settings)
}

func (s *Store) get(bucket, key []byte, out any) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucket).Get(key)
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, out)
	})
}

func (s *Store) put(bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put(key, data)
	})
}

func (s *Store) delete(bucket, key []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	})
}
