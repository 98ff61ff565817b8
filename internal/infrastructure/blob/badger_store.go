// Package blob 基于 Badger 的原始文件存储
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"rag-chat-api/internal/application/ingestion"
	"rag-chat-api/internal/config"
	"rag-chat-api/pkg/logger"
)

const (
	urlScheme  = "blob://"
	dataPrefix = "data:"
	typePrefix = "type:"
)

// ErrNotFound blob 不存在
var ErrNotFound = errors.New("blob not found")

// Store 以 blob://<key> 作为对外地址
type Store struct {
	db *badger.DB
}

var _ ingestion.BlobStorage = (*Store)(nil)

// Open 打开 Badger；InMemory 时忽略 Path
func Open(cfg *config.BlobConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("blob path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", errors.New("blob key is required")
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dataPrefix+key), data); err != nil {
			return err
		}
		return txn.Set([]byte(typePrefix+key), []byte(contentType))
	})
	if err != nil {
		return "", fmt.Errorf("store blob %s: %w", key, err)
	}
	logger.Debug(ctx, "blob stored", "key", key, "bytes", len(data))
	return urlScheme + key, nil
}

func (s *Store) Load(ctx context.Context, url string) ([]byte, error) {
	key, err := KeyFromURL(url)
	if err != nil {
		return nil, err
	}
	var out []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dataPrefix + key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load blob %s: %w", key, err)
	}
	return out, nil
}

// ContentType 返回写入时记录的 Content-Type
func (s *Store) ContentType(ctx context.Context, url string) (string, error) {
	key, err := KeyFromURL(url)
	if err != nil {
		return "", err
	}
	var ct string
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(typePrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			ct = string(v)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	return ct, err
}

// Delete 幂等，不存在的 key 不报错
func (s *Store) Delete(ctx context.Context, url string) error {
	key, err := KeyFromURL(url)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(dataPrefix + key)); err != nil {
			return err
		}
		return txn.Delete([]byte(typePrefix + key))
	})
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

// HealthCheck 读一次不存在的 key 验证 DB 可用
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("health:probe"))
		return err
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return nil
}

func KeyFromURL(url string) (string, error) {
	key, ok := strings.CutPrefix(url, urlScheme)
	if !ok || key == "" {
		return "", fmt.Errorf("invalid blob url %q", url)
	}
	return key, nil
}
