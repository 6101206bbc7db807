// Package store persists ledger state as JSON documents under named keys.
//
// Components read their document once at startup with Load or LoadList and
// rewrite it after every mutation with Save. Loading never fails: a missing
// key is a first run and a payload that no longer decodes is treated the same
// way. List documents are decoded per element, so one bad entry is dropped on
// its own instead of taking the whole history with it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/fitledger/internal/observability"
)

// Document keys used by the ledger components.
const (
	KeyActivity = "activity"
	KeyGoals    = "goals"
	KeyMeals    = "meals"
	KeySleep    = "sleep"
)

// ErrNotFound is returned by Store.Get when nothing was saved under the key.
var ErrNotFound = errors.New("state key not found")

// Store is a durable byte store addressed by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

var logger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger replaces the logger used to report corrupt payloads.
func SetLogger(l logrus.FieldLogger) {
	if l != nil {
		logger = l
	}
}

// Load decodes the document under key into a T. Missing keys, read errors and
// undecodable payloads all yield def.
func Load[T any](ctx context.Context, s Store, key string, def T) T {
	raw, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.WithError(err).WithField("key", key).Warn("state read failed, starting from default")
			recordLoad(key, "error")
		} else {
			recordLoad(key, "missing")
		}
		return def
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.WithError(err).WithField("key", key).Warn("corrupt state payload discarded")
		recordLoad(key, "corrupt")
		return def
	}
	recordLoad(key, "ok")
	return out
}

// LoadList decodes the JSON array under key one element at a time. Elements
// that do not decode into a T are logged, counted as discarded and skipped, so
// one bad entry cannot take the rest of the list with it. A payload that is
// not an array at all yields nil, as Load does.
func LoadList[T any](ctx context.Context, s Store, key string) []T {
	elems := Load[[]json.RawMessage](ctx, s, key, nil)
	if len(elems) == 0 {
		return nil
	}
	out := make([]T, 0, len(elems))
	bad := 0
	for i, elem := range elems {
		var v T
		if err := json.Unmarshal(elem, &v); err != nil {
			bad++
			logger.WithError(err).WithFields(logrus.Fields{"key": key, "index": i}).Warn("undecodable list element discarded")
			continue
		}
		out = append(out, v)
	}
	observability.RecordDiscarded(key, bad)
	return out
}

// Save encodes value and writes it under key synchronously.
func Save[T any](ctx context.Context, s Store, key string, value T) error {
	start := time.Now()
	body, err := json.Marshal(value)
	if err != nil {
		recordSave(key, "error", start)
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Put(ctx, key, body); err != nil {
		recordSave(key, "error", start)
		return fmt.Errorf("write %s: %w", key, err)
	}
	recordSave(key, "ok", start)
	return nil
}
