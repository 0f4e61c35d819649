// Package topic stores commit-log topic metadata (partition count, record
// size limit) next to the embedded log in Pebble.
package topic

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rzbill/logkv/internal/logclient"
	pebblestore "github.com/rzbill/logkv/internal/storage/pebble"
)

// Meta holds topic metadata.
type Meta struct {
	Name            string `json:"name"`
	CreatedAtMs     int64  `json:"createdAtMs"`
	Partitions      int    `json:"partitions"`
	MaxMessageBytes int    `json:"maxMessageBytes"`
}

// Defaults returns the metadata used for auto-created topics. A store
// topic has a single partition so that the log is totally ordered.
func Defaults() Meta {
	return Meta{
		Partitions:      1,
		MaxMessageBytes: 1 << 20, // 1 MiB
	}
}

var (
	metaPrefix = []byte("topicmeta/")
	nameRe     = regexp.MustCompile(`^[A-Za-z0-9._-]{1,249}$`)
)

// ValidateName checks a topic name using Kafka's legal character set.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("topic: invalid name %q", name)
	}
	return nil
}

func metaKey(name string) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(name))
	k = append(k, metaPrefix...)
	k = append(k, name...)
	return k
}

// Get loads topic metadata. Missing topics return logclient.ErrTopicNotFound.
func Get(db *pebblestore.DB, name string) (Meta, error) {
	b, err := db.Get(metaKey(name))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return Meta{}, fmt.Errorf("%w: %s", logclient.ErrTopicNotFound, name)
		}
		return Meta{}, err
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, fmt.Errorf("topic: decode %s: %w", name, err)
	}
	return m, nil
}

// Create writes metadata for a new topic. Existing topics are left
// untouched and returned as is.
func Create(db *pebblestore.DB, m Meta) (Meta, error) {
	if err := ValidateName(m.Name); err != nil {
		return Meta{}, err
	}
	if m.Partitions <= 0 {
		return Meta{}, fmt.Errorf("topic: %s: partitions must be positive", m.Name)
	}
	if existing, err := Get(db, m.Name); err == nil {
		return existing, nil
	} else if !errors.Is(err, logclient.ErrTopicNotFound) {
		return Meta{}, err
	}
	if m.MaxMessageBytes <= 0 {
		m.MaxMessageBytes = Defaults().MaxMessageBytes
	}
	m.CreatedAtMs = time.Now().UnixMilli()
	b, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := db.Set(metaKey(m.Name), b); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// Ensure creates the topic with default metadata if absent.
// Idempotent: returns existing if already present.
func Ensure(db *pebblestore.DB, name string) (Meta, error) {
	m := Defaults()
	m.Name = name
	return Create(db, m)
}
