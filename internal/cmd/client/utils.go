package client

import (
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rzbill/logkv/internal/logclient"
	"github.com/rzbill/logkv/internal/runtime"
	logpkg "github.com/rzbill/logkv/pkg/log"
)

// withBackend opens the configured commit log for the duration of fn. The
// embedded log is a local Pebble database, so it cannot be opened while a
// server holds it.
func withBackend(load ConfigFunc, fn func(*runtime.Backend, string) error) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	b, err := runtime.OpenBackend(cfg, "logkv-cli-"+uuid.NewString()[:8], logpkg.NewNop(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()
	return fn(b, cfg.Topic)
}

// decodedRecord returns a map with offset, key and one of value_json,
// value_text or value_b64. Tombstones carry "tombstone": true instead of a
// value.
func decodedRecord(rec logclient.Record) map[string]any {
	out := map[string]any{
		"offset": rec.Offset,
		"key":    printable(rec.Key),
	}
	if rec.Tombstone() {
		out["tombstone"] = true
		return out
	}
	v := rec.Value
	if len(v) > 0 && (v[0] == '{' || v[0] == '[') {
		var js any
		if json.Unmarshal(v, &js) == nil {
			out["value_json"] = js
			return out
		}
	}
	if utf8.Valid(v) {
		out["value_text"] = string(v)
		return out
	}
	out["value_b64"] = base64.StdEncoding.EncodeToString(v)
	return out
}

func printable(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return base64.StdEncoding.EncodeToString(b)
}
