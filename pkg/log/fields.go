package log

import (
	"time"

	"go.uber.org/zap"
)

// Field is a single piece of structured context.
type Field = zap.Field

func Str(key, value string) Field               { return zap.String(key, value) }
func Strs(key string, value []string) Field     { return zap.Strings(key, value) }
func Int(key string, value int) Field           { return zap.Int(key, value) }
func Int32(key string, value int32) Field       { return zap.Int32(key, value) }
func Int64(key string, value int64) Field       { return zap.Int64(key, value) }
func Uint64(key string, value uint64) Field     { return zap.Uint64(key, value) }
func Bool(key string, value bool) Field         { return zap.Bool(key, value) }
func Dur(key string, value time.Duration) Field { return zap.Duration(key, value) }
func Any(key string, value interface{}) Field   { return zap.Any(key, value) }

// Err attaches an error under the "error" key.
func Err(err error) Field { return zap.Error(err) }

// Component tags an entry with the emitting component.
func Component(name string) Field { return zap.String(ComponentKey, name) }

// Operation tags an entry with the operation being performed.
func Operation(name string) Field { return zap.String(OperationKey, name) }
