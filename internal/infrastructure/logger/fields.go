package logger

import (
	"time"

	"go.uber.org/zap"
)

func String(key, val string) Field                 { return zap.String(key, val) }
func Int(key string, val int) Field                { return zap.Int(key, val) }
func Int64(key string, val int64) Field            { return zap.Int64(key, val) }
func Float64(key string, val float64) Field        { return zap.Float64(key, val) }
func Bool(key string, val bool) Field              { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Time(key string, val time.Time) Field         { return zap.Time(key, val) }
func Any(key string, val any) Field                { return zap.Any(key, val) }
func Strings(key string, val []string) Field       { return zap.Strings(key, val) }

// Error creates an error field with the key "error".
func Error(err error) Field { return zap.Error(err) }

// Component tags entries with the pipeline component that produced them.
func Component(name string) Field { return zap.String("component", name) }

// MappingID tags entries with a mapping identifier.
func MappingID(id int64) Field { return zap.Int64("mapping_id", id) }

// CommandID tags entries with a scrape command identifier.
func CommandID(id string) Field { return zap.String("command_id", id) }

// Domain tags entries with a throttled target domain.
func Domain(host string) Field { return zap.String("domain", host) }
