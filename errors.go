package heapstash

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/heapstash/plugin"
)

var (
	ErrIdentifierRequired       = errors.New("heapstash: id required")
	ErrItemRequired             = errors.New("heapstash: item required")
	ErrRetrieveFunctionRequired = errors.New("heapstash: retrieve function required")
	// ErrInvalidTTL is a negative per-call TTL or PluginTTL other than NoExpiry.
	ErrInvalidTTL = errors.New("heapstash: invalid ttl")
	// ErrPluginTask matches (errors.Is) every *PluginError.
	ErrPluginTask = errors.New("heapstash: plugin task failed")
)

// PluginError is a failure raised by a plugin task on the write path
// (put, remove, clear). The primary store has already been updated when it
// is returned.
type PluginError struct {
	Plugin string
	Task   plugin.Task
	Key    string // empty for clear
	Err    error
}

func (e *PluginError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("heapstash: plugin %s %s failed: %v", e.Plugin, e.Task, e.Err)
	}
	return fmt.Sprintf("heapstash: plugin %s %s %q failed: %v", e.Plugin, e.Task, e.Key, e.Err)
}

func (e *PluginError) Unwrap() error { return e.Err }

func (e *PluginError) Is(target error) bool { return target == ErrPluginTask }
