package store

import (
	"bytes"
	"reflect"
	"sync/atomic"

	"github.com/open-feature/assignd/pkg/model"
)

type NotificationType string

const (
	NotificationCreate NotificationType = "write"
	NotificationDelete NotificationType = "delete"
	NotificationUpdate NotificationType = "update"
)

type Notification struct {
	Type    NotificationType `json:"type"`
	FlagKey string           `json:"flagKey"`
}

// Holder owns the current Configuration. Readers take the snapshot once per
// evaluation; writers replace it wholesale.
type Holder struct {
	current atomic.Pointer[Configuration]
}

func NewHolder(initial *Configuration) *Holder {
	h := &Holder{}
	if initial != nil {
		h.current.Store(initial)
	}
	return h
}

// Current returns the active snapshot, or nil before the first Swap.
func (h *Holder) Current() *Configuration {
	return h.current.Load()
}

// Swap installs next and reports which flags were created, updated or deleted
// relative to the previous snapshot.
func (h *Holder) Swap(next *Configuration) []Notification {
	prev := h.current.Swap(next)
	return diff(prev, next)
}

func diff(prev, next *Configuration) []Notification {
	var notifications []Notification
	var before map[string]model.TryParse[model.Flag]
	if prev != nil {
		before = prev.flags.Flags
	}

	var after map[string]model.TryParse[model.Flag]
	if next != nil {
		after = next.flags.Flags
	}

	for _, key := range sortedKeys(after) {
		old, ok := before[key]
		switch {
		case !ok:
			notifications = append(notifications, Notification{Type: NotificationCreate, FlagKey: key})
		case !sameFlag(old, after[key]):
			notifications = append(notifications, Notification{Type: NotificationUpdate, FlagKey: key})
		}
	}
	for _, key := range sortedKeys(before) {
		if _, ok := after[key]; !ok {
			notifications = append(notifications, Notification{Type: NotificationDelete, FlagKey: key})
		}
	}
	return notifications
}

func sameFlag(a, b model.TryParse[model.Flag]) bool {
	if a.Raw != nil && b.Raw != nil {
		return bytes.Equal(a.Raw, b.Raw)
	}
	return reflect.DeepEqual(a.Value, b.Value)
}
