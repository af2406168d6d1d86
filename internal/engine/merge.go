package engine

import (
	"cmp"
	"slices"
	"time"

	"github.com/runoshun/boardsync/internal/domain"
)

// Merge combines the current remote document with a local document that lost
// a concurrent write.
//
//   - users and version come from remote; the roster is never client-overridden.
//   - tasks and requests are merged by id: local wins per id, remote-only ids
//     are kept in remote order, local-only ids are appended in local order.
//   - history is the union of both sides by entry id, newest first.
//
// Neither input is modified.
func Merge(remote, local *domain.Document) *domain.Document {
	remote = remote.Clone()
	local = local.Clone()
	if remote == nil {
		return local
	}
	if local == nil {
		return remote
	}

	merged := &domain.Document{
		Version:     remote.Version,
		LastUpdated: later(remote.LastUpdated, local.LastUpdated),
		Users:       remote.Users,
		Tasks:       mergeByID(remote.Tasks, local.Tasks, func(t domain.Task) string { return t.ID }),
		Requests:    mergeByID(remote.Requests, local.Requests, func(r domain.ChangeRequest) string { return r.ID }),
		History:     unionHistory(remote.History, local.History),
	}
	merged.Normalize()
	return merged
}

func mergeByID[T any](remote, local []T, id func(T) string) []T {
	localByID := make(map[string]T, len(local))
	for _, l := range local {
		localByID[id(l)] = l
	}

	out := make([]T, 0, len(remote)+len(local))
	seen := make(map[string]bool, len(remote))
	for _, r := range remote {
		key := id(r)
		seen[key] = true
		if l, ok := localByID[key]; ok {
			out = append(out, l)
			continue
		}
		out = append(out, r)
	}
	for _, l := range local {
		key := id(l)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}

// unionHistory keeps every entry from both sides. Entries are immutable, so
// for a shared id either copy will do. Entries without an id are matched by
// content instead: identical records on both sides count once, and repeats
// within one side are all kept.
func unionHistory(remote, local []domain.HistoryEntry) []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, 0, len(remote)+len(local))
	seen := make(map[string]bool, len(remote)+len(local))
	unnamed := make(map[historyKey]int)
	for _, h := range remote {
		if h.ID == "" {
			unnamed[keyOf(h)]++
			out = append(out, h)
			continue
		}
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		out = append(out, h)
	}
	for _, h := range local {
		if h.ID == "" {
			if k := keyOf(h); unnamed[k] > 0 {
				unnamed[k]--
				continue
			}
			out = append(out, h)
			continue
		}
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		out = append(out, h)
	}
	slices.SortStableFunc(out, func(a, b domain.HistoryEntry) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// historyKey identifies an entry by content.
type historyKey struct {
	taskID, actor, action, reason string
	field, oldValue, newValue     string
	at                            int64
	changed                       bool
}

func keyOf(h domain.HistoryEntry) historyKey {
	k := historyKey{taskID: h.TaskID, actor: h.Actor, action: h.Action, reason: h.Reason, at: h.Timestamp.UnixNano()}
	if h.Change != nil {
		k.changed = true
		k.field, k.oldValue, k.newValue = h.Change.Field, h.Change.OldValue, h.Change.NewValue
	}
	return k
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
