package chats

import (
	"slices"

	"github.com/matheus3301/chatline/internal/domain"
)

// MergeMessages adds the incoming messages whose id is not already present
// and returns the result sorted by CreatedAt ascending. Existing messages win
// over incoming duplicates. Neither input is modified.
func MergeMessages(existing, incoming []domain.Message) []domain.Message {
	merged := appendNew(existing, incoming)
	sortAscending(merged)
	return merged
}

// mergeNewestFirst is MergeMessages for lists kept newest first.
func mergeNewestFirst(existing, incoming []domain.Message) []domain.Message {
	merged := appendNew(existing, incoming)
	sortDescending(merged)
	return merged
}

func appendNew(existing, incoming []domain.Message) []domain.Message {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]domain.Message, 0, len(existing)+len(incoming))
	for _, m := range existing {
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	for _, m := range incoming {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Ties on CreatedAt are broken by id so the order is deterministic.
func compareMessages(a, b domain.Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

func sortAscending(msgs []domain.Message) {
	slices.SortStableFunc(msgs, compareMessages)
}

func sortDescending(msgs []domain.Message) {
	slices.SortStableFunc(msgs, func(a, b domain.Message) int {
		return compareMessages(b, a)
	})
}

// sameSequence reports whether a and b hold the same ids in the same order.
func sameSequence(a, b []domain.Message) bool {
	return slices.EqualFunc(a, b, func(x, y domain.Message) bool {
		return x.ID == y.ID
	})
}
