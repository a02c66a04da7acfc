// Package reconcile merges a locally retained transaction snapshot with a
// freshly polled batch. The server's list endpoint only returns a recent
// window, so a poller that forgot its snapshot would watch older records fall
// off the edge; merging keeps them visible without ever duplicating an id.
package reconcile

import (
	"sort"

	"github.com/naruebet/tmwatch/internal/models"
)

// Merge combines cached and fresh by id. Fresh always wins on collision since
// it reflects the latest server state. Merge(x, x) == x up to ordering; the
// output carries no order of its own, callers re-sort before display.
func Merge(cached, fresh []models.Transaction) []models.Transaction {
	byID := make(map[string]models.Transaction, len(cached)+len(fresh))
	order := make([]string, 0, len(cached)+len(fresh))
	for _, tx := range cached {
		if _, ok := byID[tx.ID]; !ok {
			order = append(order, tx.ID)
		}
		byID[tx.ID] = tx
	}
	for _, tx := range fresh {
		if _, ok := byID[tx.ID]; !ok {
			order = append(order, tx.ID)
		}
		byID[tx.ID] = tx
	}

	out := make([]models.Transaction, 0, len(byID))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// SortNewestFirst orders txs by occurrence time descending, in place.
// Ties break on id so repeated polls render stably.
func SortNewestFirst(txs []models.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].OccurredAt.Equal(txs[j].OccurredAt) {
			return txs[i].ID > txs[j].ID
		}
		return txs[i].OccurredAt.After(txs[j].OccurredAt)
	})
}
