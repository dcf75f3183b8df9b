package store

import (
	"sort"

	"github.com/spindex/spindex/internal/submission"
)

// sortRecords orders records newest first, breaking ties by id so listings
// are stable across calls. Kept in one place so the memory and SQLite
// backends paginate identically.
func sortRecords(recs []submission.Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}

		return recs[i].ID > recs[j].ID
	})
}

// paginate applies offset/limit to an already sorted slice. A limit of zero
// means no limit.
func paginate(recs []submission.Record,
	offset, limit int) []submission.Record {

	if offset >= len(recs) {
		return nil
	}
	recs = recs[offset:]
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}

	return recs
}
