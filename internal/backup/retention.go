// Package backup mirrors ledger snapshots to object storage and prunes
// old ones by count and age.
package backup

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// SnapshotPrefix and SnapshotSuffix frame every snapshot key. The
	// timestamp layout in between sorts lexicographically in
	// chronological order, so key order is snapshot order.
	SnapshotPrefix = "expenses_backup_"
	SnapshotSuffix = ".db"

	snapshotTimeLayout = "20060102_150405"
)

// SnapshotKey builds the object key for a snapshot taken at t.
func SnapshotKey(t time.Time) string {
	return SnapshotPrefix + t.Format(snapshotTimeLayout) + SnapshotSuffix
}

// SnapshotTime recovers the timestamp encoded in a snapshot key. The stamp
// is a civil time, so the caller must supply the zone the key was stamped
// in, the ledger's fixed location.
func SnapshotTime(key string, loc *time.Location) (time.Time, error) {
	if !strings.HasPrefix(key, SnapshotPrefix) || !strings.HasSuffix(key, SnapshotSuffix) {
		return time.Time{}, fmt.Errorf("not a snapshot key: %q", key)
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(key, SnapshotPrefix), SnapshotSuffix)
	t, err := time.ParseInLocation(snapshotTimeLayout, stamp, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse snapshot key %q: %w", key, err)
	}
	return t, nil
}

// Expired selects the snapshot keys that the retention policy no longer
// wants: everything beyond the maxCount newest, plus anything older than
// maxAge. Stamps are read in loc, the zone they were written in. Keys that
// do not parse as snapshots are left alone. Each key is selected at most
// once even when both rules hit it.
func Expired(keys []string, now time.Time, loc *time.Location, maxCount int, maxAge time.Duration) []string {
	type snapshot struct {
		key   string
		taken time.Time
	}

	var snaps []snapshot
	for _, k := range keys {
		t, err := SnapshotTime(k, loc)
		if err != nil {
			continue
		}
		snaps = append(snaps, snapshot{key: k, taken: t})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].taken.After(snaps[j].taken) })

	expired := make(map[string]bool)
	if maxCount > 0 {
		for _, s := range snaps[min(maxCount, len(snaps)):] {
			expired[s.key] = true
		}
	}
	if maxAge > 0 {
		cutoff := now.Add(-maxAge)
		for _, s := range snaps {
			if s.taken.Before(cutoff) {
				expired[s.key] = true
			}
		}
	}

	var out []string
	for _, s := range snaps {
		if expired[s.key] {
			out = append(out, s.key)
		}
	}
	return out
}
