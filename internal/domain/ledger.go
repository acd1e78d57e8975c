package domain

import (
	"sort"
	"time"
)

// SortEntries returns a copy of entries ordered by (EffectiveDate, Sequence)
// The input slice is never reordered
func SortEntries(entries []CapitalSourceHistoryEntry) []CapitalSourceHistoryEntry {
	sorted := make([]CapitalSourceHistoryEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Before(sorted[j])
	})
	return sorted
}

// Resolve projects the ledger onto the state of one source as of a given instant.
// Logic:
//  1. Keep entries for sourceID with EffectiveDate <= asOf
//  2. Take the latest of them by (EffectiveDate, Sequence)
//  3. If there is none, or it is a REMOVED entry, the source is not active
//
// Resolve is pure: identical inputs always yield identical output.
func Resolve(entries []CapitalSourceHistoryEntry, sourceID SourceID, asOf time.Time) (CapitalSource, bool) {
	var latest *CapitalSourceHistoryEntry
	for i := range entries {
		entry := &entries[i]
		if entry.SourceID != sourceID || entry.EffectiveDate.After(asOf) {
			continue
		}
		if latest == nil || latest.Before(*entry) {
			latest = entry
		}
	}

	if latest == nil || latest.Action == ActionRemoved {
		return CapitalSource{}, false
	}

	return CapitalSource{
		SourceID:       latest.SourceID,
		Name:           latest.Name,
		AnnualRate:     latest.AnnualRate,
		AvailableCents: latest.AvailableCents,
		UsedCents:      0,
		RemainingCents: latest.AvailableCents,
	}, true
}

// LatestEntry returns the last entry of a lineage by (EffectiveDate, Sequence)
func LatestEntry(entries []CapitalSourceHistoryEntry, sourceID SourceID) (CapitalSourceHistoryEntry, bool) {
	var latest *CapitalSourceHistoryEntry
	for i := range entries {
		entry := &entries[i]
		if entry.SourceID != sourceID {
			continue
		}
		if latest == nil || latest.Before(*entry) {
			latest = entry
		}
	}
	if latest == nil {
		return CapitalSourceHistoryEntry{}, false
	}
	return *latest, true
}

// SourceIDs returns every distinct source id in ledger order of first appearance
func SourceIDs(entries []CapitalSourceHistoryEntry) []SourceID {
	seen := make(map[SourceID]bool)
	ids := make([]SourceID, 0)
	for _, entry := range SortEntries(entries) {
		if seen[entry.SourceID] {
			continue
		}
		seen[entry.SourceID] = true
		ids = append(ids, entry.SourceID)
	}
	return ids
}

// ActiveSources resolves every source ever seen in the ledger at asOf and keeps the active ones
func ActiveSources(entries []CapitalSourceHistoryEntry, asOf time.Time) []CapitalSource {
	active := make([]CapitalSource, 0)
	for _, id := range SourceIDs(entries) {
		if source, ok := Resolve(entries, id, asOf); ok {
			active = append(active, source)
		}
	}
	return active
}

// EntriesForSource returns the ordered history of a single lineage
func EntriesForSource(entries []CapitalSourceHistoryEntry, sourceID SourceID) []CapitalSourceHistoryEntry {
	out := make([]CapitalSourceHistoryEntry, 0)
	for _, entry := range SortEntries(entries) {
		if entry.SourceID == sourceID {
			out = append(out, entry)
		}
	}
	return out
}

// EntriesInRange returns the ordered entries with start <= EffectiveDate <= end
func EntriesInRange(entries []CapitalSourceHistoryEntry, start, end time.Time) []CapitalSourceHistoryEntry {
	out := make([]CapitalSourceHistoryEntry, 0)
	for _, entry := range SortEntries(entries) {
		if entry.EffectiveDate.Before(start) || entry.EffectiveDate.After(end) {
			continue
		}
		out = append(out, entry)
	}
	return out
}
