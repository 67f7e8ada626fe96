package main

import "sort"

// RankedEntry is one row of a computed leaderboard. Ranks are 1-based and
// contiguous; tied scores keep their join order and still receive distinct
// consecutive ranks.
type RankedEntry struct {
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`

	connID      string
	gapToLeader int
}

// rankParticipants computes the leaderboard for the given participants,
// sorted by score descending. The sort is stable, so equal scores are
// ordered by position in the input (which the room keeps in join order).
// An empty input yields an empty leaderboard.
func rankParticipants(participants []*Participant) []RankedEntry {
	entries := make([]RankedEntry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, RankedEntry{
			Nickname: p.Nickname,
			Score:    p.Score,
			connID:   p.ConnID,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	if len(entries) == 0 {
		return entries
	}

	leader := entries[0].Score
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].gapToLeader = leader - entries[i].Score
	}

	return entries
}

// topEntries returns up to n leading entries without copying the backing data.
func topEntries(entries []RankedEntry, n int) []RankedEntry {
	if len(entries) < n {
		n = len(entries)
	}
	return entries[:n]
}
