package board

import (
	"sort"
	"strings"

	"github.com/retroboardhq/retroboard/pkg/metrics"
)

// groupPalette is the fixed set of color tokens handed out to group
// signatures. Colors freed by retired signatures are reused before a new one
// is drawn.
var groupPalette = []string{
	"#66c2a5", "#fc8d62", "#8da0cb", "#e78ac3",
	"#a6d854", "#ffd92f", "#e5c494", "#b3b3b3",
	"#1b9e77", "#d95f02", "#7570b3", "#e7298a",
}

type groupingPayload struct {
	ItemGroups      map[string]string `json:"itemGroups"`
	SignatureColors map[string]string `json:"signatureColors"`
	UserID          string            `json:"userId"`
	Timestamp       int64             `json:"timestamp"`
	Version         int64             `json:"version"`
}

type labelPayload struct {
	GroupID string `json:"groupId"`
	Label   string `json:"label"`
	UserID  string `json:"userId"`
}

// GroupSignature builds the deterministic signature for a set of member item
// ids: the sorted, pipe-joined, unabbreviated id list.
func GroupSignature(itemIDs []string) string {
	sorted := make([]string, len(itemIDs))
	copy(sorted, itemIDs)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// UpdateGrouping submits a recomputed grouping. The update wins only when its
// timestamp is strictly newer than the stored one, or equal with a strictly
// newer version; losers are dropped without any observable effect, and the
// submitting client is expected to recompute from the next accepted
// broadcast.
func (s *Service) UpdateGrouping(sessionID, userID string, groups, colors map[string]string, timestamp, version int64) Outcome {
	outcome := Rejected

	s.locks.RunExclusive(sessionID, func() {
		state := s.store.GetOrCreate(sessionID)

		accepted, ts, ver := state.ApplyGrouping(groups, colors, timestamp, version, s.nowMillis())
		if !accepted {
			metrics.RejectedUpdates.WithLabelValues("stale_grouping").Inc()
			return
		}

		outcome = Applied
		appliedGroups, appliedColors := state.Grouping()
		s.broadcast(sessionID, EventGroupingUpdate, groupingPayload{
			ItemGroups:      appliedGroups,
			SignatureColors: appliedColors,
			UserID:          userID,
			Timestamp:       ts,
			Version:         ver,
		})
	})

	return outcome
}

// RelayLabel announces a group label change. Labels are persisted by the
// caller before this relay runs, so there is no session-level copy and no
// lock to take.
func (s *Service) RelayLabel(sessionID, userID, groupID, label string) {
	s.broadcast(sessionID, EventLabelUpdate, labelPayload{
		GroupID: groupID,
		Label:   label,
		UserID:  userID,
	})
}

// reconcileColors prunes colors whose signature no longer appears in the
// grouping and assigns an unused palette color to any live signature that
// lacks one. Caller-submitted colors win for live signatures.
func reconcileColors(groups map[string]string, submitted map[string]string) map[string]string {
	live := make(map[string]struct{}, len(groups))
	for _, signature := range groups {
		live[signature] = struct{}{}
	}

	colors := make(map[string]string, len(live))
	used := make(map[string]struct{}, len(live))
	for signature := range live {
		if color, ok := submitted[signature]; ok && color != "" {
			colors[signature] = color
			used[color] = struct{}{}
		}
	}

	// Deterministic assignment order for the uncolored signatures.
	missing := make([]string, 0, len(live))
	for signature := range live {
		if _, ok := colors[signature]; !ok {
			missing = append(missing, signature)
		}
	}
	sort.Strings(missing)

	next := 0
	for _, signature := range missing {
		color := ""
		for ; next < len(groupPalette); next++ {
			if _, taken := used[groupPalette[next]]; !taken {
				color = groupPalette[next]
				next++
				break
			}
		}
		if color == "" {
			// Palette exhausted; fall back to the first token.
			color = groupPalette[0]
		}
		colors[signature] = color
		used[color] = struct{}{}
	}

	return colors
}
