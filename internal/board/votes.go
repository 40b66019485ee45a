package board

import "github.com/retroboardhq/retroboard/pkg/metrics"

// VoteBudget is the fixed number of votes each participant may allocate
// across groups before submission.
const VoteBudget = 3

type votePayload struct {
	UserID   string                 `json:"userId"`
	Votes    map[int]int            `json:"votes"`
	AllVotes map[string]map[int]int `json:"allVotes"`
}

type voteSubmissionPayload struct {
	Tallies map[int]int `json:"tallies"`
	UserID  string      `json:"userId"`
}

// UpdateVotes replaces a user's in-flight vote allocation wholesale. The row
// is rejected when any count is negative or the total leaves [0, VoteBudget].
// The broadcast carries the user's row plus the full table so observers can
// render aggregate tallies without a follow-up fetch. Distinct users write
// distinct rows, so this path skips the session lock.
func (s *Service) UpdateVotes(sessionID, userID string, votes map[int]int) Outcome {
	total := 0
	for _, count := range votes {
		if count < 0 {
			metrics.RejectedUpdates.WithLabelValues("vote_budget").Inc()
			return Rejected
		}
		total += count
	}
	if total > VoteBudget {
		metrics.RejectedUpdates.WithLabelValues("vote_budget").Inc()
		return Rejected
	}

	state := s.store.GetOrCreate(sessionID)
	all := state.ReplaceUserVotes(userID, votes)

	s.broadcast(sessionID, EventVoteUpdate, votePayload{
		UserID:   userID,
		Votes:    copyVoteRow(votes),
		AllVotes: all,
	})
	return Applied
}

// RelaySubmittedVotes announces the finalized per-group tallies. Persistence
// of the tallies is the caller's responsibility before invoking this relay;
// no session state changes here.
func (s *Service) RelaySubmittedVotes(sessionID, userID string, tallies map[int]int) {
	s.broadcast(sessionID, EventVoteSubmission, voteSubmissionPayload{
		Tallies: copyVoteRow(tallies),
		UserID:  userID,
	})
}
