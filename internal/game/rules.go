package game

// ValidateTurnEnd reports why participantID may not end a turn in s, or the
// empty Rejection when it may.
func ValidateTurnEnd(s *State, participantID string) Rejection {
	if s.GameOver {
		return RejectGameOver
	}
	if participantID == "" || participantID != s.CurrentTurn {
		return RejectNotYourTurn
	}
	return ""
}

// ValidateStatus refuses turn actions unless the game is being played.
func ValidateStatus(s Status) Rejection {
	switch s {
	case StatusPlaying:
		return ""
	case StatusFinished:
		return RejectGameOver
	default:
		return RejectNotStarted
	}
}
