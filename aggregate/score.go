package aggregate

const maxScore = 100

// assess fills in the score and the three feedback lists from the same
// thresholds.
func assess(s *Summary, empty bool) {
	s.Feedback = []string{}
	s.CriticalIssues = []string{}
	s.Recommendations = []string{}

	if empty {
		s.CriticalIssues = append(s.CriticalIssues, "No movement detected")
	}

	if s.AvgIntensity > 1.0 {
		s.Score += 30
		s.Feedback = append(s.Feedback, "Good overall movement intensity")
	} else if !empty {
		s.Recommendations = append(s.Recommendations, "Increase your movement intensity")
	}

	if s.MaxIntensity > 1.5 {
		s.Score += 25
		s.Feedback = append(s.Feedback, "Strong peak effort")
	} else if !empty {
		s.Recommendations = append(s.Recommendations, "Add a few explosive efforts")
	}

	if s.Samples > 60 {
		s.Score += 20
		s.Feedback = append(s.Feedback, "Consistent motion tracking")
	} else {
		s.Recommendations = append(s.Recommendations, "Keep the device on you for steady tracking")
	}

	if s.PoseSamples > 15 {
		s.Score += 25
		s.Feedback = append(s.Feedback, "Body position tracked well")
	} else {
		s.CriticalIssues = append(s.CriticalIssues, "Limited pose tracking, step into the camera view")
	}

	if s.Score > maxScore {
		s.Score = maxScore
	}
}
