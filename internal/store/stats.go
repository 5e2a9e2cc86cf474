package store

import (
	"time"

	"cardstudio-backend/internal/models"
)

// Stats returns a copy of the global stats snapshot.
func (s *ProjectStore) Stats() models.GlobalStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// SetStats replaces the snapshot, used at startup hydration.
func (s *ProjectStore) SetStats(stats models.GlobalStats) {
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

// RecordActivity applies the streak rule and bumps counters for one study
// event: same-day activity keeps the streak, a gap of exactly one day
// extends it, anything older restarts at 1. cardCount > 0 credits generated
// cards; zero still counts as one unit of activity.
func (s *ProjectStore) RecordActivity(cardCount int, now time.Time) models.GlobalStats {
	today := now.Format("2006-01-02")
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")

	s.mu.Lock()
	if s.stats.LastStudyDate != today {
		if s.stats.LastStudyDate == yesterday {
			s.stats.StreakDays++
		} else {
			s.stats.StreakDays = 1
		}
	}
	s.stats.LastStudyDate = today
	s.stats.TotalCards += cardCount

	if s.stats.Activity == nil {
		s.stats.Activity = make(map[string]int)
	}
	increment := cardCount
	if increment <= 0 {
		increment = 1
	}
	s.stats.Activity[today] += increment

	out := s.stats
	s.mu.Unlock()

	s.notifyStats()
	return out
}

// RecordNewFile counts a document opened for the first time.
func (s *ProjectStore) RecordNewFile() {
	s.mu.Lock()
	s.stats.TotalFiles++
	s.mu.Unlock()
	s.notifyStats()
}

// AddStudyTime accumulates study-timer seconds.
func (s *ProjectStore) AddStudyTime(seconds int) {
	if seconds <= 0 {
		return
	}
	s.mu.Lock()
	s.stats.StudySeconds += seconds
	s.mu.Unlock()
	s.notifyStats()
}

// ResetStats zeroes every counter. The only operation allowed to decrement.
func (s *ProjectStore) ResetStats() models.GlobalStats {
	s.mu.Lock()
	s.stats = models.GlobalStats{StreakDays: 1, Activity: map[string]int{}}
	out := s.stats
	s.mu.Unlock()

	s.notifyStats()
	return out
}
