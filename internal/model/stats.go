package model

import (
	"sort"
	"time"
)

const (
	AchievementFirstDelivery = "First Delivery"
	AchievementMealsHero     = "10 Meals Hero"
)

type Badges struct {
	Deliveries    int     `json:"deliveries"`
	Meals         int     `json:"meals"`
	Communities   int     `json:"communities"`
	RatingAverage float64 `json:"ratingAverage"`
}

// Ledger is one volunteer's gamification record.
type Ledger struct {
	VolunteerID  string               `json:"volunteerId"`
	Name         string               `json:"name"`
	Points       int                  `json:"points"`
	Accepted     int                  `json:"accepted"`
	Picked       int                  `json:"picked"`
	Badges       Badges               `json:"badges"`
	Achievements map[string]time.Time `json:"achievements"`
	Communities  []string             `json:"communities,omitempty"`
}

func NewLedger(ref VolunteerRef) *Ledger {
	return &Ledger{
		VolunteerID:  ref.ID,
		Name:         ref.Name,
		Achievements: map[string]time.Time{},
	}
}

func (l *Ledger) Unlocked(name string) bool {
	_, ok := l.Achievements[name]
	return ok
}

// AchievementNames lists unlocked achievements in unlock order.
func (l *Ledger) AchievementNames() []string {
	names := make([]string, 0, len(l.Achievements))
	for n := range l.Achievements {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		ti, tj := l.Achievements[names[i]], l.Achievements[names[j]]
		if ti.Equal(tj) {
			return names[i] < names[j]
		}
		return ti.Before(tj)
	})
	return names
}

func (l *Ledger) Clone() *Ledger {
	c := *l
	c.Achievements = make(map[string]time.Time, len(l.Achievements))
	for k, v := range l.Achievements {
		c.Achievements[k] = v
	}
	c.Communities = append([]string(nil), l.Communities...)
	return &c
}

// Stats is the persisted counter set.
type Stats struct {
	MealsSaved         int                `json:"mealsSaved"`
	FarmProduceSavedKg int                `json:"farmProduceSavedKg"`
	ActivePosts        int                `json:"activePosts"`
	Deliveries         int                `json:"deliveries"`
	MealsDelivered     int                `json:"mealsDelivered"`
	TotalPosts         int                `json:"totalPosts"`
	Rating             float64            `json:"rating"`
	Ledgers            map[string]*Ledger `json:"ledgers"`
}

func (s *Stats) Clone() *Stats {
	c := *s
	c.Ledgers = make(map[string]*Ledger, len(s.Ledgers))
	for k, v := range s.Ledgers {
		c.Ledgers[k] = v.Clone()
	}
	return &c
}

// StatsSnapshot adds the read-time figures shown on the impact dashboard.
type StatsSnapshot struct {
	Stats
	SuccessRate int `json:"successRate"`
}
