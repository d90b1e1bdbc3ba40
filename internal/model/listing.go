package model

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindCooked Kind = "cooked"
	KindFarm   Kind = "farm"
)

func (k Kind) Valid() bool {
	return k == KindCooked || k == KindFarm
}

// Unit is the quantity unit for the kind.
func (k Kind) Unit() string {
	if k == KindFarm {
		return "kgs"
	}
	return "meals"
}

type ListingStatus string

const (
	ListingStatusAvailable ListingStatus = "available"
	ListingStatusAccepted  ListingStatus = "accepted"
	ListingStatusPicked    ListingStatus = "picked"
	ListingStatusDelivered ListingStatus = "delivered"
)

func (s ListingStatus) Valid() bool {
	switch s {
	case ListingStatusAvailable, ListingStatusAccepted, ListingStatusPicked, ListingStatusDelivered:
		return true
	}
	return false
}

// Active reports whether the listing still needs a volunteer to finish it.
func (s ListingStatus) Active() bool {
	return s == ListingStatusAvailable || s == ListingStatusAccepted || s == ListingStatusPicked
}

type Category string

const (
	CategoryVegetables Category = "vegetables"
	CategoryFruits     Category = "fruits"
	CategoryGrains     Category = "grains"
	CategoryOther      Category = "other"
)

type Diet string

const (
	DietVeg    Diet = "veg"
	DietNonVeg Diet = "non-veg"
)

const (
	MaxImages = 5
	// MealsPerKg converts farm produce to meals when no estimate was attached.
	MealsPerKg = 4
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// VolunteerRef identifies the volunteer holding a claim.
type VolunteerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Estimate is the estimator output kept on a listing for display.
type Estimate struct {
	Quantity   int      `json:"quantity"`
	Secondary  *int     `json:"secondary,omitempty"`
	Confidence int      `json:"confidence"`
	Labels     []string `json:"labels"`
}

type CookedDetails struct {
	Diet Diet `json:"diet,omitempty"`
}

type FarmDetails struct {
	Category       Category `json:"category"`
	EstimatedMeals *int     `json:"estimatedMeals,omitempty"`
}

// Listing is one donation. Kind selects which of Cooked or Farm is set.
type Listing struct {
	ID             string        `json:"id"`
	Kind           Kind          `json:"kind"`
	Items          string        `json:"items"`
	Quantity       int           `json:"quantity"`
	Estimate       *Estimate     `json:"estimate,omitempty"`
	Location       string        `json:"location"`
	Address        string        `json:"address,omitempty"`
	Coordinates    *Coordinates  `json:"coordinates,omitempty"`
	PickupWindow   string        `json:"pickupWindow"`
	DonorName      string        `json:"donorName"`
	DonorID        string        `json:"donorId,omitempty"`
	Status         ListingStatus `json:"status"`
	AcceptedBy     *VolunteerRef `json:"acceptedBy,omitempty"`
	CommunityPoint string        `json:"communityPoint,omitempty"`
	Images         []string      `json:"images"`
	CreatedAt      time.Time     `json:"createdAt"`
	AcceptedAt     *time.Time    `json:"acceptedAt,omitempty"`
	PickedAt       *time.Time    `json:"pickedAt,omitempty"`
	DeliveredAt    *time.Time    `json:"deliveredAt,omitempty"`

	Cooked *CookedDetails `json:"cooked,omitempty"`
	Farm   *FarmDetails   `json:"farm,omitempty"`
}

// MealEquivalent is the number of meals the listing represents.
func (l *Listing) MealEquivalent() int {
	if l.Kind != KindFarm {
		return l.Quantity
	}
	if l.Farm != nil && l.Farm.EstimatedMeals != nil {
		return *l.Farm.EstimatedMeals
	}
	return l.Quantity * MealsPerKg
}

// Check verifies the structural invariants of a stored listing.
func (l *Listing) Check() error {
	if l.ID == "" {
		return fmt.Errorf("listing: empty id")
	}
	if !l.Kind.Valid() {
		return fmt.Errorf("listing %s: unknown kind %q", l.ID, l.Kind)
	}
	if !l.Status.Valid() {
		return fmt.Errorf("listing %s: unknown status %q", l.ID, l.Status)
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("listing %s: quantity must be positive", l.ID)
	}
	if len(l.Images) > MaxImages {
		return fmt.Errorf("listing %s: %d images exceeds %d", l.ID, len(l.Images), MaxImages)
	}
	if l.Status == ListingStatusAvailable && l.AcceptedBy != nil {
		return fmt.Errorf("listing %s: available listing has a claim", l.ID)
	}
	if l.Status != ListingStatusAvailable && l.AcceptedBy == nil {
		return fmt.Errorf("listing %s: %s listing has no claim", l.ID, l.Status)
	}
	switch l.Kind {
	case KindCooked:
		if l.Farm != nil {
			return fmt.Errorf("listing %s: cooked listing carries farm details", l.ID)
		}
	case KindFarm:
		if l.Farm == nil || l.Cooked != nil {
			return fmt.Errorf("listing %s: farm listing needs farm details only", l.ID)
		}
	}
	return nil
}

// Clone returns a copy that shares no mutable state with l.
func (l *Listing) Clone() *Listing {
	c := *l
	if l.Estimate != nil {
		e := *l.Estimate
		e.Labels = append([]string(nil), l.Estimate.Labels...)
		if l.Estimate.Secondary != nil {
			v := *l.Estimate.Secondary
			e.Secondary = &v
		}
		c.Estimate = &e
	}
	if l.Coordinates != nil {
		v := *l.Coordinates
		c.Coordinates = &v
	}
	if l.AcceptedBy != nil {
		v := *l.AcceptedBy
		c.AcceptedBy = &v
	}
	c.Images = append([]string{}, l.Images...)
	c.AcceptedAt = cloneTime(l.AcceptedAt)
	c.PickedAt = cloneTime(l.PickedAt)
	c.DeliveredAt = cloneTime(l.DeliveredAt)
	if l.Cooked != nil {
		v := *l.Cooked
		c.Cooked = &v
	}
	if l.Farm != nil {
		v := *l.Farm
		if l.Farm.EstimatedMeals != nil {
			m := *l.Farm.EstimatedMeals
			v.EstimatedMeals = &m
		}
		c.Farm = &v
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
