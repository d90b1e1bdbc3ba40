package model

import "time"

// CommunityPoint is a delivery destination such as an NGO kitchen.
type CommunityPoint struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Address     string  `json:"address" yaml:"address"`
	Lat         float64 `json:"lat" yaml:"lat"`
	Lng         float64 `json:"lng" yaml:"lng"`
	MealsServed int     `json:"mealsServed" yaml:"mealsServed"`
}

type Volunteer struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Location string  `json:"location" yaml:"location"`
	Lat      float64 `json:"lat" yaml:"lat"`
	Lng      float64 `json:"lng" yaml:"lng"`
	Status   string  `json:"status" yaml:"status"`
}

type Feedback struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listingId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Timestamp time.Time `json:"timestamp"`
}
