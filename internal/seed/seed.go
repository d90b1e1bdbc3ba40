// Package seed holds the demo dataset written on first start.
package seed

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/mealmitra/mealmitra-backend/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demoYAML []byte

type listingRecord struct {
	ID             string     `yaml:"id"`
	Kind           model.Kind `yaml:"kind"`
	Diet           model.Diet `yaml:"diet"`
	Category       string     `yaml:"category"`
	Items          string     `yaml:"items"`
	Quantity       int        `yaml:"quantity"`
	Location       string     `yaml:"location"`
	Address        string     `yaml:"address"`
	Lat            float64    `yaml:"lat"`
	Lng            float64    `yaml:"lng"`
	PickupWindow   string     `yaml:"pickupWindow"`
	Status         string     `yaml:"status"`
	DonorName      string     `yaml:"donorName"`
	VolunteerID    string     `yaml:"volunteerId"`
	VolunteerName  string     `yaml:"volunteerName"`
	CommunityPoint string     `yaml:"communityPoint"`
	CreatedAt      *time.Time `yaml:"createdAt"`
}

type feedbackRecord struct {
	ID        string    `yaml:"id"`
	ListingID string    `yaml:"listingId"`
	Rating    int       `yaml:"rating"`
	Comment   string    `yaml:"comment"`
	Timestamp time.Time `yaml:"timestamp"`
}

type document struct {
	Listings        []listingRecord        `yaml:"listings"`
	CommunityPoints []model.CommunityPoint `yaml:"communityPoints"`
	Volunteers      []model.Volunteer      `yaml:"volunteers"`
	Feedbacks       []feedbackRecord       `yaml:"feedbacks"`
}

type Dataset struct {
	Listings        []*model.Listing
	CommunityPoints []model.CommunityPoint
	Volunteers      []model.Volunteer
	Feedbacks       []model.Feedback
}

// Demo decodes the embedded dataset. Listings without a createdAt are
// stamped with now.
func Demo(now time.Time) (*Dataset, error) {
	return Parse(demoYAML, now)
}

func Parse(raw []byte, now time.Time) (*Dataset, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	ds := &Dataset{
		CommunityPoints: doc.CommunityPoints,
		Volunteers:      doc.Volunteers,
	}
	for _, rec := range doc.Listings {
		l, err := rec.toListing(now)
		if err != nil {
			return nil, err
		}
		ds.Listings = append(ds.Listings, l)
	}
	for _, f := range doc.Feedbacks {
		ds.Feedbacks = append(ds.Feedbacks, model.Feedback(f))
	}
	return ds, nil
}

func (r listingRecord) toListing(now time.Time) (*model.Listing, error) {
	created := now
	if r.CreatedAt != nil {
		created = *r.CreatedAt
	}
	l := &model.Listing{
		ID:             r.ID,
		Kind:           r.Kind,
		Items:          r.Items,
		Quantity:       r.Quantity,
		Location:       r.Location,
		Address:        r.Address,
		PickupWindow:   r.PickupWindow,
		DonorName:      r.DonorName,
		Status:         model.ListingStatus(r.Status),
		CommunityPoint: r.CommunityPoint,
		Images:         []string{},
		CreatedAt:      created,
	}
	if r.Lat != 0 || r.Lng != 0 {
		l.Coordinates = &model.Coordinates{Lat: r.Lat, Lng: r.Lng}
	}
	if r.VolunteerID != "" {
		l.AcceptedBy = &model.VolunteerRef{ID: r.VolunteerID, Name: r.VolunteerName}
		l.AcceptedAt = &created
	}
	if l.Status == model.ListingStatusPicked || l.Status == model.ListingStatusDelivered {
		l.PickedAt = &created
	}
	if l.Status == model.ListingStatusDelivered {
		l.DeliveredAt = &created
	}
	switch r.Kind {
	case model.KindFarm:
		l.Farm = &model.FarmDetails{Category: model.Category(r.Category)}
	default:
		l.Cooked = &model.CookedDetails{Diet: r.Diet}
	}
	if err := l.Check(); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return l, nil
}
