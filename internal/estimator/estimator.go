// Package estimator guesses donation quantities from an uploaded photo's
// file name and size.
package estimator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/mealmitra/mealmitra-backend/internal/model"
)

// Descriptor is the opaque image handed over by the capture collaborator.
type Descriptor struct {
	Name    string
	Size    int64
	Content []byte
}

func (d Descriptor) sizeMB() float64 {
	size := d.Size
	if size == 0 {
		size = int64(len(d.Content))
	}
	return float64(size) / (1024 * 1024)
}

type Result struct {
	Kind      model.Kind `json:"kind"`
	Quantity  int        `json:"estimatedQuantity"`
	Secondary *int       `json:"secondaryEstimate,omitempty"`
	// Confidence is a percentage.
	Confidence int      `json:"confidence"`
	Labels     []string `json:"detectedLabels"`
	Rule       string   `json:"rule"`
	Message    string   `json:"message"`
}

// ToModel converts the result into the form stored on a listing.
func (r Result) ToModel() *model.Estimate {
	e := &model.Estimate{
		Quantity:   r.Quantity,
		Confidence: r.Confidence,
		Labels:     append([]string(nil), r.Labels...),
	}
	if r.Secondary != nil {
		v := *r.Secondary
		e.Secondary = &v
	}
	return e
}

type rule struct {
	name       string
	keywords   []string
	min, max   int // inclusive
	mealsPerKg int
	confidence int
	labels     []string
}

func (r rule) matches(name string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

var farmRules = []rule{
	{name: "tomato", keywords: []string{"tomato"}, min: 10, max: 29, mealsPerKg: 4, confidence: 88,
		labels: []string{"Tomatoes", "Fresh Vegetables", "Farm Produce"}},
	{name: "potato", keywords: []string{"potato"}, min: 15, max: 39, mealsPerKg: 5, confidence: 85,
		labels: []string{"Potatoes", "Root Vegetables", "Farm Produce"}},
	{name: "onion", keywords: []string{"onion"}, min: 8, max: 22, mealsPerKg: 6, confidence: 82,
		labels: []string{"Onions", "Bulb Vegetables", "Farm Produce"}},
	{name: "vegetable", keywords: []string{"vegetable", "veg", "produce"}, min: 20, max: 49, mealsPerKg: 4, confidence: 80,
		labels: []string{"Mixed Vegetables", "Fresh Produce", "Farm Harvest"}},
}

var cookedRules = []rule{
	{name: "rice", keywords: []string{"biryani", "rice", "curry"}, min: 10, max: 29, confidence: 85,
		labels: []string{"Biryani", "Rice", "Curry", "Vegetables"}},
	{name: "sandwich", keywords: []string{"sandwich", "bread"}, min: 5, max: 19, confidence: 78,
		labels: []string{"Sandwiches", "Bread", "Fillings"}},
	{name: "pizza", keywords: []string{"pizza", "pasta"}, min: 4, max: 11, confidence: 82,
		labels: []string{"Pizza", "Pasta", "Italian Food"}},
}

// Fallback constants for names no keyword rule recognises.
const (
	FarmFloor        = 5
	FarmKgPerMB      = 25
	FarmMealsPerKg   = 4
	CookedFloor      = 5
	CookedMealsPerMB = 15

	farmConfidenceMin, farmConfidenceMax     = 65, 89
	cookedConfidenceMin, cookedConfidenceMax = 60, 89
)

var (
	farmFallbackLabels   = []string{"Fresh Farm Produce", "Vegetables", "Agricultural Goods"}
	cookedFallbackLabels = []string{"Prepared Food", "Multiple Servings"}
)

// Analyze applies the keyword rules for kind to d, drawing the simulated
// uncertainty from rng. Unknown kinds are analysed as cooked food.
func Analyze(d Descriptor, kind model.Kind, rng *rand.Rand) Result {
	name := strings.ToLower(d.Name)
	if kind == model.KindFarm {
		return analyzeFarm(name, d.sizeMB(), rng)
	}
	return analyzeCooked(name, d.sizeMB(), rng)
}

func analyzeFarm(name string, mb float64, rng *rand.Rand) Result {
	res := Result{Kind: model.KindFarm, Rule: "fallback"}
	perKg := FarmMealsPerKg
	matched := false
	for _, r := range farmRules {
		if name != "" && r.matches(name) {
			res.Quantity = between(rng, r.min, r.max)
			res.Confidence = r.confidence
			res.Labels = append([]string(nil), r.labels...)
			res.Rule = r.name
			perKg = r.mealsPerKg
			matched = true
			break
		}
	}
	if !matched {
		res.Quantity = max(FarmFloor, int(mb*FarmKgPerMB))
		res.Confidence = between(rng, farmConfidenceMin, farmConfidenceMax)
		res.Labels = append([]string(nil), farmFallbackLabels...)
	}
	meals := res.Quantity * perKg
	res.Secondary = &meals
	res.Message = fmt.Sprintf("AI estimates ~%d kgs (%d meals)", res.Quantity, meals)
	return res
}

func analyzeCooked(name string, mb float64, rng *rand.Rand) Result {
	res := Result{Kind: model.KindCooked, Rule: "fallback"}
	for _, r := range cookedRules {
		if name != "" && r.matches(name) {
			res.Quantity = between(rng, r.min, r.max)
			res.Confidence = r.confidence
			res.Labels = append([]string(nil), r.labels...)
			res.Rule = r.name
			res.Message = fmt.Sprintf("AI estimates ~%d meals", res.Quantity)
			return res
		}
	}
	res.Quantity = max(CookedFloor, int(mb*CookedMealsPerMB))
	res.Confidence = between(rng, cookedConfidenceMin, cookedConfidenceMax)
	res.Labels = append([]string(nil), cookedFallbackLabels...)
	res.Message = fmt.Sprintf("AI estimates ~%d meals", res.Quantity)
	return res
}

func between(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}

// Estimator serialises access to its random source and simulates the
// analysis latency of a real model.
type Estimator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	delay  time.Duration
	record func(kind model.Kind, rule string)
}

type Option func(*Estimator)

func WithDelay(d time.Duration) Option {
	return func(e *Estimator) { e.delay = d }
}

// WithRecorder registers a callback invoked for every finished estimate.
func WithRecorder(fn func(kind model.Kind, rule string)) Option {
	return func(e *Estimator) { e.record = fn }
}

func New(rng *rand.Rand, opts ...Option) *Estimator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e := &Estimator{rng: rng, delay: 1500 * time.Millisecond}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate returns ctx.Err() when the draft is discarded before the
// simulated analysis finishes.
func (e *Estimator) Estimate(ctx context.Context, d Descriptor, kind model.Kind) (Result, error) {
	if e.delay > 0 {
		timer := time.NewTimer(e.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	res := Analyze(d, kind, e.rng)
	e.mu.Unlock()

	if e.record != nil {
		e.record(res.Kind, res.Rule)
	}
	return res, nil
}
