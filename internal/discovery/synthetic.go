package discovery

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SyntheticPlacePrefix marks place ids produced by SyntheticProvider.
const SyntheticPlacePrefix = "synthetic_"

// syntheticTLD is reserved by RFC 2606 and never resolves.
const syntheticTLD = ".example"

var (
	syntheticPrefixes = []string{"Elite", "Premier", "Professional", "First Choice", "Quality", "Trusted", "Family", "Quick", "Affordable"}
	syntheticSuffixes = []string{"LLC", "Inc", "& Co", "Services", "Solutions", "Pros", "Express", "Plus"}
	syntheticStreets  = []string{"Main St", "Oak Ave", "First St", "Broadway", "Market St", "State Hwy", "Commerce Blvd"}
)

// SyntheticProvider generates plausible businesses without calling any
// external API. It exists for demos and local runs and must be enabled
// explicitly.
type SyntheticProvider struct {
	mu    sync.Mutex
	rng   *rand.Rand
	title cases.Caser
}

// NewSyntheticProvider creates a SyntheticProvider. A nil rng is replaced
// with a randomly seeded one.
func NewSyntheticProvider(rng *rand.Rand) *SyntheticProvider {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &SyntheticProvider{rng: rng, title: cases.Title(language.English)}
}

// Name implements Provider.
func (p *SyntheticProvider) Name() string { return "synthetic" }

// Search returns between 10 and 20 candidates, capped at maxResults.
func (p *SyntheticProvider) Search(ctx context.Context, query, location string, maxResults int) []Candidate {
	p.mu.Lock()
	defer p.mu.Unlock()

	city, state := splitLocation(location)
	n := min(maxResults, 10+p.rng.IntN(11))
	title := p.title.String(query)

	out := make([]Candidate, 0, max(n, 0))
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		name := fmt.Sprintf("%s %s %s", pick(p.rng, syntheticPrefixes), city, title)
		if p.rng.Float64() < 0.3 {
			name += " " + pick(p.rng, syntheticSuffixes)
		}

		zip := fmt.Sprintf("%05d", 10000+p.rng.IntN(90000))
		street := fmt.Sprintf("%d %s", 100+p.rng.IntN(9900), pick(p.rng, syntheticStreets))

		var website string
		if p.rng.Float64() < 0.6 {
			website = "https://www." + syntheticDomain(name) + syntheticTLD
		}

		out = append(out, Candidate{
			PlaceID:     fmt.Sprintf("%s%d_%08x", SyntheticPlacePrefix, i, p.rng.Uint32()),
			Name:        name,
			Address:     fmt.Sprintf("%s, %s, %s %s", street, city, state, zip),
			City:        city,
			State:       state,
			Zip:         zip,
			Phone:       fmt.Sprintf("(%d) %d-%04d", 200+p.rng.IntN(800), 200+p.rng.IntN(800), 1000+p.rng.IntN(9000)),
			Website:     website,
			MapsURL:     "https://maps.google.com/?q=" + strings.ReplaceAll(name, " ", "+"),
			Rating:      round(3.2+p.rng.Float64()*1.6, 1),
			ReviewCount: 5 + p.rng.IntN(146),
			Category:    query,
			Types:       []string{strings.ReplaceAll(query, " ", "_"), "establishment"},
			Latitude:    round(30+p.rng.Float64()*15, 6),
			Longitude:   round(-120+p.rng.Float64()*50, 6),
		})
	}

	zap.L().Info("synthetic: generated candidates",
		zap.String("query", query), zap.String("location", location), zap.Int("count", len(out)))
	return out
}

// syntheticDomain lower-cases name, drops spaces, spells out "&", and
// keeps the first 15 characters.
func syntheticDomain(name string) string {
	d := strings.ReplaceAll(strings.ToLower(name), " ", "")
	d = strings.ReplaceAll(d, "&", "and")
	if r := []rune(d); len(r) > 15 {
		return string(r[:15])
	}
	return d
}

func pick(rng *rand.Rand, from []string) string {
	return from[rng.IntN(len(from))]
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
