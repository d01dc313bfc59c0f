package utils

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
)

var streetNames = []string{
	"Main St", "Oak Ave", "Maple Dr", "Cedar Ln", "Pine St",
	"Elm St", "Lakeview Rd", "Hillcrest Ave", "River Rd", "Sunset Blvd",
}

var notes = []string{
	"Can only be on truck %d",
	"Delayed on flight, will not arrive until %s",
	"Must be delivered with %d",
}

// GenerateRandomDataset places locations on a 20x20 mile grid and scatters
// packages over them. Location 0 is the hub.
func GenerateRandomDataset(rng *rand.Rand, packageCount, locationCount, truckCount int) *domain.Dataset {
	locationCount = max(locationCount, 2)

	xs := make([]float64, locationCount)
	ys := make([]float64, locationCount)
	locations := make([]domain.Location, locationCount)
	for i := range locations {
		xs[i], ys[i] = rng.Float64()*20, rng.Float64()*20
		locations[i] = domain.Location{
			Index:  i,
			Name:   fmt.Sprintf("Stop %d", i),
			Street: fmt.Sprintf("%d %s", 100+rng.Intn(9900), streetNames[rng.Intn(len(streetNames))]),
		}
	}
	locations[0].Name = "Hub"

	distances := make([][]float64, locationCount)
	for i := range distances {
		distances[i] = make([]float64, locationCount)
	}
	for i := range locationCount {
		for j := i + 1; j < locationCount; j++ {
			d := math.Round(math.Hypot(xs[i]-xs[j], ys[i]-ys[j])*10) / 10
			distances[i][j] = d
			distances[j][i] = d
		}
	}

	packages := make([]*domain.Package, packageCount)
	for i := range packages {
		p := &domain.Package{
			ID:            i + 1,
			Address:       1 + rng.Intn(locationCount-1),
			City:          "Salt Lake City",
			Zip:           fmt.Sprintf("841%02d", rng.Intn(100)),
			Weight:        float64(1 + rng.Intn(80)),
			TimeDue:       domain.EndOfDay,
			TimeAvailable: domain.DefaultAvailable,
		}

		// roughly a third carry a deadline, a few arrive late or are restricted
		if rng.Intn(3) == 0 {
			p.TimeDue = 9*time.Hour + time.Duration(rng.Intn(17))*30*time.Minute
		}
		switch rng.Intn(10) {
		case 0:
			p.TimeAvailable = 9*time.Hour + 5*time.Minute
			p.Note = fmt.Sprintf(notes[1], domain.FormatClock(p.TimeAvailable))
			if p.TimeDue < p.TimeAvailable+time.Hour {
				p.TimeDue = domain.EndOfDay
			}
		case 1:
			if truckCount > 0 {
				truck := 1 + rng.Intn(truckCount)
				p.TruckRestriction = []int{truck}
				p.Note = fmt.Sprintf(notes[0], truck)
			}
		case 2:
			if i > 0 {
				p.Note = fmt.Sprintf(notes[2], 1+rng.Intn(i))
			}
		}

		packages[i] = p
	}

	return &domain.Dataset{
		Locations: locations,
		Distances: distances,
		Packages:  packages,
	}
}
