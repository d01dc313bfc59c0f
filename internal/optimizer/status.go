package optimizer

import "time"

type VehicleState string

const (
	AwaitingDeparture VehicleState = "awaiting_departure"
	EnRoute           VehicleState = "en_route"
	Returning         VehicleState = "returning"
	AtHubDone         VehicleState = "at_hub_done"
)

type VehicleStatus struct {
	VehicleID int          `json:"vehicleID"`
	State     VehicleState `json:"state"`
	Delivered []int        `json:"delivered"`
	Remaining []int        `json:"remaining"`
	Mileage   float64      `json:"mileage"`
}

// VehicleStatusAt reports where an evaluated vehicle stands at now. Mileage
// while driving is estimated from speed and elapsed time.
func VehicleStatusAt(v *Vehicle, now time.Duration) VehicleStatus {
	st := VehicleStatus{
		VehicleID: v.ID,
		Delivered: []int{},
		Remaining: []int{},
	}

	for _, d := range v.DeliveryLog {
		if d.Time <= now {
			st.Delivered = append(st.Delivered, d.PackageID)
		} else {
			st.Remaining = append(st.Remaining, d.PackageID)
		}
	}

	driven := func() float64 {
		return min(v.Mileage, v.Speed*(now-v.DepartureTime).Hours())
	}

	switch {
	case len(v.Packages) == 0:
		st.State = AtHubDone
	case now < v.DepartureTime:
		st.State = AwaitingDeparture
	case len(st.Remaining) > 0:
		st.State = EnRoute
		st.Mileage = driven()
	case now < v.Time:
		st.State = Returning
		st.Mileage = driven()
	default:
		st.State = AtHubDone
		st.Mileage = v.Mileage
	}

	return st
}

func FleetStatusAt(g *Genome, now time.Duration) []VehicleStatus {
	out := make([]VehicleStatus, len(g.Vehicles))
	for i, v := range g.Vehicles {
		out[i] = VehicleStatusAt(v, now)
	}
	return out
}
