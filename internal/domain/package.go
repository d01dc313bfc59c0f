package domain

import (
	"fmt"
	"time"
)

type PackageStatus string

const (
	StatusUnavailable    PackageStatus = "unavailable"
	StatusAtHub          PackageStatus = "at_hub"
	StatusOutForDelivery PackageStatus = "out_for_delivery"
	StatusDelivered      PackageStatus = "delivered"
	StatusLateDelivered  PackageStatus = "late_delivered"
)

const (
	// EndOfDay is the deadline an "EOD" package carries.
	EndOfDay = 23*time.Hour + 59*time.Minute + 59*time.Second
	// DefaultAvailable is used when a package has no explicit availability.
	DefaultAvailable = 8 * time.Hour
)

// Package is one shipment. All times are offsets from midnight of the
// delivery day.
type Package struct {
	ID               int            `json:"id"`
	Address          int            `json:"address"` // index into the location matrix
	City             string         `json:"city"`
	Zip              string         `json:"zip"`
	Weight           float64        `json:"weight"`
	Note             string         `json:"note"`
	TimeDue          time.Duration  `json:"timeDue"`
	TimeAvailable    time.Duration  `json:"timeAvailable"`
	TimeDeparted     *time.Duration `json:"timeDeparted"`
	TimeDelivered    *time.Duration `json:"timeDelivered"`
	TruckRestriction []int          `json:"truckRestriction"` // empty means any vehicle
	Version          int32          `json:"-"`
}

// OnTime compares the recorded delivery time against the deadline, or t when
// the package has not been delivered yet.
func (p *Package) OnTime(t time.Duration) bool {
	if p.TimeDelivered != nil {
		return *p.TimeDelivered < p.TimeDue
	}
	return t < p.TimeDue
}

func (p *Package) StatusAt(now time.Duration) PackageStatus {
	switch {
	case now < p.TimeAvailable:
		return StatusUnavailable
	case p.TimeDeparted == nil || now < *p.TimeDeparted:
		return StatusAtHub
	case p.TimeDelivered == nil || now < *p.TimeDelivered:
		return StatusOutForDelivery
	case p.OnTime(now):
		return StatusDelivered
	default:
		return StatusLateDelivered
	}
}

// AllowedOn reports whether vehicleID may carry the package.
func (p *Package) AllowedOn(vehicleID int) bool {
	if len(p.TruckRestriction) == 0 {
		return true
	}
	for _, id := range p.TruckRestriction {
		if id == vehicleID {
			return true
		}
	}
	return false
}

func (p *Package) ResetDelivery() {
	p.TimeDeparted = nil
	p.TimeDelivered = nil
}

func (p *Package) Clone() *Package {
	c := *p
	if p.TimeDeparted != nil {
		d := *p.TimeDeparted
		c.TimeDeparted = &d
	}
	if p.TimeDelivered != nil {
		d := *p.TimeDelivered
		c.TimeDelivered = &d
	}
	c.TruckRestriction = append([]int(nil), p.TruckRestriction...)
	return &c
}

// FormatClock renders an offset from midnight as HH:MM:SS.
func FormatClock(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseClock parses HH:MM:SS or HH:MM into an offset from midnight. "EOD"
// yields EndOfDay.
func ParseClock(s string) (time.Duration, error) {
	if s == "EOD" {
		return EndOfDay, nil
	}

	for _, layout := range []string{"15:04:05", "15:04", "3:04 PM", "3:04:05 PM"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}

	return 0, fmt.Errorf("invalid time of day %q", s)
}
