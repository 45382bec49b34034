// Package pointset defines the location sets players are quizzed on and the
// stores that persist them.
//
// A [PointSet] is an author-owned, named collection of [LocationPoint] values
// placed either on a world map or on an uploaded image. Games load a set
// read-only; editing happens through a [Store].
package pointset

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// MapMode selects the coordinate space of a set.
type MapMode string

const (
	// ModeWorld places points by geographic latitude and longitude.
	ModeWorld MapMode = "world"
	// ModeImage places points in the pixel space of an uploaded image.
	ModeImage MapMode = "image"
)

// IsValid reports whether m is a known map mode.
func (m MapMode) IsValid() bool {
	return m == ModeWorld || m == ModeImage
}

// HighlightZoom is the zoom level used when a single target is highlighted
// in voice mode.
func (m MapMode) HighlightZoom() int {
	if m == ModeImage {
		return 1
	}
	return 4
}

// LocationPoint is a named place on a map. Points are values: two points
// denote the same place when their coordinates are equal.
type LocationPoint struct {
	Name string  `json:"name" yaml:"name"`
	Lat  float64 `json:"lat" yaml:"lat"`
	Lng  float64 `json:"lng" yaml:"lng"`
}

// SameAs reports whether p and other sit at exactly the same coordinates.
// Names are ignored.
func (p LocationPoint) SameAs(other LocationPoint) bool {
	return p.Lat == other.Lat && p.Lng == other.Lng
}

// String renders the point for logs.
func (p LocationPoint) String() string {
	return fmt.Sprintf("%s (%.5f, %.5f)", p.Name, p.Lat, p.Lng)
}

// PointSet is an author-owned collection of quiz locations.
type PointSet struct {
	ID         string          `json:"id" yaml:"id"`
	Name       string          `json:"name" yaml:"name"`
	Mode       MapMode         `json:"mode" yaml:"mode"`
	ImageURL   string          `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Points     []LocationPoint `json:"points" yaml:"points"`
	OwnerID    string          `json:"owner_id" yaml:"owner_id"`
	OwnerEmail string          `json:"owner_email,omitempty" yaml:"owner_email,omitempty"`
	CreatedAt  time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt  time.Time       `json:"updated_at" yaml:"-"`
}

// Names returns the place names of every point, in set order.
func (s *PointSet) Names() []string {
	names := make([]string, 0, len(s.Points))
	for _, p := range s.Points {
		names = append(names, p.Name)
	}
	return names
}

// Validate checks the set for the fields every store and game relies on.
// All problems are reported together.
func (s *PointSet) Validate() error {
	var errs []error

	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if !s.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("mode %q must be %q or %q", s.Mode, ModeWorld, ModeImage))
	}
	if s.Mode == ModeImage && s.ImageURL == "" {
		errs = append(errs, errors.New("image_url is required for image maps"))
	}
	for i, p := range s.Points {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("points[%d]: name must not be empty", i))
		}
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
			errs = append(errs, fmt.Errorf("points[%d]: coordinates must be finite", i))
			continue
		}
		if s.Mode == ModeWorld && (p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180) {
			errs = append(errs, fmt.Errorf("points[%d]: (%g, %g) is outside the world map", i, p.Lat, p.Lng))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
