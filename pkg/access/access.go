// Package access classifies OSM ways into vehicle access flags and
// speed limits, per the highway-tag defaults table.
package access

import (
	"strconv"
	"strings"

	"github.com/paulmach/osm"
)

// Flags is a bitset of vehicle classes permitted on an edge.
type Flags uint8

const (
	Car Flags = 1 << iota
	Bike
	Walk
)

// Has reports whether f contains all bits of other.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

// String renders the flag set for logging, e.g. "CAR|BIKE".
func (f Flags) String() string {
	var parts []string
	if f&Car != 0 {
		parts = append(parts, "CAR")
	}
	if f&Bike != 0 {
		parts = append(parts, "BIKE")
	}
	if f&Walk != 0 {
		parts = append(parts, "WALK")
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// highwayDefault is the baseline speed (km/h) and access mask for a
// highway tag value, before maxspeed/motorroad/bicycle/foot overrides.
type highwayDefault struct {
	speedKMH float64
	access   Flags
}

// defaults reproduces the highway classification table, sourced from
// the original parser's init_filter_lists plus the spec's own table.
var defaults = map[string]highwayDefault{
	"primary":        {130.0, Car},
	"trunk":          {120.0, Car},
	"motorway":       {100.0, Car},
	"secondary":      {100.0, Car | Bike | Walk},
	"tertiary":       {80.0, Car | Bike | Walk},
	"unclassified":   {50.0, Car | Bike | Walk},
	"residential":    {30.0, Car | Bike | Walk},
	"service":        {5.0, Car | Bike | Walk},
	"motorway_link":  {80.0, Car},
	"trunk_link":     {80.0, Car},
	"primary_link":   {80.0, Car},
	"secondary_link": {80.0, Car | Bike | Walk},
	"tertiary_link":  {80.0, Car | Bike | Walk},
	"living_street":  {5.0, Car | Bike | Walk},
	"pedestrian":     {5.0, Walk},
	"track":          {10.0, Car | Bike | Walk},
	"bus_guide_way":  {5.0, Car | Bike | Walk},
	"raceway":        {300.0, Car},
	"road":           {5.0, Car | Bike | Walk},
	"footway":        {5.0, Bike | Walk},
	"bridleway":      {5.0, Car | Bike | Walk},
	"steps":          {5.0, Walk},
	"path":           {5.0, Bike | Walk},
	"cycleway":       {5.0, Bike},
	"bus_stop":       {5.0, Car | Bike | Walk},
	"platform":       {5.0, Walk},
}

const kmhToMPS = 1.0 / 3.6

// Classify derives the access mask, speed (m/s), and travel directions
// for a way from its tags. ok is false if the way carries no routable
// highway tag, or every access mode is denied by tag overrides, or the
// oneway value is "reversible" (time-dependent, no static direction).
func Classify(tags osm.Tags) (flags Flags, speedMPS float64, forward, backward bool, ok bool) {
	hw := tags.Find("highway")
	def, known := defaults[hw]
	if !known {
		return 0, 0, false, false, false
	}

	flags = def.access

	if tags.Find("motorroad") == "yes" {
		flags &^= Bike | Walk
	}
	if tags.Find("bicycle") == "no" {
		flags &^= Bike
	}
	if tags.Find("foot") == "no" {
		flags &^= Walk
	}
	if access := tags.Find("access"); access == "no" || access == "private" {
		return 0, 0, false, false, false
	}
	if tags.Find("motor_vehicle") == "no" {
		flags &^= Car
	}
	if flags == 0 {
		return 0, 0, false, false, false
	}

	speedKMH := parseMaxSpeed(tags.Find("maxspeed"), def.speedKMH)
	speedMPS = speedKMH * kmhToMPS

	forward, backward, ok = classifyDirection(hw, tags)
	if !ok {
		return 0, 0, false, false, false
	}

	return flags, speedMPS, forward, backward, true
}

// parseMaxSpeed parses an OSM maxspeed tag value ("50", "30 mph"),
// falling back to def (km/h) if absent or unparseable.
func parseMaxSpeed(raw string, def float64) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}

	fields := strings.Fields(raw)
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return def
	}

	if len(fields) > 1 && strings.EqualFold(fields[1], "mph") {
		value *= 1.6
	}
	return value
}

// classifyDirection returns the travel directions for a way, and ok=false
// for the "reversible" (time-dependent) oneway value, which yields no
// static edge at all.
func classifyDirection(highway string, tags osm.Tags) (forward, backward, ok bool) {
	// Motorways, motorway links, and roundabouts are one-way by construction;
	// an explicit oneway tag (even "no") can't override that, so this
	// returns before ever looking at the oneway tag.
	if highway == "motorway" || highway == "motorway_link" || tags.Find("junction") == "roundabout" {
		return true, false, true
	}

	forward, backward = true, true

	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward, backward = true, false
	case "-1", "reverse":
		forward, backward = false, true
	case "no":
		forward, backward = true, true
	case "reversible":
		return false, false, false
	}

	return forward, backward, true
}
