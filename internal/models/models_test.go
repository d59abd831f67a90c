package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinates(t *testing.T) {
	c, err := ParseCoordinates(" 52.52, 13.405 ")
	require.NoError(t, err)
	assert.Equal(t, 52.52, c.Lat)
	assert.Equal(t, 13.405, c.Lon)
	assert.Equal(t, "52.52,13.405", c.String())

	c, err = ParseCoordinates("")
	require.NoError(t, err)
	assert.Nil(t, c)

	for _, bad := range []string{"52.5", "a,b", "91,0", "0,181", "1,2,3"} {
		_, err := ParseCoordinates(bad)
		assert.Error(t, err, bad)
	}
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	in := time.Date(2025, 6, 1, 1, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), Day(in))
}

func TestCoordinatesStringNil(t *testing.T) {
	var c *Coordinates
	assert.Equal(t, "", c.String())
}

func TestTemplateRoundTrip(t *testing.T) {
	event := Event{
		Name:         "TrackDay",
		Date:         time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Time:         "09:00",
		LocationName: "Ring",
		Coordinates:  &Coordinates{Lat: 50.3356, Lon: 6.9475},
		MinLevel:     "beginner",
		Published:    true,
	}

	tpl := TemplateFrom("ring-morning", event)
	assert.Equal(t, "ring-morning", tpl.Name)
	assert.Equal(t, "09:00", tpl.Time)

	next := tpl.Event("TrackDay 2", time.Date(2025, 7, 1, 18, 0, 0, 0, time.UTC))
	assert.Equal(t, "TrackDay 2", next.Name)
	assert.Equal(t, "2025-07-01", next.DateString())
	assert.Equal(t, "Ring", next.LocationName)
	assert.Equal(t, event.Coordinates, next.Coordinates)
	assert.Equal(t, "beginner", next.MinLevel)
	assert.False(t, next.Published)
}
