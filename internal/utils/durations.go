// Copyright 2025 James D Elliot
// Licensed under the Apache License, Version 2.0
// Originally from: https://github.com/authelia/authelia
// See APACHE-LICENSE.txt for full license text

package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Hour is an int based representation of the time unit.
	Hour = time.Minute * 60

	// Day is an int based representation of the time unit.
	Day = Hour * 24

	// Week is an int based representation of the time unit.
	Week = Day * 7

	// Year is an int based representation of the time unit.
	Year = Day * 365

	// Month is an int based representation of the time unit.
	Month = Year / 12
)

var (
	standardDurationUnits = []string{"ns", "us", "µs", "μs", "ms", "s", "m", "h"}

	reOnlyNumeric      = regexp.MustCompile(`^\d+$`)
	reDurationStandard = regexp.MustCompile(`(?P<Duration>[1-9]\d*?)(?P<Unit>[^\d\s]+)`)
)

// Duration unit types.
const (
	DurationUnitDays   = "d"
	DurationUnitWeeks  = "w"
	DurationUnitMonths = "M"
	DurationUnitYears  = "y"
)

// ParseDurationString parses a duration such as "90s", "1h30m" or "7d". Besides
// the units time.ParseDuration knows it accepts d, w, M and y. A bare number is
// a count of seconds.
func ParseDurationString(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, fmt.Errorf("could not parse an empty string as a duration")
	}

	if reOnlyNumeric.MatchString(input) {
		seconds, err := strconv.Atoi(input)
		if err != nil {
			return 0, fmt.Errorf("could not parse '%s' as a duration: %w", input, err)
		}

		return time.Second * time.Duration(seconds), nil
	}

	matches := reDurationStandard.FindAllStringSubmatch(input, -1)
	if len(matches) == 0 || len(strings.Join(flatten(matches), "")) != len(input) {
		return 0, fmt.Errorf("could not parse '%s' as a duration", input)
	}

	var duration time.Duration
	for _, match := range matches {
		amount, err := strconv.Atoi(match[1])
		if err != nil {
			return 0, fmt.Errorf("could not parse the numeric portion of '%s' in duration string '%s': %w", match[0], input, err)
		}

		switch unit := match[2]; unit {
		case DurationUnitYears:
			duration += time.Duration(amount) * Year
		case DurationUnitMonths:
			duration += time.Duration(amount) * Month
		case DurationUnitWeeks:
			duration += time.Duration(amount) * Week
		case DurationUnitDays:
			duration += time.Duration(amount) * Day
		default:
			if !IsStringInSlice(unit, standardDurationUnits) {
				return 0, fmt.Errorf("could not parse the units portion of '%s' in duration string '%s': the unit '%s' is not valid", match[0], input, unit)
			}

			d, err := time.ParseDuration(match[0])
			if err != nil {
				return 0, fmt.Errorf("could not parse '%s' in duration string '%s': %w", match[0], input, err)
			}

			duration += d
		}
	}

	return duration, nil
}

func flatten(matches [][]string) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[0])
	}
	return out
}
