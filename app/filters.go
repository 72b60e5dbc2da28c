// PTRA: Patient Trajectory Analysis Library
// Copyright (c) 2022 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/ptra/blob/master/LICENSE.txt>.

package app

import (
	"fmt"
	"strings"
	"time"

	"mortality/etl"
)

func valuedEventFilter() etl.EventFilter {
	return func(e etl.Event, _ time.Time) bool {
		return e.HasValue
	}
}

// GetEventFilters parses a comma separated list of event filter names: diag, drug and lab restrict the event
// classes (several classes are or-ed), valued drops events without a value, and id keeps everything.
func GetEventFilters(f string) ([]etl.EventFilter, error) {
	var prefixes []string
	result := []etl.EventFilter{}
	for _, name := range strings.Split(f, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "", "id":
		case "diag":
			prefixes = append(prefixes, "DIAG")
		case "drug":
			prefixes = append(prefixes, "DRUG")
		case "lab":
			prefixes = append(prefixes, "LAB")
		case "valued":
			result = append(result, valuedEventFilter())
		default:
			return nil, fmt.Errorf("unknown event filter %q", name)
		}
	}
	if len(prefixes) > 0 {
		result = append(result, etl.PrefixFilter(prefixes...))
	}
	return result, nil
}
