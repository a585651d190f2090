// Copyright 2025 Ying-Yu Ho. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package topo parses the plaintext topology format and builds the
// device graph and flows it describes. All configuration errors are
// reported before the simulation starts.
package topo

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// LinkSpec is one parsed link line. Units follow the file format:
// Mbps, milliseconds, kilobytes.
type LinkSpec struct {
	ID       string
	A, B     string
	RateMbps float64
	DelayMs  float64
	BufferKB float64
}

// FlowSpec is one parsed flow line.
type FlowSpec struct {
	ID      string
	Src     string
	Dest    string
	DataMB  float64
	StartS  float64
}

// Topology is the parsed form of the input file: five sections
// separated by a line whose first character is '-'. The selector
// section, when present, is forwarded verbatim into the log header.
type Topology struct {
	Hosts   []string
	Routers []string
	Links   []LinkSpec
	Flows   []FlowSpec
	Header  []string
}

// Parse reads the whole topology from r. It validates field counts and
// numeric syntax; reference checking happens in Build.
func Parse(r io.Reader) (*Topology, error) {
	t := &Topology{}
	section := 0
	lineNo := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line[0] == '-' {
			section++
			if section > 4 {
				return nil, fmt.Errorf("line %d: too many section separators", lineNo)
			}
			continue
		}
		fields := strings.Fields(line)
		switch section {
		case 0:
			if len(fields) != 1 {
				return nil, fmt.Errorf("line %d: host line wants 1 field, got %d", lineNo, len(fields))
			}
			t.Hosts = append(t.Hosts, fields[0])
		case 1:
			if len(fields) != 1 {
				return nil, fmt.Errorf("line %d: router line wants 1 field, got %d", lineNo, len(fields))
			}
			t.Routers = append(t.Routers, fields[0])
		case 2:
			l, err := parseLink(fields)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			t.Links = append(t.Links, l)
		case 3:
			f, err := parseFlow(fields)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			t.Flows = append(t.Flows, f)
		case 4:
			t.Header = append(t.Header, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading topology: %w", err)
	}
	if section < 3 {
		return nil, fmt.Errorf("topology truncated: found %d of 4 section separators", section)
	}
	return t, nil
}

func parseLink(fields []string) (LinkSpec, error) {
	if len(fields) != 6 {
		return LinkSpec{}, fmt.Errorf("link line wants 6 fields, got %d", len(fields))
	}
	rate, err := parsePositive(fields[3], "rate")
	if err != nil {
		return LinkSpec{}, err
	}
	delay, err := parseNonNegative(fields[4], "delay")
	if err != nil {
		return LinkSpec{}, err
	}
	buf, err := parsePositive(fields[5], "buffer")
	if err != nil {
		return LinkSpec{}, err
	}
	return LinkSpec{
		ID:       fields[0],
		A:        fields[1],
		B:        fields[2],
		RateMbps: rate,
		DelayMs:  delay,
		BufferKB: buf,
	}, nil
}

func parseFlow(fields []string) (FlowSpec, error) {
	if len(fields) != 5 {
		return FlowSpec{}, fmt.Errorf("flow line wants 5 fields, got %d", len(fields))
	}
	data, err := parsePositive(fields[3], "data")
	if err != nil {
		return FlowSpec{}, err
	}
	start, err := parseNonNegative(fields[4], "start")
	if err != nil {
		return FlowSpec{}, err
	}
	return FlowSpec{
		ID:     fields[0],
		Src:    fields[1],
		Dest:   fields[2],
		DataMB: data,
		StartS: start,
	}, nil
}

func parsePositive(s, what string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("bad %s %q", what, s)
	}
	return v, nil
}

func parseNonNegative(s, what string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("bad %s %q", what, s)
	}
	return v, nil
}
