package parser

import (
	"encoding/json"
	"strings"
)

// SystemDetails is the parsed content of a system-information dump.
type SystemDetails struct {
	OS           string
	ComputerName string
	Username     string
	IP           string
	Country      string
	HWID         string
	RAM          string
	CPU          string
	Antivirus    string
	Extra        map[string]string
}

// Known key aliases, lower-cased. Stealer families disagree on naming.
var sysinfoKeys = map[string]func(*SystemDetails, string){
	"os":               func(d *SystemDetails, v string) { d.OS = v },
	"os version":       func(d *SystemDetails, v string) { d.OS = v },
	"operating system": func(d *SystemDetails, v string) { d.OS = v },
	"computer name":    func(d *SystemDetails, v string) { d.ComputerName = v },
	"computer":         func(d *SystemDetails, v string) { d.ComputerName = v },
	"hostname":         func(d *SystemDetails, v string) { d.ComputerName = v },
	"machine name":     func(d *SystemDetails, v string) { d.ComputerName = v },
	"user name":        func(d *SystemDetails, v string) { d.Username = v },
	"username":         func(d *SystemDetails, v string) { d.Username = v },
	"user":             func(d *SystemDetails, v string) { d.Username = v },
	"ip":               func(d *SystemDetails, v string) { d.IP = v },
	"ip address":       func(d *SystemDetails, v string) { d.IP = v },
	"lanip":            func(d *SystemDetails, v string) { d.IP = v },
	"country":          func(d *SystemDetails, v string) { d.Country = v },
	"hwid":             func(d *SystemDetails, v string) { d.HWID = v },
	"machine id":       func(d *SystemDetails, v string) { d.HWID = v },
	"ram":              func(d *SystemDetails, v string) { d.RAM = v },
	"cpu":              func(d *SystemDetails, v string) { d.CPU = v },
	"cpu name":         func(d *SystemDetails, v string) { d.CPU = v },
	"antivirus":        func(d *SystemDetails, v string) { d.Antivirus = v },
	"av":               func(d *SystemDetails, v string) { d.Antivirus = v },
}

// ParseSystemInfo parses "Key: Value" lines into SystemDetails. The first
// occurrence of a known key wins; unknown keys are preserved in Extra.
func ParseSystemInfo(text string) *SystemDetails {
	details := &SystemDetails{Extra: make(map[string]string)}
	set := make(map[string]struct{})

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line == "" {
			continue
		}
		i := strings.IndexByte(line, ':')
		if i <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:i]))
		value := strings.TrimSpace(line[i+1:])
		if value == "" {
			continue
		}

		if apply, ok := sysinfoKeys[key]; ok {
			if _, done := set[key]; !done {
				apply(details, value)
				set[key] = struct{}{}
			}
			continue
		}
		if _, done := details.Extra[key]; !done && len(details.Extra) < 64 {
			details.Extra[key] = value
		}
	}
	return details
}

// ExtraJSON serializes the unknown-key map for persistence. An empty map
// serializes to an empty string.
func (d *SystemDetails) ExtraJSON() string {
	if len(d.Extra) == 0 {
		return ""
	}
	data, err := json.Marshal(d.Extra)
	if err != nil {
		return ""
	}
	return string(data)
}
