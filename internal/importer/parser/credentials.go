// Package parser turns the free-text files found in stealer logs into
// structured records: credential exports, software inventories, and system
// information dumps. Parsers never fail on malformed input; at worst a
// record misses the completeness gate and is dropped while still being
// tallied.
package parser

import "strings"

// field identifies which credential field a line sets.
type field int

const (
	fieldNone field = iota
	fieldURL
	fieldUsername
	fieldPassword
	fieldBrowser
)

// Recognized key prefixes, compared case-insensitively against the text
// before the first colon.
var fieldKeys = map[string]field{
	"url":         fieldURL,
	"host":        fieldURL,
	"hostname":    fieldURL,
	"username":    fieldUsername,
	"user":        fieldUsername,
	"login":       fieldUsername,
	"password":    fieldPassword,
	"pass":        fieldPassword,
	"browser":     fieldBrowser,
	"soft":        fieldBrowser,
	"application": fieldBrowser,
}

// DefaultBrowser is used when a record carries no browser/source label.
const DefaultBrowser = "Unknown"

// Candidate is one complete credential record.
type Candidate struct {
	URL      string
	Domain   string
	TLD      string
	Username string
	Password string
	Browser  string
}

// CredentialResult is the outcome of parsing one credential export file.
// PasswordCounts and the URL/domain tallies are computed from all matching
// lines, not only from lines belonging to complete records, so malformed
// records still contribute to statistics.
type CredentialResult struct {
	Credentials []Candidate
	// PasswordCounts tallies password values by frequency. Lines whose
	// password value is blank are deliberately untallied: an empty string
	// is an absent password, not a popular one.
	PasswordCounts map[string]int
	Domains        map[string]int
	URLCount       int
}

// DomainCount returns the number of distinct domains seen.
func (r *CredentialResult) DomainCount() int { return len(r.Domains) }

// record accumulates fields between blank-line separators.
type record struct {
	url         string
	username    string
	password    string
	passwordSet bool
	browser     string
}

func (rec *record) empty() bool {
	return rec.url == "" && rec.username == "" && !rec.passwordSet && rec.browser == ""
}

// complete applies the validity gate: URL, username, and password must all
// be present. An empty password string passes as long as the password key
// was explicitly present.
func (rec *record) complete() bool {
	return rec.url != "" && rec.username != "" && rec.passwordSet
}

// splitKeyValue returns the recognized field for a line plus the trimmed
// text after the first colon, or fieldNone for unrecognized lines.
func splitKeyValue(line string) (field, string) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return fieldNone, ""
	}
	key := strings.ToLower(strings.TrimSpace(line[:i]))
	f, ok := fieldKeys[key]
	if !ok {
		return fieldNone, ""
	}
	return f, strings.TrimSpace(line[i+1:])
}

// ParseCredentials parses one password-export file. Records are separated by
// one or more blank lines; within a record the last occurrence of a field
// wins.
func ParseCredentials(text string) *CredentialResult {
	result := &CredentialResult{
		PasswordCounts: make(map[string]int),
		Domains:        make(map[string]int),
	}

	current := &record{}
	flush := func() {
		if current.complete() {
			host := Host(current.url)
			domain, tld := SplitDomain(host)
			browser := current.browser
			if browser == "" {
				browser = DefaultBrowser
			}
			result.Credentials = append(result.Credentials, Candidate{
				URL:      current.url,
				Domain:   domain,
				TLD:      tld,
				Username: current.username,
				Password: current.password,
				Browser:  browser,
			})
		}
		current = &record{}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		f, value := splitKeyValue(line)
		switch f {
		case fieldURL:
			current.url = value
			// URL tally is independent of record completeness.
			if value != "" {
				result.URLCount++
				if domain, _ := SplitDomain(Host(value)); domain != "" {
					result.Domains[domain]++
				}
			}
		case fieldUsername:
			current.username = value
		case fieldPassword:
			current.password = value
			current.passwordSet = true
			// Password tally is case-preserving and independent of the
			// record gate; blank values are not counted.
			if value != "" {
				result.PasswordCounts[value]++
			}
		case fieldBrowser:
			current.browser = value
		}
	}
	flush()

	return result
}
