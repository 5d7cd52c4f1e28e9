// Package session maps the display names Side A shows to the stable
// session ids used for dedup queues and reply routing.
package session

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Entry is one monitored Side A session
type Entry struct {
	ID          string
	DisplayName string
}

// Directory resolves display names to session ids. It is read-only after
// construction and safe for concurrent use.
type Directory struct {
	byName map[string]string
	byID   map[string]string
	suffix *regexp.Regexp
}

// NewDirectory builds a directory from the monitored sessions. suffixPattern
// matches the unread marker some clients append to a session's display name
// (for example "3条新消息"); an empty pattern disables stripping.
func NewDirectory(entries []Entry, suffixPattern string) (*Directory, error) {
	d := &Directory{
		byName: make(map[string]string, len(entries)),
		byID:   make(map[string]string, len(entries)),
	}
	if suffixPattern != "" {
		re, err := regexp.Compile(suffixPattern)
		if err != nil {
			return nil, fmt.Errorf("compile unread suffix pattern %q: %w", suffixPattern, err)
		}
		d.suffix = re
	}

	for _, e := range entries {
		id := strings.TrimSpace(e.ID)
		name := strings.TrimSpace(e.DisplayName)
		if id == "" || name == "" {
			return nil, fmt.Errorf("session entry needs both id and display name, got %q/%q", e.ID, e.DisplayName)
		}
		if _, dup := d.byID[id]; dup {
			return nil, fmt.Errorf("duplicate session id %q", id)
		}
		if other, dup := d.byName[name]; dup {
			return nil, fmt.Errorf("display name %q used by sessions %q and %q", name, other, id)
		}
		d.byName[name] = id
		d.byID[id] = name
	}
	return d, nil
}

// Resolve returns the session id for a display name as shown by Side A
func (d *Directory) Resolve(displayName string) (string, bool) {
	id, ok := d.byName[d.Clean(displayName)]
	return id, ok
}

// DisplayName returns the configured display name of a session
func (d *Directory) DisplayName(sessionID string) (string, bool) {
	name, ok := d.byID[sessionID]
	return name, ok
}

// Clean strips the unread marker and surrounding whitespace
func (d *Directory) Clean(displayName string) string {
	name := strings.TrimSpace(displayName)
	if d.suffix != nil {
		name = strings.TrimSpace(d.suffix.ReplaceAllString(name, ""))
	}
	return name
}

// IDs returns the monitored session ids in sorted order
func (d *Directory) IDs() []string {
	ids := make([]string, 0, len(d.byID))
	for id := range d.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of monitored sessions
func (d *Directory) Len() int {
	return len(d.byID)
}
