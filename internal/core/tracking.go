package core

import (
	"fmt"
	"time"
)

// TrackingType distinguishes tracked insertions from tracked deletions.
type TrackingType string

const (
	TrackingInsert TrackingType = "insert"
	TrackingDelete TrackingType = "delete"
	trackingNone   TrackingType = "none"
)

// timestampFormat matches the millisecond ISO-8601 form used in stored records.
const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// TrackingDirective is attached to retain and insert operations. It is either
// a *TrackingProps, which marks text as tracked, or ClearTrackingProps, which
// removes tracking from retained text.
type TrackingDirective interface {
	toRaw() *RawTracking
	equal(other TrackingDirective) bool
}

// RawTracking is the storage form of a tracking directive.
type RawTracking struct {
	Type   TrackingType `json:"type"`
	UserID string       `json:"userId,omitempty"`
	Ts     string       `json:"ts,omitempty"`
}

// TrackingProps describes who tracked a change and when.
type TrackingProps struct {
	Type   TrackingType
	UserID string
	Ts     time.Time
}

// NewTrackingProps creates tracking metadata.
func NewTrackingProps(typ TrackingType, userID string, ts time.Time) *TrackingProps {
	return &TrackingProps{Type: typ, UserID: userID, Ts: ts.UTC()}
}

func (p *TrackingProps) toRaw() *RawTracking {
	return &RawTracking{Type: p.Type, UserID: p.UserID, Ts: formatTimestamp(p.Ts)}
}

// ToRaw encodes the props for storage.
func (p *TrackingProps) ToRaw() RawTracking { return *p.toRaw() }

func (p *TrackingProps) equal(other TrackingDirective) bool {
	o, ok := other.(*TrackingProps)
	return ok && p.Type == o.Type && p.UserID == o.UserID && p.Ts.Equal(o.Ts)
}

// ClearTrackingProps removes tracking from the text it is applied to.
type ClearTrackingProps struct{}

func (ClearTrackingProps) toRaw() *RawTracking { return &RawTracking{Type: trackingNone} }

func (ClearTrackingProps) equal(other TrackingDirective) bool {
	_, ok := other.(ClearTrackingProps)
	return ok
}

// TrackingPropsFromRaw decodes tracking props, rejecting the clear directive.
func TrackingPropsFromRaw(raw RawTracking) (*TrackingProps, error) {
	if raw.Type != TrackingInsert && raw.Type != TrackingDelete {
		return nil, fmt.Errorf("invalid tracking type %q", raw.Type)
	}
	ts, err := parseTimestamp(raw.Ts)
	if err != nil {
		return nil, fmt.Errorf("invalid tracking timestamp: %w", err)
	}
	return &TrackingProps{Type: raw.Type, UserID: raw.UserID, Ts: ts}, nil
}

func trackingDirectiveFromRaw(raw *RawTracking) (TrackingDirective, error) {
	if raw == nil {
		return nil, nil
	}
	if raw.Type == trackingNone {
		return ClearTrackingProps{}, nil
	}
	tp, err := TrackingPropsFromRaw(*raw)
	if err != nil {
		return nil, err
	}
	return tp, nil
}

func trackingEqual(a, b TrackingDirective) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.equal(b)
}

func rawTracking(t TrackingDirective) *RawTracking {
	if t == nil {
		return nil
	}
	return t.toRaw()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
