package models

import "errors"

type SegmentType string

const (
	SegmentOne   SegmentType = "one"
	SegmentMany  SegmentType = "many"
	SegmentQuery SegmentType = "query"
)

var (
	ErrInvalidSegment = errors.New("invalid segment")
)

// Segment declares which recipients a dispatch run targets: a single id, an
// explicit id list, or an attribute query.
type Segment struct {
	Type  SegmentType    `json:"type"`
	UID   string         `json:"uid,omitempty"`
	UIDs  []string       `json:"uids,omitempty"`
	Query *RecipientQuery `json:"query,omitempty"`
}

// RecipientQuery filters are applied conjunctively. Nil pointers mean the
// filter is not applied.
type RecipientQuery struct {
	Active     *bool  `json:"activo,omitempty"`
	Subscribed *bool  `json:"suscrito,omitempty"`
	Province   string `json:"provincia,omitempty"`
	City       string `json:"localidad,omitempty"`
}

func (s Segment) Validate() error {
	switch s.Type {
	case SegmentOne:
		if s.UID == "" {
			return errors.New("segment: uid is required")
		}
	case SegmentMany:
		if len(s.UIDs) == 0 {
			return errors.New("segment: uids is required")
		}
	case SegmentQuery:
		if s.Query == nil {
			return errors.New("segment: query is required")
		}
	default:
		return ErrInvalidSegment
	}
	return nil
}
