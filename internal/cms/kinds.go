package cms

import (
	"fmt"
	"strings"

	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/types"
)

// ValidationError rejects a record field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Kind describes one content collection.
type Kind[T any] struct {
	Collection string
	Codec      types.Codec[T]
	Validate   func(T) error
}

// Query returns the projection that lists the whole collection.
func (k Kind[T]) Query() docstore.Query {
	return docstore.Collection(k.Collection)
}

var (
	Team = Kind[types.TeamMember]{
		Collection: "team",
		Codec:      types.TeamMemberCodec,
		Validate: func(m types.TeamMember) error {
			return firstErr(required("name", m.Name), required("position", m.Position))
		},
	}

	Events = Kind[types.Event]{
		Collection: "events",
		Codec:      types.EventCodec,
		Validate: func(e types.Event) error {
			if err := firstErr(required("title", e.Title), required("date", e.Date)); err != nil {
				return err
			}
			if e.Status != types.EventUpcoming && e.Status != types.EventPast {
				return &ValidationError{Field: "status", Reason: "must be upcoming or past"}
			}
			return nil
		},
	}

	Competitions = Kind[types.Competition]{
		Collection: "competitions",
		Codec:      types.CompetitionCodec,
		Validate: func(c types.Competition) error {
			return firstErr(required("title", c.Title), required("description", c.Description))
		},
	}

	Achievements = Kind[types.Achievement]{
		Collection: "achievements",
		Codec:      types.AchievementCodec,
		Validate: func(a types.Achievement) error {
			return firstErr(required("title", a.Title), required("description", a.Description))
		},
	}

	Trips = Kind[types.Trip]{
		Collection: "trips",
		Codec:      types.TripCodec,
		Validate: func(t types.Trip) error {
			return firstErr(
				required("title", t.Title),
				required("date", t.Date),
				required("location", t.Location),
				required("description", t.Description),
			)
		},
	}

	Carousel = Kind[types.Slide]{
		Collection: "carousel",
		Codec:      types.SlideCodec,
		Validate: func(s types.Slide) error {
			return required("image", s.Image)
		},
	}

	Members = Kind[types.Member]{
		Collection: "members",
		Codec:      types.MemberCodec,
		Validate: func(m types.Member) error {
			if err := required("name", m.Name); err != nil {
				return err
			}
			if !m.Committee.Valid() {
				return &ValidationError{Field: "committee", Reason: fmt.Sprintf("unknown committee %q", m.Committee)}
			}
			return nil
		},
	}
)

// Collections lists the public content collections in display order.
var Collections = []string{
	Team.Collection,
	Events.Collection,
	Competitions.Collection,
	Achievements.Collection,
	Trips.Collection,
	Carousel.Collection,
	Members.Collection,
}

// ByCommittee keeps the members of committee c.
func ByCommittee(members []types.Member, c types.Committee) []types.Member {
	out := make([]types.Member, 0, len(members))
	for _, m := range members {
		if m.Committee == c {
			out = append(out, m)
		}
	}
	return out
}

// ByStatus keeps the events with status.
func ByStatus(events []types.Event, status types.EventStatus) []types.Event {
	out := make([]types.Event, 0, len(events))
	for _, e := range events {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

// AddImage appends url to the trip gallery. Blank urls are ignored.
func AddImage(trip types.Trip, url string) types.Trip {
	url = strings.TrimSpace(url)
	if url == "" {
		return trip
	}
	images := make([]string, 0, len(trip.Images)+1)
	images = append(images, trip.Images...)
	trip.Images = append(images, url)
	return trip
}

// RemoveImage drops the gallery image at index.
func RemoveImage(trip types.Trip, index int) (types.Trip, error) {
	if index < 0 || index >= len(trip.Images) {
		return trip, &ValidationError{Field: "images", Reason: fmt.Sprintf("no image at index %d", index)}
	}
	images := make([]string, 0, len(trip.Images)-1)
	images = append(images, trip.Images[:index]...)
	trip.Images = append(images, trip.Images[index+1:]...)
	return trip, nil
}
