package server

import (
	"context"
	"fmt"
	"net/url"

	"github.com/monsters-club/lounge/internal/cms"
	"github.com/monsters-club/lounge/internal/docstore"
	"github.com/monsters-club/lounge/internal/live"
	"github.com/monsters-club/lounge/internal/types"
)

// badFilterError is a query parameter the collection cannot apply.
type badFilterError struct {
	param string
	value string
}

func (e *badFilterError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.param, e.value)
}

// publicCollection is one collection served under /api/{collection}.
type publicCollection interface {
	Status() live.Status
	Err() error
	Items(params url.Values) ([]types.Fields, error)
	Close() error
}

type boundCollection[T any] struct {
	binding *live.Binding[T]
	codec   types.Codec[T]
	filter  func([]T, url.Values) ([]T, error)
}

func bindCollection[T any](ctx context.Context, store docstore.Store, kind cms.Kind[T], filter func([]T, url.Values) ([]T, error), opts ...live.Option) (publicCollection, error) {
	binding, err := live.Open(ctx, store, kind.Query(), kind.Codec, opts...)
	if err != nil {
		return nil, err
	}
	return &boundCollection[T]{binding: binding, codec: kind.Codec, filter: filter}, nil
}

func (c *boundCollection[T]) Status() live.Status { return c.binding.Status() }
func (c *boundCollection[T]) Err() error          { return c.binding.Err() }
func (c *boundCollection[T]) Close() error        { return c.binding.Close() }

func (c *boundCollection[T]) Items(params url.Values) ([]types.Fields, error) {
	items := c.binding.List()
	if c.filter != nil {
		var err error
		if items, err = c.filter(items, params); err != nil {
			return nil, err
		}
	}
	out := make([]types.Fields, 0, len(items))
	for _, item := range items {
		fields, err := c.codec.Encode(item)
		if err != nil {
			return nil, err
		}
		fields["id"] = c.codec.ID(item)
		out = append(out, fields)
	}
	return out, nil
}

func filterEvents(events []types.Event, params url.Values) ([]types.Event, error) {
	status := types.EventStatus(params.Get("status"))
	switch status {
	case "":
		return events, nil
	case types.EventUpcoming, types.EventPast:
		return cms.ByStatus(events, status), nil
	default:
		return nil, &badFilterError{param: "status", value: string(status)}
	}
}

func filterMembers(members []types.Member, params url.Values) ([]types.Member, error) {
	committee := types.Committee(params.Get("committee"))
	if committee == "" {
		return members, nil
	}
	if !committee.Valid() {
		return nil, &badFilterError{param: "committee", value: string(committee)}
	}
	return cms.ByCommittee(members, committee), nil
}

// openCollections binds every public content collection.
func openCollections(ctx context.Context, store docstore.Store, opts ...live.Option) (map[string]publicCollection, error) {
	collections := map[string]publicCollection{}
	closeAll := func() {
		for _, c := range collections {
			_ = c.Close()
		}
	}
	add := func(name string, c publicCollection, err error) error {
		if err != nil {
			closeAll()
			return fmt.Errorf("bind %s: %w", name, err)
		}
		collections[name] = c
		return nil
	}

	c, err := bindCollection(ctx, store, cms.Team, nil, opts...)
	if err := add(cms.Team.Collection, c, err); err != nil {
		return nil, err
	}
	c, err = bindCollection(ctx, store, cms.Events, filterEvents, opts...)
	if err := add(cms.Events.Collection, c, err); err != nil {
		return nil, err
	}
	c, err = bindCollection(ctx, store, cms.Competitions, nil, opts...)
	if err := add(cms.Competitions.Collection, c, err); err != nil {
		return nil, err
	}
	c, err = bindCollection(ctx, store, cms.Achievements, nil, opts...)
	if err := add(cms.Achievements.Collection, c, err); err != nil {
		return nil, err
	}
	c, err = bindCollection(ctx, store, cms.Trips, nil, opts...)
	if err := add(cms.Trips.Collection, c, err); err != nil {
		return nil, err
	}
	c, err = bindCollection(ctx, store, cms.Carousel, nil, opts...)
	if err := add(cms.Carousel.Collection, c, err); err != nil {
		return nil, err
	}
	c, err = bindCollection(ctx, store, cms.Members, filterMembers, opts...)
	if err := add(cms.Members.Collection, c, err); err != nil {
		return nil, err
	}
	return collections, nil
}
