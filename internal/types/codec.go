package types

import (
	"encoding/json"
	"fmt"
)

// Keyed is implemented by schema types stored in a collection.
type Keyed interface {
	Key() string
}

// KeyedPtr is the pointer form of a schema type that can receive its id.
type KeyedPtr[T any] interface {
	*T
	Keyed
	SetKey(id string)
}

// Codec converts between documents and a schema type.
type Codec[T any] interface {
	Decode(doc Document) (T, error)
	Encode(value T) (Fields, error)
	ID(value T) string
}

// JSONCodec converts documents to T through their JSON form.
type JSONCodec[T any, P KeyedPtr[T]] struct{}

// Decode builds a T from doc and stamps it with the document id.
func (JSONCodec[T, P]) Decode(doc Document) (T, error) {
	var value T
	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return value, fmt.Errorf("marshal document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	P(&value).SetKey(doc.ID)
	return value, nil
}

// Encode returns the document fields for value. The id is not a field.
func (JSONCodec[T, P]) Encode(value T) (Fields, error) {
	return ToFields(value)
}

// ID returns value's document id.
func (JSONCodec[T, P]) ID(value T) string {
	return P(&value).Key()
}

// ToFields converts any JSON-encodable value into document fields.
func ToFields(value any) (Fields, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var fields Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("value is not an object: %w", err)
	}
	if fields == nil {
		fields = Fields{}
	}
	return fields, nil
}

// Codecs for the known collections.
var (
	MessageCodec     Codec[Message]     = JSONCodec[Message, *Message]{}
	TeamMemberCodec  Codec[TeamMember]  = JSONCodec[TeamMember, *TeamMember]{}
	EventCodec       Codec[Event]       = JSONCodec[Event, *Event]{}
	CompetitionCodec Codec[Competition] = JSONCodec[Competition, *Competition]{}
	AchievementCodec Codec[Achievement] = JSONCodec[Achievement, *Achievement]{}
	TripCodec        Codec[Trip]        = JSONCodec[Trip, *Trip]{}
	SlideCodec       Codec[Slide]       = JSONCodec[Slide, *Slide]{}
	MemberCodec      Codec[Member]      = JSONCodec[Member, *Member]{}
	ProfileCodec     Codec[UserProfile] = JSONCodec[UserProfile, *UserProfile]{}
	AccountCodec     Codec[Account]     = JSONCodec[Account, *Account]{}
)
