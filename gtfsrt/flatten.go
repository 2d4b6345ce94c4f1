package gtfsrt

import (
	"fmt"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// RawRecord is one flattened entity row keyed by provider path. Values are
// string, int64, uint64, float64 or bool.
type RawRecord map[string]any

// DecodeFeed parses a FeedMessage and flattens every entity.
func DecodeFeed(payload []byte) ([]RawRecord, error) {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(payload, &fm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyFeed, err)
	}
	var out []RawRecord
	for _, e := range fm.GetEntity() {
		out = append(out, flattenMessage(e.ProtoReflect(), "", RawRecord{})...)
	}
	return out, nil
}

// flattenMessage walks populated fields in declaration order. Nested messages
// extend the path; repeated messages fan the rows out, one per element.
func flattenMessage(m protoreflect.Message, prefix string, base RawRecord) []RawRecord {
	rows := []RawRecord{base.clone()}
	type listField struct {
		path string
		list protoreflect.List
	}
	var lists []listField

	fields := m.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if !m.Has(fd) {
			continue
		}
		path := joinPath(prefix, fd.JSONName())
		v := m.Get(fd)
		switch {
		case fd.IsMap():
			continue
		case fd.IsList():
			if fd.Kind() == protoreflect.MessageKind || fd.Kind() == protoreflect.GroupKind {
				lists = append(lists, listField{path: path, list: v.List()})
			}
		case fd.Kind() == protoreflect.MessageKind || fd.Kind() == protoreflect.GroupKind:
			var next []RawRecord
			for _, r := range rows {
				next = append(next, flattenMessage(v.Message(), path, r)...)
			}
			rows = next
		default:
			for _, r := range rows {
				r[path] = scalar(fd, v)
			}
		}
	}

	for _, lf := range lists {
		if lf.list.Len() == 0 {
			continue
		}
		var next []RawRecord
		for _, r := range rows {
			for j := 0; j < lf.list.Len(); j++ {
				next = append(next, flattenMessage(lf.list.Get(j).Message(), lf.path, r)...)
			}
		}
		rows = next
	}
	return rows
}

func scalar(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return int64(v.Enum())
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return v.Int()
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return v.Uint()
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return v.Float()
	case protoreflect.BoolKind:
		return v.Bool()
	case protoreflect.BytesKind:
		return string(v.Bytes())
	default:
		return v.String()
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

func (r RawRecord) clone() RawRecord {
	out := make(RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
