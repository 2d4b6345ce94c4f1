package gtfsrt

import (
	"testing"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

type stopUpdate struct {
	seq      uint32
	stopID   string
	arrDelay int32
	arrTime  int64
	depDelay int32
}

func tripUpdateEntity(id, tripID, vehicleID string, ts uint64, stops ...stopUpdate) *gtfsrtpb.FeedEntity {
	tu := &gtfsrtpb.TripUpdate{
		Trip: &gtfsrtpb.TripDescriptor{
			TripId:               proto.String(tripID),
			RouteId:              proto.String("R-" + tripID),
			StartDate:            proto.String("20240115"),
			DirectionId:          proto.Uint32(1),
			ScheduleRelationship: gtfsrtpb.TripDescriptor_SCHEDULED.Enum(),
		},
		Timestamp: proto.Uint64(ts),
	}
	if vehicleID != "" {
		tu.Vehicle = &gtfsrtpb.VehicleDescriptor{Id: proto.String(vehicleID)}
	}
	for _, s := range stops {
		tu.StopTimeUpdate = append(tu.StopTimeUpdate, &gtfsrtpb.TripUpdate_StopTimeUpdate{
			StopSequence: proto.Uint32(s.seq),
			StopId:       proto.String(s.stopID),
			Arrival: &gtfsrtpb.TripUpdate_StopTimeEvent{
				Delay: proto.Int32(s.arrDelay),
				Time:  proto.Int64(s.arrTime),
			},
			Departure: &gtfsrtpb.TripUpdate_StopTimeEvent{
				Delay: proto.Int32(s.depDelay),
				Time:  proto.Int64(s.arrTime + 30),
			},
			ScheduleRelationship: gtfsrtpb.TripUpdate_StopTimeUpdate_SCHEDULED.Enum(),
		})
	}
	return &gtfsrtpb.FeedEntity{Id: proto.String(id), TripUpdate: tu}
}

func vehicleEntity(id, tripID string, ts uint64) *gtfsrtpb.FeedEntity {
	return &gtfsrtpb.FeedEntity{
		Id: proto.String(id),
		Vehicle: &gtfsrtpb.VehiclePosition{
			Trip:                &gtfsrtpb.TripDescriptor{TripId: proto.String(tripID)},
			Vehicle:             &gtfsrtpb.VehicleDescriptor{Id: proto.String("V" + id)},
			Position:            &gtfsrtpb.Position{Latitude: proto.Float32(58.41), Longitude: proto.Float32(15.62)},
			CurrentStopSequence: proto.Uint32(4),
			StopId:              proto.String("S4"),
			Timestamp:           proto.Uint64(ts),
		},
	}
}

func feedBytes(t *testing.T, entities ...*gtfsrtpb.FeedEntity) []byte {
	t.Helper()
	fm := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1705305600),
		},
		Entity: entities,
	}
	b, err := proto.Marshal(fm)
	require.NoError(t, err)
	return b
}

func decode(t *testing.T, entities ...*gtfsrtpb.FeedEntity) []RawRecord {
	t.Helper()
	recs, err := DecodeFeed(feedBytes(t, entities...))
	require.NoError(t, err)
	return recs
}
