package fanout

import "presencehub/internal/presence"

type Scope int

const (
	Broadcast Scope = iota
	Room
	Direct
	RequesterOnly
)

func (s Scope) String() string {
	switch s {
	case Broadcast:
		return "broadcast"
	case Room:
		return "room"
	case Direct:
		return "direct"
	case RequesterOnly:
		return "requester"
	}
	return "unknown"
}

// Target names the connections a delivery goes to. GroupID is set for Room,
// ConnID for Direct. Except removes one connection from a Room delivery.
type Target struct {
	Scope   Scope
	GroupID presence.GroupID
	ConnID  presence.ConnID
	Except  presence.ConnID
}

// Delivery is one outbound event the transport must send.
type Delivery struct {
	Target Target
	Event  string
	Data   any
}

func toAll(event string, data any) Delivery {
	return Delivery{Target: Target{Scope: Broadcast}, Event: event, Data: data}
}

func toRoom(gid presence.GroupID, event string, data any) Delivery {
	return Delivery{Target: Target{Scope: Room, GroupID: gid}, Event: event, Data: data}
}

func toRoomExcept(gid presence.GroupID, except presence.ConnID, event string, data any) Delivery {
	return Delivery{Target: Target{Scope: Room, GroupID: gid, Except: except}, Event: event, Data: data}
}

func toConn(c presence.ConnID, event string, data any) Delivery {
	return Delivery{Target: Target{Scope: Direct, ConnID: c}, Event: event, Data: data}
}

func toRequester(event string, data any) Delivery {
	return Delivery{Target: Target{Scope: RequesterOnly}, Event: event, Data: data}
}

func errorTo(message string) Delivery {
	return toRequester(EventError, ErrorBody{Message: message})
}
