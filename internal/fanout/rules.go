package fanout

import (
	"encoding/json"
	"errors"

	"presencehub/internal/presence"
)

func (r *Router) registerRules() {
	Register(r, EventJoin, r.join)
	Register(r, EventCreateGroup, r.createGroup)
	Register(r, EventJoinGroup, r.joinGroup)
	Register(r, EventLeaveGroup, r.leaveGroup)
	Register(r, EventGroupMessage, r.groupMessage)
	Register(r, EventPrivateMessage, r.privateMessage)

	Register(r, EventListGroups, func(_ presence.ConnID, _ NoPayload) []Delivery {
		return []Delivery{toRequester(EventGroups, r.registry.AllGroups())}
	})
	Register(r, EventListMyGroups, func(c presence.ConnID, _ NoPayload) []Delivery {
		return []Delivery{toRequester(EventMyGroups, r.registry.GroupsOf(c))}
	})
	Register(r, EventListUsers, func(_ presence.ConnID, _ NoPayload) []Delivery {
		return []Delivery{toRequester(EventUsers, r.registry.AllIdentities())}
	})

	// echo carries arbitrary JSON, so it skips typed decoding.
	r.handlers[EventEcho] = func(_ presence.ConnID, body json.RawMessage) ([]Delivery, error) {
		if len(body) == 0 {
			body = json.RawMessage("null")
		}
		return []Delivery{toRequester(EventEcho, EchoBody(body))}, nil
	}
}

func (r *Router) join(c presence.ConnID, req JoinRequest) []Delivery {
	id := r.registry.Register(c, req.DisplayName)
	return []Delivery{
		toAll(EventUsers, r.registry.AllIdentities()),
		toAll(EventUserJoined, id),
	}
}

func (r *Router) createGroup(c presence.ConnID, req CreateGroupRequest) []Delivery {
	g, err := r.registry.CreateGroup(presence.GroupID(req.GroupID), req.Name, c)
	if errors.Is(err, presence.ErrDuplicateGroup) {
		return []Delivery{errorTo(msgDuplicateGroup)}
	}
	if err != nil {
		return []Delivery{errorTo(err.Error())}
	}
	return []Delivery{toAll(EventGroupCreated, g)}
}

func (r *Router) joinGroup(c presence.ConnID, req GroupRequest) []Delivery {
	gid := presence.GroupID(req.GroupID)
	g, err := r.registry.JoinGroup(gid, c)
	if errors.Is(err, presence.ErrGroupNotFound) {
		return []Delivery{errorTo(msgGroupNotFound)}
	}
	if err != nil {
		return []Delivery{errorTo(err.Error())}
	}
	return []Delivery{
		toRoom(gid, EventMemberJoined, MemberJoinedBody{Group: g, Member: r.identityOf(c)}),
		toRequester(EventJoinedGroup, JoinedGroupBody{Group: g, Members: r.registry.MembersOf(gid)}),
	}
}

// leaveGroup notifies the remaining members only when c actually left.
func (r *Router) leaveGroup(c presence.ConnID, req GroupRequest) []Delivery {
	gid := presence.GroupID(req.GroupID)
	if !r.registry.LeaveGroup(gid, c) {
		return nil
	}
	return []Delivery{
		toRoomExcept(gid, c, EventMemberLeft, MemberLeftBody{GroupID: gid, Member: r.identityOf(c)}),
	}
}

func (r *Router) groupMessage(c presence.ConnID, req GroupMessageRequest) []Delivery {
	sender, ok := r.registry.LookupIdentity(c)
	if !ok {
		return []Delivery{errorTo(msgSenderNotFound)}
	}
	gid := presence.GroupID(req.GroupID)
	if _, ok := r.registry.GetGroup(gid); !ok {
		return []Delivery{errorTo(msgGroupNotFound)}
	}
	if !r.registry.IsMember(gid, c) {
		return []Delivery{errorTo(msgNotAMember)}
	}

	body := GroupMessageBody{
		GroupID:   gid,
		Text:      req.Text,
		Sender:    sender,
		Timestamp: r.timestamp(),
	}
	return []Delivery{
		toRoom(gid, EventGroupMessage, body),
		toRequester(EventGroupMessageSent, body),
	}
}

func (r *Router) privateMessage(c presence.ConnID, req PrivateMessageRequest) []Delivery {
	sender, ok := r.registry.LookupIdentity(c)
	if !ok {
		return []Delivery{errorTo(msgSenderNotFound)}
	}
	to := presence.ConnID(req.To)
	recipient, ok := r.registry.LookupIdentity(to)
	if !ok {
		return []Delivery{errorTo(msgRecipientNotFound)}
	}

	body := PrivateMessageBody{
		Text:      req.Text,
		Sender:    sender,
		Recipient: recipient,
		Timestamp: r.timestamp(),
	}
	return []Delivery{
		toConn(to, EventPrivateMessage, body),
		toRequester(EventPrivateMessageSent, body),
	}
}
