package fanout

import (
	"encoding/json"

	"presencehub/internal/presence"
)

// Inbound event names.
const (
	EventJoin           = "join"
	EventCreateGroup    = "createGroup"
	EventJoinGroup      = "joinGroup"
	EventLeaveGroup     = "leaveGroup"
	EventGroupMessage   = "groupMessage"
	EventPrivateMessage = "privateMessage"
	EventListGroups     = "listGroups"
	EventListMyGroups   = "listMyGroups"
	EventListUsers      = "listUsers"
	EventEcho           = "echo"
)

// Outbound event names.
const (
	EventUsers              = "users"
	EventUserJoined         = "userJoined"
	EventUserLeft           = "userLeft"
	EventGroupCreated       = "groupCreated"
	EventMemberJoined       = "memberJoined"
	EventJoinedGroup        = "joinedGroup"
	EventMemberLeft         = "memberLeft"
	EventGroupMessageSent   = "groupMessageSent"
	EventPrivateMessageSent = "privateMessageSent"
	EventGroups             = "groups"
	EventMyGroups           = "myGroups"
	EventError              = "error"
)

const (
	msgDuplicateGroup    = "Group already exists"
	msgGroupNotFound     = "Group not found"
	msgSenderNotFound    = "Sender not found"
	msgRecipientNotFound = "Recipient not found"
	msgNotAMember        = "You are not a member of this group"
	msgMalformedPayload  = "Malformed payload"
	msgUnknownEvent      = "Unknown event"
	msgInternal          = "Internal error"
)

// ──────────────────────────── Request DTOs ───────────────────────────────────

type JoinRequest struct {
	DisplayName string `json:"displayName" validate:"required,max=64"`
}

type CreateGroupRequest struct {
	GroupID string `json:"groupId" validate:"required,max=128"`
	Name    string `json:"name"    validate:"required,max=128"`
}

type GroupRequest struct {
	GroupID string `json:"groupId" validate:"required,max=128"`
}

type GroupMessageRequest struct {
	GroupID string `json:"groupId" validate:"required,max=128"`
	Text    string `json:"text"    validate:"required,max=8192"`
}

type PrivateMessageRequest struct {
	To   string `json:"to"   validate:"required"`
	Text string `json:"text" validate:"required,max=8192"`
}

type NoPayload struct{}

// ──────────────────────────── Response DTOs ──────────────────────────────────

type ErrorBody struct {
	Message string `json:"message"`
}

type MemberJoinedBody struct {
	Group  presence.Group    `json:"group"`
	Member presence.Identity `json:"member"`
}

type JoinedGroupBody struct {
	Group   presence.Group      `json:"group"`
	Members []presence.Identity `json:"members"`
}

type MemberLeftBody struct {
	GroupID presence.GroupID  `json:"groupId"`
	Member  presence.Identity `json:"member"`
}

type GroupMessageBody struct {
	GroupID   presence.GroupID  `json:"groupId"`
	Text      string            `json:"text"`
	Sender    presence.Identity `json:"sender"`
	Timestamp string            `json:"timestamp"`
}

type PrivateMessageBody struct {
	Text      string            `json:"text"`
	Sender    presence.Identity `json:"sender"`
	Recipient presence.Identity `json:"recipient"`
	Timestamp string            `json:"timestamp"`
}

// EchoBody is returned verbatim; null when the request carried no payload.
type EchoBody = json.RawMessage
