package presencehandler

import "presencehub/internal/presence"

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type HealthResponse struct {
	Status      string `json:"status"      example:"ok"`
	Connections int    `json:"connections" example:"3"`
	Users       int    `json:"users"       example:"2"`
	Groups      int    `json:"groups"      example:"1"`
} // @name HealthResponse

type GroupMembersResponse struct {
	Group   presence.Group      `json:"group"`
	Members []presence.Identity `json:"members"`
} // @name GroupMembersResponse
