package presencehandler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"presencehub/internal/presence"
)

// ConnectionCounter reports live transport connections.
type ConnectionCounter interface {
	ConnectionCount() int
}

type Handler struct {
	registry *presence.Registry
	conns    ConnectionCounter
}

func New(registry *presence.Registry, conns ConnectionCounter) *Handler {
	return &Handler{registry: registry, conns: conns}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/healthz", h.health)
	r.GET("/users", h.users)
	r.GET("/groups", h.groups)
	r.GET("/groups/:id", h.group)
	r.GET("/groups/:id/members", h.members)
}

// @Summary		Health probe
// @Description	Reports live connection, user and group counts.
// @Tags			Presence
// @Success		200	{object}	HealthResponse
// @Router			/healthz [get]
func (h *Handler) health(c *gin.Context) {
	st := h.registry.Stats()
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Connections: h.conns.ConnectionCount(),
		Users:       st.Users,
		Groups:      st.Groups,
	})
}

// @Summary		List online users
// @Description	Returns every joined identity in join order.
// @Tags			Presence
// @Success		200	{array}	presence.Identity
// @Router			/users [get]
func (h *Handler) users(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.AllIdentities())
}

// @Summary		List groups
// @Description	Returns every existing group in creation order.
// @Tags			Groups
// @Success		200	{array}	presence.Group
// @Router			/groups [get]
func (h *Handler) groups(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.AllGroups())
}

// @Summary		Get group
// @Tags			Groups
// @Param			id	path		string	true	"Group ID"	default(g1)
// @Success		200	{object}	presence.Group
// @Failure		404	{object}	ErrorResponse
// @Router			/groups/{id} [get]
func (h *Handler) group(c *gin.Context) {
	g, ok := h.registry.GetGroup(presence.GroupID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: presence.ErrGroupNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, g)
}

// @Summary		Get group members
// @Description	Returns the group and the identities of its joined members.
// @Tags			Groups
// @Param			id	path		string	true	"Group ID"	default(g1)
// @Success		200	{object}	GroupMembersResponse
// @Failure		404	{object}	ErrorResponse
// @Router			/groups/{id}/members [get]
func (h *Handler) members(c *gin.Context) {
	gid := presence.GroupID(c.Param("id"))
	g, ok := h.registry.GetGroup(gid)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: presence.ErrGroupNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, GroupMembersResponse{Group: g, Members: h.registry.MembersOf(gid)})
}
