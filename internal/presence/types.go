package presence

// ConnID identifies one live transport connection. The transport assigns it and
// never reuses it once the connection is gone.
type ConnID string

// GroupID is the caller-chosen key of a group. It is unique among existing groups only.
type GroupID string

type Identity struct {
	ID          ConnID `json:"id"`
	DisplayName string `json:"displayName"`
}

type Group struct {
	ID        GroupID  `json:"id"`
	Name      string   `json:"name"`
	CreatedBy ConnID   `json:"createdBy"`
	Members   []ConnID `json:"members"`
}

// Departure is what Unregister tore down.
type Departure struct {
	Identity      Identity
	Registered    bool
	LeftGroups    []GroupID // every group that lost the connection
	DeletedGroups []GroupID // subset of LeftGroups that became empty and were removed
}

type Stats struct {
	Users  int `json:"users"`
	Groups int `json:"groups"`
}
