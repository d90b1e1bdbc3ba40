package model

type Role string

const (
	RoleDonor     Role = "donor"
	RoleFarmer    Role = "farmer"
	RoleVolunteer Role = "volunteer"
)

func (r Role) Valid() bool {
	return r == RoleDonor || r == RoleFarmer || r == RoleVolunteer
}

// Identity is the signed-in user as the rest of the system sees it.
type Identity struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

func (i Identity) VolunteerRef() VolunteerRef {
	return VolunteerRef{ID: i.UserID, Name: i.Name}
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}
