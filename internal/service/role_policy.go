package service

import "github.com/mealmitra/mealmitra-backend/internal/model"

// RolePolicy decides whether an identity may perform a listing operation.
// With Enforce off every call is allowed and roles only steer the client's
// screens.
type RolePolicy struct {
	Enforce bool
}

func (p RolePolicy) CanCreate(actor model.Identity, kind model.Kind) error {
	if !p.Enforce {
		return nil
	}
	switch {
	case kind == model.KindCooked && actor.Role == model.RoleDonor:
		return nil
	case kind == model.KindFarm && actor.Role == model.RoleFarmer:
		return nil
	}
	return ErrForbidden
}

func (p RolePolicy) CanAccept(actor model.Identity) error {
	if !p.Enforce || actor.Role == model.RoleVolunteer {
		return nil
	}
	return ErrForbidden
}

func (p RolePolicy) CanPick(actor model.Identity, l *model.Listing) error {
	if !p.Enforce {
		return nil
	}
	if actor.Role == model.RoleVolunteer && l.AcceptedBy != nil && l.AcceptedBy.ID == actor.UserID {
		return nil
	}
	return ErrForbidden
}

// CanDeliver also admits the listing's donor, who may confirm a handover
// without the volunteer having marked the pickup.
func (p RolePolicy) CanDeliver(actor model.Identity, l *model.Listing) error {
	if !p.Enforce {
		return nil
	}
	if l.AcceptedBy != nil && l.AcceptedBy.ID == actor.UserID {
		return nil
	}
	if l.DonorID != "" && l.DonorID == actor.UserID {
		return nil
	}
	return ErrForbidden
}
