package mocklibrary

import "github.com/hondana-app/hondana/pkg/eligibility"

type LoginPayload struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=100"`
}

type CheckEligibilityPayload struct {
	LibraryItemIDs []eligibility.ItemID `json:"libraryItemIds" validate:"omitempty,dive,min=1"`
}

type CreateBorrowPayload struct {
	Description        string               `json:"description" validate:"max=500"`
	LibraryItemIDs     []eligibility.ItemID `json:"libraryItemIds" validate:"omitempty,dive,min=1"`
	ReservationItemIDs []eligibility.ItemID `json:"reservationItemIds" validate:"omitempty,dive,min=1"`
}
