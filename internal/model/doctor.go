package model

// Doctor is the bookable practitioner record. Name and specialization are
// what the presentation layer resolves when rendering appointment lists.
type Doctor struct {
	Base
	FirstName      string `db:"first_name" json:"firstName"`
	LastName       string `db:"last_name" json:"lastName"`
	Email          string `db:"email" json:"email"`
	Specialization string `db:"specialization" json:"specialization"`
}

type CreateDoctorRequest struct {
	FirstName      string `json:"firstName" binding:"required"`
	LastName       string `json:"lastName" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Specialization string `json:"specialization" binding:"required"`
}
