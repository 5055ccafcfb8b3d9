package model

// User is a patient record. The booking engine only needs existence checks;
// the rest of the fields serve the collaborator CRUD surface.
type User struct {
	Base
	FirstName string `db:"first_name" json:"firstName"`
	LastName  string `db:"last_name" json:"lastName"`
	Email     string `db:"email" json:"email"`
	Password  string `db:"password" json:"-"`
	Age       int    `db:"age" json:"age,omitempty"`
	Gender    string `db:"gender" json:"gender,omitempty"`
	PhoneNo   string `db:"phone_no" json:"phoneNo,omitempty"`
}

type CreateUserRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
	PhoneNo   string `json:"phoneNo"`
}

// UpdateUserRequest carries a partial user update. Email is mandatory and
// must stay unique across users.
type UpdateUserRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     string  `json:"email" binding:"required,email"`
	Password  *string `json:"password"`
	Age       *int    `json:"age"`
	Gender    *string `json:"gender"`
	PhoneNo   *string `json:"phoneNo"`
}
