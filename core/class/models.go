package class

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusmate/core"
)

const DefaultColor = "#3498db"

type (
	Class struct {
		ID         int       `json:"id"`
		Name       string    `json:"name"`
		Color      string    `json:"color"`
		Archived   bool      `json:"archived"`
		ArchivedAt null.Time `json:"archived_date"`
		CreatedBy  null.Int  `json:"created_by"`
		CreatedAt  time.Time `json:"created_at"`
	}

	// UserClasses splits a user's classes for display.
	UserClasses struct {
		Active   []Class `json:"active"`
		Archived []Class `json:"archived"`
	}

	Peer struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}

	// Classmates lists the other students enrolled in Class.
	Classmates struct {
		Class    Class  `json:"class"`
		Students []Peer `json:"students"`
	}

	Buddy struct {
		ID        int    `json:"id"`
		Username  string `json:"username"`
		ClassName string `json:"class_name"`
	}

	NewClass struct {
		Name  string `json:"name" validate:"required,max=100"`
		Color string `json:"color" validate:"omitempty,hexcolor_"`
	}
)

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Color = core.CleanString(nc.Color, true /* lower */)
	return validate.Struct(nc)
}

// RandomColor returns a random #RRGGBB color.
func RandomColor() string {
	return fmt.Sprintf("#%06x", rand.Intn(0x1000000))
}
