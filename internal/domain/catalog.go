package domain

type Company struct {
	ID           uint   `json:"id"`
	EventID      uint   `json:"event_id"`
	Name         string `json:"name"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
}

type Position struct {
	ID           uint    `json:"id"`
	EventID      uint    `json:"event_id"`
	CompanyID    uint    `json:"company_id"`
	Company      Company `json:"company"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Location     string  `json:"location"`
	Schedule     string  `json:"schedule"`
	ContactName  string  `json:"contact_name"`
	ContactEmail string  `json:"contact_email"`
	ContactPhone string  `json:"contact_phone"`
	Slots        int     `json:"slots"`
	Published    bool    `json:"published"`
}

type Student struct {
	ID        uint   `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Grade     int    `json:"grade"`
	Active    bool   `json:"active"`
	Graduated bool   `json:"graduated"`
}

// Eligible reports whether the student may take part in a draw.
func (s Student) Eligible() bool {
	return s.Active && !s.Graduated
}

func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// Preference is one ranked choice. Rank 1 is the most wanted position.
type Preference struct {
	ID         uint `json:"id"`
	EventID    uint `json:"event_id"`
	StudentID  uint `json:"student_id"`
	PositionID uint `json:"position_id"`
	Rank       int  `json:"rank"`
}
