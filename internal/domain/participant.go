package domain

// Participant is a directory entry referenced by events. The directory is
// owned by an external system; this core only reads it.
type Participant struct {
	ID         string `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Department string `json:"department,omitempty"`
}

// FullName returns "FirstName LastName" for display and logs.
func (p Participant) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
