package types

// Location is the administrative address of a person or a complaint.
// Attributes are populated top-down: a cell is only meaningful inside its sector.
type Location struct {
	Province string `json:"province,omitempty"`
	District string `json:"district,omitempty"`
	Sector   string `json:"sector,omitempty"`
	Cell     string `json:"cell,omitempty"`
	Village  string `json:"village,omitempty"`
}

// NewLocation creates a location from its five attributes, shallowest first
func NewLocation(province, district, sector, cell, village string) Location {
	return Location{
		Province: province,
		District: district,
		Sector:   sector,
		Cell:     cell,
		Village:  village,
	}
}

// Parts returns the attributes ordered from province to village
func (l Location) Parts() [5]string {
	return [5]string{l.Province, l.District, l.Sector, l.Cell, l.Village}
}

// IsEmpty reports whether no attribute is set
func (l Location) IsEmpty() bool {
	return l == Location{}
}

// ContactInfo represents contact information
type ContactInfo struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}
