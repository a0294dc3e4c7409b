package model

// Service is a treatment offered by the clinic, with a nominal duration.
type Service struct {
	Base
	Name        string  `db:"name" json:"name"`
	Description string  `db:"description" json:"description"`
	Duration    int     `db:"duration" json:"duration"` // in minutes
	Price       float64 `db:"price" json:"price"`
	Active      bool    `db:"active" json:"active"`
}

type CreateServiceRequest struct {
	Name        string  `json:"name" binding:"required,max=150"`
	Description string  `json:"description" binding:"max=1000"`
	Duration    int     `json:"duration" binding:"required,min=5,max=480"`
	Price       float64 `json:"price" binding:"min=0"`
}

type UpdateServiceRequest struct {
	Name        *string  `json:"name" binding:"omitempty,max=150"`
	Description *string  `json:"description" binding:"omitempty,max=1000"`
	Duration    *int     `json:"duration" binding:"omitempty,min=5,max=480"`
	Price       *float64 `json:"price" binding:"omitempty,min=0"`
	Active      *bool    `json:"active"`
}

func (req *UpdateServiceRequest) Apply(s *Service) {
	if req.Name != nil {
		s.Name = *req.Name
	}
	if req.Description != nil {
		s.Description = *req.Description
	}
	if req.Duration != nil {
		s.Duration = *req.Duration
	}
	if req.Price != nil {
		s.Price = *req.Price
	}
	if req.Active != nil {
		s.Active = *req.Active
	}
}

type ServiceFilters struct {
	ActiveOnly bool   `form:"active"`
	SearchTerm string `form:"search"`
}
