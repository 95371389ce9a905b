package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

type ManualAssignmentRequest struct {
	PositionID uint `json:"position_id"`
}

func (req *ManualAssignmentRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.PositionID, validation.Required),
	)
}

type PrefillQuotaRequest struct {
	// CompanyID defaults to the position's company.
	CompanyID  uint `json:"company_id"`
	Slots      int  `json:"slots"`
	Percentage int  `json:"percentage"`
}

func (req *PrefillQuotaRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Slots, validation.Min(0)),
		validation.Field(&req.Percentage, validation.Min(0), validation.Max(100)),
	)
}
