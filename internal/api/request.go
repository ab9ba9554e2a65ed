package api

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/BoranPatron/tradeboard/pkg/model"
)

// QuoteSubmitRequest is the inbound payload for submitting a bid.
type QuoteSubmitRequest struct {
	MilestoneID       int64           `json:"milestone_id"`
	ProjectID         int64           `json:"project_id"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Currency          string          `json:"currency"`
	CompanyName       string          `json:"company_name"`
	TechnicalApproach string          `json:"technical_approach"`
	EstimatedDuration int             `json:"estimated_duration"`
}

func (r QuoteSubmitRequest) Validate() error {
	if r.MilestoneID <= 0 {
		return errors.New("milestone_id is required")
	}
	if r.TotalAmount.LessThanOrEqual(decimal.Zero) {
		return errors.New("total_amount must be positive")
	}
	if r.Currency == "" {
		return errors.New("currency is required")
	}
	return nil
}

func (r QuoteSubmitRequest) toSubmission() model.QuoteSubmission {
	return model.QuoteSubmission{
		MilestoneID:       r.MilestoneID,
		ProjectID:         r.ProjectID,
		TotalAmount:       r.TotalAmount,
		Currency:          r.Currency,
		CompanyName:       r.CompanyName,
		TechnicalApproach: r.TechnicalApproach,
		EstimatedDuration: r.EstimatedDuration,
	}
}

// LocationRequest is the inbound payload for saving the search location.
type LocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusKm  float64 `json:"radius_km"`
}

func (r LocationRequest) Validate() error {
	if r.Latitude < -90 || r.Latitude > 90 {
		return errors.New("latitude out of range")
	}
	if r.Longitude < -180 || r.Longitude > 180 {
		return errors.New("longitude out of range")
	}
	if r.RadiusKm <= 0 || r.RadiusKm > 500 {
		return errors.New("radius_km must be between 0 and 500")
	}
	return nil
}

// MessagesReadRequest marks the chat of a trade as read for one role.
type MessagesReadRequest struct {
	Role model.UserRole `json:"user_type"`
}

func (r MessagesReadRequest) Validate() error {
	switch r.Role {
	case model.RoleServiceProvider, model.RoleProjectOwner:
		return nil
	}
	return errors.New("user_type must be service_provider or project_owner")
}

// AppointmentResponseRequest answers an appointment invitation.
type AppointmentResponseRequest struct {
	AppointmentID int64  `json:"appointment_id"`
	Response      string `json:"response"`
}

func (r AppointmentResponseRequest) Validate() error {
	if r.AppointmentID <= 0 {
		return errors.New("appointment_id is required")
	}
	switch r.Response {
	case "accepted", "rejected", "rejected_with_suggestion":
		return nil
	}
	return errors.New("response must be accepted, rejected or rejected_with_suggestion")
}
