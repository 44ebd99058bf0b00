package controllers

import (
	"net/http"

	"github.com/vendorahq/vendora-backend/api/responses"
	"github.com/vendorahq/vendora-backend/api/validators"
	refundssvc "github.com/vendorahq/vendora-backend/internal/refunds"
	"github.com/vendorahq/vendora-backend/pkg/logger"
)

type refundRequestBody struct {
	AmountMinor int64  `json:"amount_minor" validate:"min=0"`
	Reason      string `json:"reason" validate:"required,max=500"`
}

// RequestRefund opens a refund request against a delivered order.
func RequestRefund(service refundssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body refundRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := service.Create(r.Context(), buyerID, refundssvc.CreateInput{
			OrderID:     orderID,
			AmountMinor: body.AmountMinor,
			Reason:      validators.SanitizeString(body.Reason, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

type refundDecisionBody struct {
	Approve       bool    `json:"approve"`
	ApprovedMinor *int64  `json:"approved_minor,omitempty"`
	Note          *string `json:"note,omitempty"`
}

// DecideRefund resolves a pending refund request. Vendors decide their own
// requests; admins may decide any.
func DecideRefund(service refundssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := pathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body refundDecisionBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := service.Decide(r.Context(), actorID, role, requestID, refundssvc.DecideInput{
			Approve:       body.Approve,
			ApprovedMinor: body.ApprovedMinor,
			Note:          body.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}
