package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/veyra/fleet-collections/internal/address"
	"github.com/veyra/fleet-collections/internal/http/middleware"
	"github.com/veyra/fleet-collections/internal/model"
	"github.com/veyra/fleet-collections/internal/service"
)

type Handler struct {
	negotiation *service.NegotiationService
	history     *service.HistoryService
	log         zerolog.Logger
}

func NewHandler(negotiation *service.NegotiationService, history *service.HistoryService, log zerolog.Logger) *Handler {
	return &Handler{negotiation: negotiation, history: history, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/collections")
	protected.Use(authMiddleware)
	protected.POST("/addresses", h.registerAddress)
	protected.GET("/addresses/:client_id", h.listAddresses)
	protected.GET("/vehicles/:client_id", h.listVehicles)
	protected.GET("/vehicles/:client_id/:vehicle_id", h.getVehicle)
	protected.POST("/fees", h.setFees)
	protected.POST("/propose", h.proposeDate)
	protected.POST("/accept", h.acceptProposal)
	protected.POST("/reject", h.rejectProposal)
	protected.GET("/history/:client_id", h.getHistory)
	protected.GET("/history/:client_id/current/:address_id", h.currentAgreement)
	protected.POST("/history/:client_id/export", h.exportStatement)
	protected.POST("/history/:client_id/export/pdf", h.exportStatementPDF)
	protected.GET("/archive/:client_id", h.listArchive)
	protected.POST("/archive/backfill", h.backfillArchive)
	protected.POST("/archive/:agreement_id", h.archiveAgreement)
	protected.PATCH("/archive/records/:record_id/payment", h.markPaid)
}

type registerAddressRequest struct {
	ClientID string `json:"client_id" binding:"required"`
	Street   string `json:"street" binding:"required"`
	Number   string `json:"number"`
	City     string `json:"city" binding:"required"`
}

func (h *Handler) registerAddress(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req registerAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	clientID, err := uuid.Parse(strings.TrimSpace(req.ClientID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client_id"})
		return
	}
	if !principal.MayAccessClient(clientID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	addr, err := h.negotiation.RegisterAddress(c.Request.Context(), clientID, req.Street, req.Number, req.City)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, addressResponse(*addr))
}

func (h *Handler) listAddresses(c *gin.Context) {
	clientID, ok := h.clientFromPath(c)
	if !ok {
		return
	}

	addrs, err := h.negotiation.ListAddresses(c.Request.Context(), clientID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response := make([]gin.H, 0, len(addrs))
	for _, addr := range addrs {
		response = append(response, addressResponse(addr))
	}
	c.JSON(http.StatusOK, gin.H{"addresses": response})
}

func (h *Handler) listVehicles(c *gin.Context) {
	clientID, ok := h.clientFromPath(c)
	if !ok {
		return
	}

	var addressID *uuid.UUID
	if raw := c.Query("address_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address_id"})
			return
		}
		addressID = &id
	}

	vehicles, err := h.negotiation.ListVehicles(c.Request.Context(), clientID, addressID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response := make([]gin.H, 0, len(vehicles))
	for _, vehicle := range vehicles {
		response = append(response, vehicleResponse(vehicle))
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": response})
}

func (h *Handler) getVehicle(c *gin.Context) {
	clientID, ok := h.clientFromPath(c)
	if !ok {
		return
	}
	vehicleID, err := uuid.Parse(c.Param("vehicle_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vehicle_id"})
		return
	}

	vehicle, err := h.negotiation.GetVehicle(c.Request.Context(), clientID, vehicleID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicleResponse(*vehicle))
}

func addressResponse(addr model.Address) gin.H {
	return gin.H{
		"id":     addr.ID.String(),
		"street": addr.Street,
		"number": addr.Number,
		"city":   addr.City,
		"label":  address.Label(addr.Street, addr.Number, addr.City),
	}
}

type feeItemRequest struct {
	AddressID string  `json:"address_id" binding:"required"`
	Fee       float64 `json:"fee" binding:"required"`
	Date      string  `json:"date"`
}

type setFeesRequest struct {
	ClientID string           `json:"client_id" binding:"required"`
	Items    []feeItemRequest `json:"items" binding:"required"`
}

func (h *Handler) setFees(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if !principal.IsOperator() {
		c.JSON(http.StatusForbidden, gin.H{"error": "operator role required"})
		return
	}

	var req setFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	clientID, err := uuid.Parse(strings.TrimSpace(req.ClientID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client_id"})
		return
	}

	items := make([]service.FeeItem, 0, len(req.Items))
	for _, item := range req.Items {
		feeItem := service.FeeItem{Fee: item.Fee}
		if addressID, err := uuid.Parse(strings.TrimSpace(item.AddressID)); err == nil {
			feeItem.AddressID = addressID
		}
		if item.Date != "" {
			date, err := parseDate(item.Date)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date in fee item"})
				return
			}
			feeItem.Date = &date
		}
		items = append(items, feeItem)
	}

	result, err := h.negotiation.SetFees(c.Request.Context(), clientID, items)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, setFeesResponse(result))
}

func setFeesResponse(result *service.SetFeesResult) gin.H {
	items := make([]gin.H, 0, len(result.Items))
	for _, item := range result.Items {
		entry := gin.H{
			"address_id":     item.AddressID.String(),
			"vehicles_moved": item.VehiclesMoved,
		}
		if item.AgreementID != uuid.Nil {
			entry["agreement_id"] = item.AgreementID.String()
		}
		if item.Err != nil {
			entry["error"] = item.Err.Error()
		}
		items = append(items, entry)
	}
	return gin.H{"updated": result.UpdatedCount, "items": items}
}

type proposeDateRequest struct {
	ClientID  string `json:"client_id" binding:"required"`
	AddressID string `json:"address_id" binding:"required"`
	Date      string `json:"date" binding:"required"`
}

func (h *Handler) proposeDate(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req proposeDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	clientID, addressID, ok := h.parseClientAddress(c, req.ClientID, req.AddressID, principal)
	if !ok {
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}

	row, err := h.negotiation.ProposeDate(c.Request.Context(), principal.Role, clientID, addressID, date)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, agreementResponse(row))
}

type addressActionRequest struct {
	ClientID  string `json:"client_id" binding:"required"`
	AddressID string `json:"address_id" binding:"required"`
}

func (h *Handler) acceptProposal(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req addressActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	clientID, addressID, ok := h.parseClientAddress(c, req.ClientID, req.AddressID, principal)
	if !ok {
		return
	}

	row, err := h.negotiation.AcceptProposal(c.Request.Context(), clientID, addressID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, agreementResponse(row))
}

type rejectProposalRequest struct {
	ClientID  string `json:"client_id" binding:"required"`
	AddressID string `json:"address_id" binding:"required"`
	Reason    string `json:"reason"`
}

func (h *Handler) rejectProposal(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req rejectProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	clientID, addressID, ok := h.parseClientAddress(c, req.ClientID, req.AddressID, principal)
	if !ok {
		return
	}

	var reason *string
	if trimmed := strings.TrimSpace(req.Reason); trimmed != "" {
		reason = &trimmed
	}

	if err := h.negotiation.RejectProposal(c.Request.Context(), principal.Role, clientID, addressID, reason); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reverted"})
}

func (h *Handler) getHistory(c *gin.Context) {
	clientID, ok := h.clientFromPath(c)
	if !ok {
		return
	}

	groups, err := h.history.GetHistory(c.Request.Context(), clientID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response := make([]gin.H, 0, len(groups))
	for _, group := range groups {
		vehicles := make([]gin.H, 0, len(group.Vehicles))
		for _, vehicle := range group.Vehicles {
			vehicles = append(vehicles, vehicleResponse(vehicle))
		}
		response = append(response, gin.H{
			"agreement": agreementResponse(&group.Agreement),
			"vehicles":  vehicles,
		})
	}
	c.JSON(http.StatusOK, gin.H{"groups": response})
}

func (h *Handler) currentAgreement(c *gin.Context) {
	clientID, ok := h.clientFromPath(c)
	if !ok {
		return
	}
	addressID, err := uuid.Parse(c.Param("address_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address_id"})
		return
	}

	row, err := h.history.CurrentAgreement(c.Request.Context(), clientID, addressID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, agreementResponse(row))
}

func (h *Handler) exportStatement(c *gin.Context) {
	clientID, ok := h.clientFromPath(c)
	if !ok {
		return
	}

	result, err := h.history.ExportStatement(c.Request.Context(), clientID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.writeAttachment(c, result)
}

func (h *Handler) exportStatementPDF(c *gin.Context) {
	clientID, ok := h.clientFromPath(c)
	if !ok {
		return
	}

	result, err := h.history.ExportStatementPDF(c.Request.Context(), clientID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.writeAttachment(c, result)
}

func (h *Handler) listArchive(c *gin.Context) {
	clientID, ok := h.clientFromPath(c)
	if !ok {
		return
	}

	records, err := h.history.ListArchive(c.Request.Context(), clientID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response := make([]gin.H, 0, len(records))
	for _, record := range records {
		entry := gin.H{
			"id":            record.ID.String(),
			"agreement_id":  record.AgreementID.String(),
			"address":       record.AddressLabel,
			"fee":           record.Fee,
			"vehicle_count": record.VehicleCount,
			"total_amount":  record.TotalAmount,
			"paid":          record.Paid,
		}
		if record.CollectedOn != nil {
			entry["collected_on"] = record.CollectedOn.Format("2006-01-02")
		}
		if record.PaidAt != nil {
			entry["paid_at"] = record.PaidAt.Format(time.RFC3339)
		}
		response = append(response, entry)
	}
	c.JSON(http.StatusOK, gin.H{"records": response})
}

type backfillRequest struct {
	ClientID string `json:"client_id" binding:"required"`
}

func (h *Handler) backfillArchive(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if !principal.IsOperator() {
		c.JSON(http.StatusForbidden, gin.H{"error": "operator role required"})
		return
	}

	var req backfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	clientID, err := uuid.Parse(strings.TrimSpace(req.ClientID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client_id"})
		return
	}

	archived, err := h.history.BackfillArchive(c.Request.Context(), clientID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": archived})
}

func (h *Handler) archiveAgreement(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if !principal.IsOperator() {
		c.JSON(http.StatusForbidden, gin.H{"error": "operator role required"})
		return
	}

	agreementID, err := uuid.Parse(c.Param("agreement_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agreement_id"})
		return
	}

	inserted, err := h.history.ArchiveAgreement(c.Request.Context(), agreementID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": inserted})
}

func (h *Handler) markPaid(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if !principal.IsOperator() {
		c.JSON(http.StatusForbidden, gin.H{"error": "operator role required"})
		return
	}

	recordID, err := uuid.Parse(c.Param("record_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record_id"})
		return
	}

	if err := h.history.MarkPaid(c.Request.Context(), recordID); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paid"})
}

func (h *Handler) clientFromPath(c *gin.Context) (uuid.UUID, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return uuid.Nil, false
	}
	clientID, err := uuid.Parse(c.Param("client_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client_id"})
		return uuid.Nil, false
	}
	if !principal.MayAccessClient(clientID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return uuid.Nil, false
	}
	return clientID, true
}

func (h *Handler) parseClientAddress(c *gin.Context, rawClient, rawAddress string, principal model.Principal) (uuid.UUID, uuid.UUID, bool) {
	clientID, err := uuid.Parse(strings.TrimSpace(rawClient))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client_id"})
		return uuid.Nil, uuid.Nil, false
	}
	addressID, err := uuid.Parse(strings.TrimSpace(rawAddress))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address_id"})
		return uuid.Nil, uuid.Nil, false
	}
	if !principal.MayAccessClient(clientID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return uuid.Nil, uuid.Nil, false
	}
	return clientID, addressID, true
}

func (h *Handler) writeAttachment(c *gin.Context, result *service.ExportResult) {
	c.Header("Content-Type", result.ContentType)
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPrecursorMissing):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func agreementResponse(row *model.CollectionAgreement) gin.H {
	response := gin.H{
		"id":      row.ID.String(),
		"address": row.AddressLabel,
		"fee":     row.Fee,
		"status":  string(row.Status),
	}
	if row.ScheduledDate != nil {
		response["date"] = row.ScheduledDate.Format("2006-01-02")
	}
	if row.ProposedBy != nil {
		response["proposed_by"] = string(*row.ProposedBy)
	}
	if row.RejectionReason != nil {
		response["rejection_reason"] = *row.RejectionReason
	}
	return response
}

func vehicleResponse(vehicle model.Vehicle) gin.H {
	response := gin.H{
		"id":     vehicle.ID.String(),
		"plate":  vehicle.Plate,
		"status": string(vehicle.Status),
	}
	if vehicle.EstimatedDate != nil {
		response["estimated_date"] = vehicle.EstimatedDate.Format("2006-01-02")
	}
	if vehicle.AgreementID != nil {
		response["agreement_id"] = vehicle.AgreementID.String()
	}
	return response
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
