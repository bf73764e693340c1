package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mymoney/internal/core"
)

type templateResponse struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	Title            string `json:"title"`
	Category         string `json:"category,omitempty"`
	AmountCents      int64  `json:"amount_cents"`
	Amount           string `json:"amount"`
	DayOfMonth       int    `json:"day_of_month"`
	IsRecurring      bool   `json:"is_recurring"`
	RemindBeforeDays int    `json:"remind_before_days"`
	Note             string `json:"note,omitempty"`
}

type instanceResponse struct {
	ID          string `json:"id"`
	TemplateID  string `json:"template_id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	DueDate     string `json:"due_date"`
	Status      string `json:"status"`
}

type notificationResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

type purchaseResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ItemName   string    `json:"item_name"`
	Category   string    `json:"category,omitempty"`
	Quantity   int       `json:"quantity"`
	TotalCents int64     `json:"total_cents"`
	Total      string    `json:"total"`
	CreatedAt  time.Time `json:"created_at"`
}

func toTemplateResponse(t core.BillTemplate) templateResponse {
	return templateResponse{
		ID:               t.ID,
		UserID:           t.UserID,
		Title:            t.Title,
		Category:         t.Category,
		AmountCents:      t.Amount.Cents,
		Amount:           t.Amount.Display(),
		DayOfMonth:       t.DayOfMonth,
		IsRecurring:      t.IsRecurring,
		RemindBeforeDays: t.RemindBeforeDays,
		Note:             t.Note,
	}
}

func toInstanceResponse(i core.BillInstance) instanceResponse {
	return instanceResponse{
		ID:          i.ID,
		TemplateID:  i.TemplateID,
		UserID:      i.UserID,
		Title:       i.Title,
		AmountCents: i.Amount.Cents,
		Amount:      i.Amount.Display(),
		DueDate:     i.DueDate.String(),
		Status:      string(i.Status),
	}
}

func toNotificationResponse(n core.NotificationRecord) notificationResponse {
	return notificationResponse{
		ID:          n.ID,
		UserID:      n.UserID,
		Title:       n.Title,
		Description: n.Description,
		Type:        string(n.Type),
		Read:        n.Read,
		CreatedAt:   n.CreatedAt,
	}
}

func toPurchaseResponse(p core.Purchase) purchaseResponse {
	return purchaseResponse{
		ID:         p.ID,
		UserID:     p.UserID,
		ItemName:   p.ItemName,
		Category:   p.Category,
		Quantity:   p.Quantity,
		TotalCents: p.Total.Cents,
		Total:      p.Total.Display(),
		CreatedAt:  p.CreatedAt,
	}
}

// handleGenerateBills runs the bill scheduler once for today. Partial
// failures still return 200 with success=false so the caller can see the
// counts for the templates that did go through.
func (s *Server) handleGenerateBills(w http.ResponseWriter, r *http.Request) {
	report, err := s.scheduler.Run(r.Context(), s.now())
	resp := map[string]any{
		"success":           err == nil,
		"templates_seen":    report.TemplatesSeen,
		"instances_created": report.InstancesCreated,
		"reminders_sent":    report.RemindersSent,
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Bill generation run failed", "error", err)
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLowBalance(w http.ResponseWriter, r *http.Request) {
	report, err := s.lowBalance.Run(r.Context())
	resp := map[string]any{
		"success":       err == nil,
		"profiles_seen": report.ProfilesSeen,
		"alerted":       report.Alerted,
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Low balance run failed", "error", err)
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type createTemplateRequest struct {
	UserID           string `json:"user_id"`
	Title            string `json:"title"`
	Category         string `json:"category"`
	Amount           string `json:"amount"`
	DayOfMonth       int    `json:"day_of_month"`
	RemindBeforeDays int    `json:"remind_before_days"`
	Note             string `json:"note"`
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	tpl, err := s.bills.CreateTemplate(r.Context(), core.BillTemplate{
		UserID:           strings.TrimSpace(req.UserID),
		Title:            strings.TrimSpace(req.Title),
		Category:         strings.TrimSpace(req.Category),
		Amount:           core.Money{Cents: cents},
		DayOfMonth:       req.DayOfMonth,
		IsRecurring:      true,
		RemindBeforeDays: req.RemindBeforeDays,
		Note:             req.Note,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateResponse(tpl))
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	templates, err := s.bills.ListTemplates(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]templateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStopRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := s.bills.StopRecurring(r.Context(), userID, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := s.bills.DeleteTemplate(r.Context(), userID, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleUpcomingBills(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	instances, err := s.bills.Upcoming(r.Context(), userID, s.now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]instanceResponse, 0, len(instances))
	for _, inst := range instances {
		out = append(out, toInstanceResponse(inst))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	inst, err := s.bills.MarkPaid(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInstanceResponse(inst))
}

type addMoneyRequest struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
}

func (s *Server) handleAddMoney(w http.ResponseWriter, r *http.Request) {
	var req addMoneyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}
	entry, err := s.ledger.AddMoney(r.Context(), core.AddedMoney{
		UserID: strings.TrimSpace(req.UserID),
		Amount: core.Money{Cents: cents},
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":           entry.ID,
		"user_id":      entry.UserID,
		"amount_cents": entry.Amount.Cents,
		"amount":       entry.Amount.Display(),
	})
}

type recordPurchaseRequest struct {
	UserID   string `json:"user_id"`
	ItemName string `json:"item_name"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

func (s *Server) handleRecordPurchase(w http.ResponseWriter, r *http.Request) {
	var req recordPurchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cents, err := core.ParseDecimalToCents(req.Price)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid price")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	p, err := s.ledger.RecordPurchase(r.Context(), core.Purchase{
		UserID:   strings.TrimSpace(req.UserID),
		ItemName: strings.TrimSpace(req.ItemName),
		Category: strings.TrimSpace(req.Category),
		Quantity: req.Quantity,
		Price:    core.Money{Cents: cents},
		Total:    core.Money{Cents: cents * int64(req.Quantity)},
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPurchaseResponse(p))
}

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	purchases, err := s.ledger.Purchases(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]purchaseResponse, 0, len(purchases))
	for _, p := range purchases {
		out = append(out, toPurchaseResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	balance, err := s.ledger.Balance(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":       userID,
		"balance_cents": balance.Cents,
		"balance":       balance.Display(),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	now := s.now()
	year := now.Year()
	month := now.Month()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = y
	}
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			writeError(w, http.StatusBadRequest, "invalid month")
			return
		}
		month = time.Month(m)
	}

	summary, err := s.ledger.Summary(r.Context(), userID, year, month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	byCategory := make([]map[string]any, 0, len(summary.ByCategory))
	for _, c := range summary.ByCategory {
		byCategory = append(byCategory, map[string]any{
			"category":     c.Name,
			"amount_cents": c.Amount.Cents,
			"amount":       c.Amount.Display(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":              summary.Year,
		"month":             summary.Month,
		"total_added_cents": summary.TotalAdded.Cents,
		"total_spent_cents": summary.TotalSpent.Cents,
		"balance_cents":     summary.Balance.Cents,
		"by_category":       byCategory,
	})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	feed, err := s.notifications.Feed(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]notificationResponse, 0, len(feed))
	for _, n := range feed {
		out = append(out, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUnreadNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	unread, err := s.notifications.Unread(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]notificationResponse, 0, len(unread))
	for _, n := range unread {
		out = append(out, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, out)
}

type markAllReadRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	var req markAllReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := s.notifications.MarkAllRead(r.Context(), req.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return "", false
	}
	return userID, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case isValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidDayOfMonth,
		core.ErrInvalidRemindDays,
		core.ErrInvalidAmount,
		core.ErrInvalidStatus,
		core.ErrInvalidType,
		core.ErrEmptyTitle,
		core.ErrEmptyUserID,
		core.ErrEmptyTemplateID,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
