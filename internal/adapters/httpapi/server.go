package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/campus-logistics/delivery-tracker-api/internal/adapters/export"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/dashboard"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/deliveries"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/session"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/staff"
	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	clockport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/clock"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/idempotency"
)

const ServiceName = "campus-delivery-tracker"

// Server holds the application services behind the HTTP routes.
type Server struct {
	Sessions   *session.Service
	Deliveries *deliveries.Service
	Staff      *staff.Service
	Dashboard  *dashboard.Service
	Idem       idempotency.Store
	Clock      clockport.Clock
	Log        *zap.Logger
}

func NewServer(sessions *session.Service, deliveriesSvc *deliveries.Service, staffSvc *staff.Service, dashboardSvc *dashboard.Service, idem idempotency.Store, clk clockport.Clock, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		Sessions:   sessions,
		Deliveries: deliveriesSvc,
		Staff:      staffSvc,
		Dashboard:  dashboardSvc,
		Idem:       idem,
		Clock:      clk,
		Log:        log,
	}
}

func (s *Server) Landing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, LandingResponse{Service: ServiceName, Routes: publicRoutes})
}

func (s *Server) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", map[string]any{"path": r.URL.Path})
}

// Auth

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !readBody(w, r, &req) {
		return
	}
	res, err := s.Sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse(res))
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !readBody(w, r, &req) {
		return
	}
	res, err := s.Sessions.Register(r.Context(), session.RegisterInput{
		Email:    string(req.Email),
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse(res))
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Logout(r.Context(), tokenFromContext(r.Context())); err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: userFromDomain(me)})
}

// Dashboard

func (s *Server) GetDashboard(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	var opts dashboard.Options
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, ok := domain.ParseDeliveryStatus(raw)
		if !ok {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", map[string]any{"status": raw})
			return
		}
		opts.Status = &st
	}
	v, err := s.Dashboard.Build(r.Context(), me, opts)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardFromView(v))
}

// Deliveries

func (s *Server) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var f deliveries.ListFilter
	for _, raw := range q["status"] {
		st, ok := domain.ParseDeliveryStatus(raw)
		if !ok {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", map[string]any{"status": raw})
			return
		}
		f.Statuses = append(f.Statuses, st)
	}
	if v := strings.TrimSpace(q.Get("studentId")); v != "" {
		id := domain.UserID(v)
		f.StudentID = &id
	}
	if v := strings.TrimSpace(q.Get("personnelId")); v != "" {
		id := domain.UserID(v)
		f.PersonnelID = &id
	}
	ds, err := s.Deliveries.List(r.Context(), me, f)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, DeliveryListResponse{Deliveries: deliveriesFromDomain(ds)})
}

func (s *Server) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req CreateDeliveryRequest
	if !readBody(w, r, &req) {
		return
	}
	ctx := r.Context()

	// Idempotency handling:
	// - Replay if same actor+key+route+bodyHash
	// - Reject if same actor+key+route with different bodyHash (409)
	idemKey := idempotency.Key(strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	var respFP idempotency.Fingerprint
	useIdem := s.Idem != nil && idemKey != ""
	if useIdem {
		bodyHash, err := hashCreateDeliveryBody(req)
		if err != nil {
			writeAppError(w, r, s.Log, err)
			return
		}
		metaFP := idempotency.Fingerprint{
			Key:      idemKey,
			UserID:   me.ID,
			Method:   http.MethodPost,
			Route:    "/deliveries",
			BodyHash: "",
		}
		if meta, ok, err := s.Idem.Get(ctx, metaFP); err != nil {
			writeAppError(w, r, s.Log, err)
			return
		} else if ok {
			if string(meta.Body) != bodyHash {
				writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
				return
			}
		} else {
			_ = s.Idem.Put(ctx, metaFP, idempotency.Record{
				StatusCode:  0,
				ContentType: "text/plain",
				Body:        []byte(bodyHash),
				CreatedAt:   s.Clock.Now().UTC(),
			})
		}

		respFP = metaFP
		respFP.BodyHash = bodyHash
		if rec, ok, err := s.Idem.Get(ctx, respFP); err != nil {
			writeAppError(w, r, s.Log, err)
			return
		} else if ok && rec.StatusCode == http.StatusCreated && strings.HasPrefix(rec.ContentType, "application/json") {
			w.Header().Set("Content-Type", rec.ContentType)
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.Body)
			return
		}
	}

	d, err := s.Deliveries.Create(ctx, me, deliveries.CreateInput{
		Source:       req.Source,
		Destination:  req.Destination,
		Notes:        req.Notes,
		ContactPhone: req.ContactPhone,
	})
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	resp := DeliveryResponse{Delivery: deliveryFromDomain(d)}

	// Store successful response for replay.
	if useIdem {
		if b, err := json.Marshal(resp); err == nil {
			_ = s.Idem.Put(ctx, respFP, idempotency.Record{
				StatusCode:  http.StatusCreated,
				ContentType: "application/json",
				Body:        b,
				CreatedAt:   s.Clock.Now().UTC(),
			})
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) GetDelivery(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	d, err := s.Deliveries.Get(r.Context(), me, deliveryID(r))
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, DeliveryResponse{Delivery: deliveryFromDomain(d)})
}

func (s *Server) GetDeliveryHistory(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	evs, err := s.Deliveries.History(r.Context(), me, deliveryID(r))
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	out := make([]StatusEvent, 0, len(evs))
	for _, ev := range evs {
		out = append(out, statusEventFromDomain(ev))
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Events: out})
}

func (s *Server) AcceptDelivery(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req AcceptDeliveryRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid request body", map[string]any{"body": err.Error()})
		return
	}
	var pid domain.UserID
	if req.PersonnelId != nil {
		pid = domain.UserID(strings.TrimSpace(*req.PersonnelId))
	}
	s.respondDelivery(w, r)(s.Deliveries.Accept(r.Context(), me, deliveryID(r), pid))
}

func (s *Server) RejectDelivery(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	s.respondDelivery(w, r)(s.Deliveries.Reject(r.Context(), me, deliveryID(r)))
}

func (s *Server) AdvanceDelivery(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	s.respondDelivery(w, r)(s.Deliveries.Advance(r.Context(), me, deliveryID(r)))
}

func (s *Server) UpdateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !readBody(w, r, &req) {
		return
	}
	in := deliveries.UpdateStatusInput{
		Status:   domain.DeliveryStatus(req.Status),
		Override: req.Override,
	}
	if req.PersonnelId != nil {
		pid := domain.UserID(strings.TrimSpace(*req.PersonnelId))
		in.PersonnelID = &pid
	}
	s.respondDelivery(w, r)(s.Deliveries.UpdateStatus(r.Context(), me, deliveryID(r), in))
}

// Admin

func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	st, err := s.Deliveries.Stats(r.Context(), me)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Stats: statsFromDomain(st)})
}

func (s *Server) ListStaff(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	includeInactive := false
	if raw := r.URL.Query().Get("includeInactive"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid includeInactive", map[string]any{"includeInactive": raw})
			return
		}
		includeInactive = b
	}
	es, err := s.Staff.List(r.Context(), me, includeInactive)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, StaffListResponse{Staff: staffFromDomain(es)})
}

func (s *Server) AddStaff(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req AddStaffRequest
	if !readBody(w, r, &req) {
		return
	}
	in := staff.AddInput{Name: req.Name, Password: req.Password}
	if req.Email != nil {
		in.Email = string(*req.Email)
	}
	e, err := s.Staff.Add(r.Context(), me, in)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, StaffMemberResponse{StaffMember: staffMemberFromDomain(e)})
}

func (s *Server) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req UpdateStaffRequest
	if !readBody(w, r, &req) {
		return
	}
	ctx := r.Context()
	id := domain.StaffID(chi.URLParam(r, "staffId"))

	in := staff.UpdateInput{
		Name:  optionalStringFromNullable(req.Name),
		Email: optionalEmailFromNullable(req.Email),
	}
	var (
		e   domain.RosterEntry
		err error
	)
	if in.Name.IsSpecified() || in.Email.IsSpecified() || req.Active == nil {
		e, err = s.Staff.Update(ctx, me, id, in)
		if err != nil {
			writeAppError(w, r, s.Log, err)
			return
		}
	}
	if req.Active != nil {
		e, err = s.Staff.SetActive(ctx, me, id, *req.Active)
		if err != nil {
			writeAppError(w, r, s.Log, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, StaffMemberResponse{StaffMember: staffMemberFromDomain(e)})
}

func (s *Server) ImportStaff(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	es, err := s.Staff.ImportFromHistory(r.Context(), me)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, StaffListResponse{Staff: staffFromDomain(es)})
}

func (s *Server) ExportWorkbook(w http.ResponseWriter, r *http.Request) {
	me, ok := s.actor(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	ds, err := s.Deliveries.All(ctx, me)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	roster, err := s.Staff.List(ctx, me, true)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	wb, err := export.Report(ds, roster)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	defer func() { _ = wb.Close() }()

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(s.Clock.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := wb.WriteTo(w); err != nil {
		s.Log.Warn("export write failed", zap.Error(err))
	}
}

// helpers

func (s *Server) actor(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return domain.User{}, false
	}
	return u, true
}

func (s *Server) respondDelivery(w http.ResponseWriter, r *http.Request) func(domain.Delivery, error) {
	return func(d domain.Delivery, err error) {
		if err != nil {
			writeAppError(w, r, s.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, DeliveryResponse{Delivery: deliveryFromDomain(d)})
	}
}

func deliveryID(r *http.Request) domain.DeliveryID {
	return domain.DeliveryID(chi.URLParam(r, "deliveryId"))
}

func authResponse(res session.Result) AuthResponse {
	return AuthResponse{
		Token:     res.Token,
		ExpiresAt: res.Session.ExpiresAt.UTC(),
		User:      userFromDomain(res.Session.User),
	}
}

func hashCreateDeliveryBody(b CreateDeliveryRequest) (string, error) {
	canon := b
	canon.Source = domain.NormalizePlace(canon.Source)
	canon.Destination = domain.NormalizePlace(canon.Destination)
	if canon.Notes != nil {
		v := strings.TrimSpace(*canon.Notes)
		canon.Notes = &v
	}
	if canon.ContactPhone != nil {
		v := strings.TrimSpace(*canon.ContactPhone)
		canon.ContactPhone = &v
	}
	raw, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
