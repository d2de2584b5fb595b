package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"sharewheels/internal/app"
	"sharewheels/internal/auth"
	"sharewheels/internal/domain"
	"sharewheels/internal/handler"
	"sharewheels/internal/logger"
	"sharewheels/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// api drives the router the way an HTTP client would.
type api struct {
	t      *testing.T
	w      *workflow
	router *gin.Engine
	tokens *auth.JWTManager
}

func newAPI(t *testing.T, policy service.Policy) *api {
	t.Helper()

	w := newWorkflow(t, policy)
	tokens := auth.NewJWTManager("test-secret", "sharewheels", time.Hour)
	log := logger.Discard()

	router := app.NewRouter(app.RouterDeps{
		RideHandler:    handler.NewRideHandler(w.rideService, w.paymentService, log),
		BookingHandler: handler.NewBookingHandler(w.bookingService, log),
		UserHandler:    handler.NewUserHandler(w.userService, tokens, log),
		Tokens:         tokens,
		Log:            log,
	})

	return &api{t: t, w: w, router: router, tokens: tokens}
}

func (a *api) token(userID string, role domain.UserRole) string {
	a.t.Helper()
	token, err := a.tokens.GenerateToken(userID, role)
	if err != nil {
		a.t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func rideBody(seats int, price float64) handler.CreateRideRequest {
	return handler.CreateRideRequest{
		Vehicle:        handler.VehicleBody{Model: "Swift", Color: "red", LicensePlate: "KA02XY9876"},
		From:           handler.PlaceBody{City: "Bengaluru", Address: "Indiranagar", Coordinates: &handler.CoordinatesBody{Lat: 12.97, Lng: 77.64}},
		To:             handler.PlaceBody{City: "Mysuru", Address: "Chamundi Hill"},
		DepartureTime:  time.Date(2026, 11, 5, 7, 0, 0, 0, time.UTC),
		AvailableSeats: seats,
		PricePerSeat:   price,
	}
}

// ──────────────────────────────────────────────
// HTTP SURFACE
// ──────────────────────────────────────────────

func TestHTTP_Health(t *testing.T) {
	t.Parallel()

	a := newAPI(t, service.Policy{})
	expectStatus(t, a.do(http.MethodGet, "/health", "", nil), http.StatusOK)
}

func TestHTTP_RegisterIssuesUsableToken(t *testing.T) {
	t.Parallel()

	a := newAPI(t, service.Policy{})

	rec := a.do(http.MethodPost, "/v1/users/register", "", handler.RegisterUserRequest{
		Name:  "Arjun",
		Email: "arjun@example.com",
		Role:  "driver",
	})
	expectStatus(t, rec, http.StatusCreated)
	registered := decode[handler.RegisterUserResponse](t, rec)
	if registered.Token == "" || registered.User.Role != "driver" {
		t.Fatalf("unexpected registration response: %+v", registered)
	}

	rec = a.do(http.MethodPost, "/v1/rides", registered.Token, rideBody(3, 100))
	expectStatus(t, rec, http.StatusCreated)
	ride := decode[handler.RideResponse](t, rec)
	if ride.Driver != registered.User.ID {
		t.Errorf("expected ride driven by %s, got %s", registered.User.ID, ride.Driver)
	}

	rec = a.do(http.MethodPost, "/v1/users/register", "", handler.RegisterUserRequest{
		Name:  "Arjun again",
		Email: "arjun@example.com",
	})
	expectStatus(t, rec, http.StatusConflict)
}

func TestHTTP_AuthRequired(t *testing.T) {
	t.Parallel()

	a := newAPI(t, service.Policy{})

	expectStatus(t, a.do(http.MethodPost, "/v1/rides", "", rideBody(3, 100)), http.StatusUnauthorized)
	expectStatus(t, a.do(http.MethodPost, "/v1/rides", "garbage", rideBody(3, 100)), http.StatusUnauthorized)

	other := auth.NewJWTManager("other-secret", "sharewheels", time.Hour)
	forged, err := other.GenerateToken(driverID, domain.UserRoleDriver)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	expectStatus(t, a.do(http.MethodPost, "/v1/rides", forged, rideBody(3, 100)), http.StatusUnauthorized)

	// Reads are public.
	expectStatus(t, a.do(http.MethodGet, "/v1/rides", "", nil), http.StatusOK)
}

func TestHTTP_BookingFlow(t *testing.T) {
	t.Parallel()

	a := newAPI(t, service.Policy{})
	driver := a.token(driverID, domain.UserRoleDriver)
	passenger := a.token(passengerID, domain.UserRolePassenger)

	rec := a.do(http.MethodPost, "/v1/rides", driver, rideBody(3, 100))
	expectStatus(t, rec, http.StatusCreated)
	ride := decode[handler.RideResponse](t, rec)

	rec = a.do(http.MethodPost, "/v1/bookings", passenger, handler.CreateBookingRequest{
		Ride:            ride.ID,
		Seats:           2,
		PickupLocation:  "Indiranagar Metro",
		DropoffLocation: "Mysuru Bus Stand",
		Price:           200,
	})
	expectStatus(t, rec, http.StatusCreated)
	booking := decode[handler.BookingResponse](t, rec)
	if booking.Status != "pending" || booking.SpecialRequests != "none" {
		t.Errorf("unexpected booking: %+v", booking)
	}

	// The passenger cannot accept their own booking.
	expectStatus(t, a.do(http.MethodPut, "/v1/bookings/"+booking.ID+"/status", passenger,
		handler.StatusRequest{Status: "accepted"}), http.StatusForbidden)

	rec = a.do(http.MethodPut, "/v1/bookings/"+booking.ID+"/status", driver, handler.StatusRequest{Status: "accepted"})
	expectStatus(t, rec, http.StatusOK)

	rec = a.do(http.MethodGet, "/v1/rides/"+ride.ID, "", nil)
	expectStatus(t, rec, http.StatusOK)
	got := decode[handler.RideResponse](t, rec)
	if got.AvailableSeats != 1 || len(got.Passengers) != 1 || got.Passengers[0].Status != "confirmed" {
		t.Errorf("unexpected ride after accept: %+v", got)
	}

	rec = a.do(http.MethodPut, "/v1/rides/"+ride.ID+"/pay", passenger, nil)
	expectStatus(t, rec, http.StatusOK)
	receipt := decode[handler.ReceiptResponse](t, rec)
	if receipt.Amount != 200 {
		t.Errorf("expected amount 200, got %v", receipt.Amount)
	}

	expectStatus(t, a.do(http.MethodPut, "/v1/rides/"+ride.ID+"/pay", passenger, nil), http.StatusConflict)
	expectStatus(t, a.do(http.MethodDelete, "/v1/rides/"+ride.ID, driver, nil), http.StatusConflict)

	rec = a.do(http.MethodGet, "/v1/bookings/driver", driver, nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]handler.BookingResponse](t, rec); len(list) != 1 {
		t.Errorf("expected 1 driver booking, got %d", len(list))
	}

	rec = a.do(http.MethodGet, "/v1/rides/mine", passenger, nil)
	expectStatus(t, rec, http.StatusOK)
	if mine := decode[[]handler.RideResponse](t, rec); len(mine) != 1 {
		t.Errorf("expected 1 ride for passenger, got %d", len(mine))
	}
}

func TestHTTP_MyBookings_UsesTokenRole(t *testing.T) {
	t.Parallel()

	a := newAPI(t, service.Policy{})
	ride := a.w.createRide(t, 3, 100)
	a.w.book(t, ride.ID, passengerID, 1, 100)

	testCases := []struct {
		name   string
		token  string
		status int
		want   int
	}{
		{"driver sees bookings on their rides", a.token(driverID, domain.UserRoleDriver), http.StatusOK, 1},
		{"passenger sees their own bookings", a.token(passengerID, domain.UserRolePassenger), http.StatusOK, 1},
		{"driver role without rides", a.token(otherID, domain.UserRoleDriver), http.StatusOK, 0},
		{"unknown role", a.token(passengerID, "admin"), http.StatusBadRequest, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := a.do(http.MethodGet, "/v1/bookings", tc.token, nil)
			expectStatus(t, rec, tc.status)
			if tc.status != http.StatusOK {
				return
			}
			if list := decode[[]handler.BookingResponse](t, rec); len(list) != tc.want {
				t.Errorf("expected %d bookings, got %d", tc.want, len(list))
			}
		})
	}
}

func TestHTTP_PassengerEntryAndStatusRoutes(t *testing.T) {
	t.Parallel()

	a := newAPI(t, service.Policy{})
	driver := a.token(driverID, domain.UserRoleDriver)
	passenger := a.token(passengerID, domain.UserRolePassenger)

	ride := a.w.createRide(t, 3, 100)
	a.w.accept(t, a.w.book(t, ride.ID, passengerID, 1, 100).ID)
	entry, _ := a.w.rides.GetRide(ride.ID).Roster().ByUser(passengerID)

	rec := a.do(http.MethodPut, "/v1/rides/"+ride.ID+"/passengers/"+entry.ID+"/status", passenger,
		handler.StatusRequest{Status: "cancelled"})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[handler.PassengerResponse](t, rec); got.Status != "cancelled" {
		t.Errorf("expected cancelled entry, got %s", got.Status)
	}

	expectStatus(t, a.do(http.MethodPut, "/v1/rides/"+ride.ID+"/status", driver,
		handler.StatusRequest{Status: "completed"}), http.StatusOK)

	rec = a.do(http.MethodGet, "/v1/rides/history/"+driverID, passenger, nil)
	expectStatus(t, rec, http.StatusOK)
	history := decode[handler.RideHistoryResponse](t, rec)
	if len(history.Completed) != 1 {
		t.Errorf("expected 1 completed ride, got %d", len(history.Completed))
	}
}

func TestHTTP_ErrorMapping(t *testing.T) {
	t.Parallel()

	a := newAPI(t, service.Policy{})
	driver := a.token(driverID, domain.UserRoleDriver)
	passenger := a.token(passengerID, domain.UserRolePassenger)
	ride := a.w.createRide(t, 3, 100)

	notes := "quiet ride"
	testCases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"unknown ride", http.MethodGet, "/v1/rides/nope", "", nil, http.StatusNotFound},
		{"bad date", http.MethodGet, "/v1/rides?date=tomorrow", "", nil, http.StatusBadRequest},
		{"bad seats", http.MethodGet, "/v1/rides?seats=many", "", nil, http.StatusBadRequest},
		{"bad near", http.MethodGet, "/v1/rides?near=1,2", "", nil, http.StatusBadRequest},
		{"zero seats", http.MethodPost, "/v1/rides", driver, rideBody(0, 100), http.StatusBadRequest},
		{"non-driver update", http.MethodPut, "/v1/rides/" + ride.ID, passenger, handler.UpdateRideRequest{Notes: &notes}, http.StatusForbidden},
		{"bad ride status", http.MethodPut, "/v1/rides/" + ride.ID + "/status", driver, handler.StatusRequest{Status: "flying"}, http.StatusBadRequest},
		{"pay without seat", http.MethodPut, "/v1/rides/" + ride.ID + "/pay", passenger, nil, http.StatusNotFound},
		{"unknown booking", http.MethodDelete, "/v1/bookings/nope", passenger, nil, http.StatusNotFound},
		{"missing booking fields", http.MethodPost, "/v1/bookings", passenger, handler.CreateBookingRequest{Ride: ride.ID}, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := a.do(tc.method, tc.path, tc.token, tc.body)
			expectStatus(t, rec, tc.want)
			if body := decode[handler.ErrorResponse](t, rec); body.Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestHTTP_StoreFailure_HidesDetails(t *testing.T) {
	t.Parallel()

	a := newAPI(t, service.Policy{})
	a.w.rides.CreateError = ErrMockTimeout

	rec := a.do(http.MethodPost, "/v1/rides", a.token(driverID, domain.UserRoleDriver), rideBody(3, 100))
	expectStatus(t, rec, http.StatusInternalServerError)
	if body := decode[handler.ErrorResponse](t, rec); body.Error != "internal server error" {
		t.Errorf("expected generic error, got %q", body.Error)
	}
}

func TestHTTP_InvalidJSON(t *testing.T) {
	t.Parallel()

	a := newAPI(t, service.Policy{})

	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+a.token(passengerID, domain.UserRolePassenger))
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusBadRequest)
}
