package tests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"sharewheels/internal/domain"
	"sharewheels/internal/events"
	"sharewheels/internal/redis"
	"sharewheels/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is an in-memory RideRepository. Rides are cloned on the
// way in and out so callers never share state with the store.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32
	DeleteCallCount int32

	// Error injection
	CreateError error
	UpdateError error
	DeleteError error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride.Clone()
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rides[ride.ID]; exists {
		return repository.ErrDuplicate
	}
	m.rides[ride.ID] = ride.Clone()
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ride.Clone(), nil
}

func (m *MockRideRepository) Find(ctx context.Context, filter repository.RideFilter) ([]*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids map[string]bool
	if filter.IDs != nil {
		ids = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}

	var result []*domain.Ride
	for _, r := range m.rides {
		if filter.FromCity != "" && r.From.City != filter.FromCity {
			continue
		}
		if filter.ToCity != "" && r.To.City != filter.ToCity {
			continue
		}
		if filter.Date != nil {
			start, end := filter.DayBounds()
			if r.DepartureTime.Before(start) || !r.DepartureTime.Before(end) {
				continue
			}
		}
		if filter.MinSeats > 0 && r.AvailableSeats < filter.MinSeats {
			continue
		}
		if ids != nil && !ids[r.ID] {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		result = append(result, r.Clone())
	}

	sortByDeparture(result, true)
	return result, nil
}

func (m *MockRideRepository) FindByUser(ctx context.Context, userID string) ([]*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Ride
	for _, r := range m.rides {
		if r.DriverID == userID || r.Roster().Includes(userID) {
			result = append(result, r.Clone())
		}
	}
	sortByDeparture(result, true)
	return result, nil
}

func (m *MockRideRepository) FindHistory(ctx context.Context, userID string) ([]*domain.Ride, []*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var completed, cancelled []*domain.Ride
	for _, r := range m.rides {
		switch r.Status {
		case domain.RideStatusCompleted:
			if r.DriverID == userID || r.Roster().Includes(userID, domain.PassengerStatusConfirmed) {
				completed = append(completed, r.Clone())
			}
		case domain.RideStatusCancelled:
			if r.DriverID == userID || r.Roster().Includes(userID, domain.PassengerStatusConfirmed, domain.PassengerStatusCancelled) {
				cancelled = append(cancelled, r.Clone())
			}
		}
	}
	sortByDeparture(completed, false)
	sortByDeparture(cancelled, false)
	return completed, cancelled, nil
}

func (m *MockRideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[ride.ID]; !ok {
		return repository.ErrNotFound
	}
	m.rides[ride.ID] = ride.Clone()
	return nil
}

func (m *MockRideRepository) Delete(ctx context.Context, id string) error {
	atomic.AddInt32(&m.DeleteCallCount, 1)
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rides, id)
	return nil
}

// GetRide returns a copy of the stored ride for test assertions.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil
	}
	return ride.Clone()
}

func (m *MockRideRepository) snapshot() map[string]*domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[string]*domain.Ride, len(m.rides))
	for id, r := range m.rides {
		snap[id] = r.Clone()
	}
	return snap
}

func (m *MockRideRepository) restore(snap map[string]*domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides = snap
}

func sortByDeparture(rides []*domain.Ride, asc bool) {
	sort.SliceStable(rides, func(i, j int) bool {
		if asc {
			return rides[i].DepartureTime.Before(rides[j].DepartureTime)
		}
		return rides[i].DepartureTime.After(rides[j].DepartureTime)
	})
}

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is an in-memory BookingRepository.
type MockBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32
	DeleteCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockBookingRepository creates a new mock booking repository.
func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{
		bookings: make(map[string]*domain.Booking),
	}
}

// AddBooking adds a booking to the mock repository.
func (m *MockBookingRepository) AddBooking(booking *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *booking
	m.bookings[booking.ID] = &copy
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *booking
	m.bookings[booking.ID] = &copy
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	booking, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *booking
	return &copy, nil
}

func (m *MockBookingRepository) FindByPassenger(ctx context.Context, passengerID string) ([]*domain.Booking, error) {
	return m.findBy(func(b *domain.Booking) bool { return b.PassengerID == passengerID }), nil
}

func (m *MockBookingRepository) FindByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error) {
	return m.findBy(func(b *domain.Booking) bool { return b.DriverID == driverID }), nil
}

func (m *MockBookingRepository) CountByRideAndStatus(ctx context.Context, rideID string, statuses ...domain.BookingStatus) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, b := range m.bookings {
		if b.RideID != rideID {
			continue
		}
		for _, s := range statuses {
			if b.Status == s {
				count++
				break
			}
		}
	}
	return count, nil
}

func (m *MockBookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[booking.ID]; !ok {
		return repository.ErrNotFound
	}
	copy := *booking
	m.bookings[booking.ID] = &copy
	return nil
}

func (m *MockBookingRepository) Delete(ctx context.Context, id string) error {
	atomic.AddInt32(&m.DeleteCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.bookings, id)
	return nil
}

func (m *MockBookingRepository) DeleteByRideAndStatus(ctx context.Context, rideID string, status domain.BookingStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, b := range m.bookings {
		if b.RideID == rideID && b.Status == status {
			delete(m.bookings, id)
			removed++
		}
	}
	return removed, nil
}

// GetBooking returns the stored booking for test assertions.
func (m *MockBookingRepository) GetBooking(id string) *domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	booking, ok := m.bookings[id]
	if !ok {
		return nil
	}
	copy := *booking
	return &copy
}

// CountBookings returns the number of stored bookings.
func (m *MockBookingRepository) CountBookings() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bookings)
}

func (m *MockBookingRepository) findBy(match func(*domain.Booking) bool) []*domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Booking
	for _, b := range m.bookings {
		if match(b) {
			copy := *b
			result = append(result, &copy)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (m *MockBookingRepository) snapshot() map[string]*domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[string]*domain.Booking, len(m.bookings))
	for id, b := range m.bookings {
		copy := *b
		snap[id] = &copy
	}
	return snap
}

func (m *MockBookingRepository) restore(snap map[string]*domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings = snap
}

// ──────────────────────────────────────────────
// MOCK USER REPOSITORY
// ──────────────────────────────────────────────

// MockUserRepository is an in-memory UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User

	// Counters for verification
	AddEarningsCallCount int32

	// Error injection
	CreateError      error
	AddEarningsError error
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*domain.User),
	}
}

// AddUser adds a user to the mock repository.
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *user
	m.users[user.ID] = &copy
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockUserRepository) AddEarnings(ctx context.Context, id string, delta float64) error {
	atomic.AddInt32(&m.AddEarningsCallCount, 1)
	if m.AddEarningsError != nil {
		return m.AddEarningsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.TotalEarnings += delta
	return nil
}

// Earnings returns the user's total earnings for test assertions.
func (m *MockUserRepository) Earnings(id string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		return u.TotalEarnings
	}
	return 0
}

func (m *MockUserRepository) snapshot() map[string]*domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[string]*domain.User, len(m.users))
	for id, u := range m.users {
		copy := *u
		snap[id] = &copy
	}
	return snap
}

func (m *MockUserRepository) restore(snap map[string]*domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = snap
}

// ──────────────────────────────────────────────
// MOCK TX MANAGER
// ──────────────────────────────────────────────

// MockTxManager runs fn against the mock repositories and restores their
// previous contents when fn fails. Transactions are serialized.
type MockTxManager struct {
	mu       sync.Mutex
	rides    *MockRideRepository
	bookings *MockBookingRepository
	users    *MockUserRepository

	// Counters
	CommitCount   int32
	RollbackCount int32
}

// NewMockTxManager creates a new mock transaction manager.
func NewMockTxManager(rides *MockRideRepository, bookings *MockBookingRepository, users *MockUserRepository) *MockTxManager {
	return &MockTxManager{rides: rides, bookings: bookings, users: users}
}

func (m *MockTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, stores repository.Stores) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rides := m.rides.snapshot()
	bookings := m.bookings.snapshot()
	users := m.users.snapshot()

	err := fn(ctx, repository.Stores{
		Rides:    m.rides,
		Bookings: m.bookings,
		Users:    m.users,
	})
	if err != nil {
		atomic.AddInt32(&m.RollbackCount, 1)
		m.rides.restore(rides)
		m.bookings.restore(bookings)
		m.users.restore(users)
		return err
	}

	atomic.AddInt32(&m.CommitCount, 1)
	return nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:ride:" + rideID
	if expiry, exists := m.locks[key]; exists {
		if time.Now().Before(expiry) {
			return false, nil // Lock still held.
		}
	}

	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseRideLock(ctx context.Context, rideID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, "lock:ride:"+rideID)
	return nil
}

// IsLocked checks if a ride is locked (for test assertions).
func (m *MockLockStore) IsLocked(rideID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, exists := m.locks["lock:ride:"+rideID]
	return exists && time.Now().Before(expiry)
}

// ──────────────────────────────────────────────
// MOCK RIDE CACHE
// ──────────────────────────────────────────────

// MockRideCache is a mock implementation of RideCacheInterface.
// Invalidated rides stay held and refuse fills, like the Redis tombstone.
type MockRideCache struct {
	mu    sync.Mutex
	rides map[string]*domain.Ride
	held  map[string]bool

	// Counters
	HitCount        int32
	MissCount       int32
	InvalidateCount int32

	// Error injection
	GetError error
	SetError error
}

// NewMockRideCache creates a new mock ride cache.
func NewMockRideCache() *MockRideCache {
	return &MockRideCache{
		rides: make(map[string]*domain.Ride),
		held:  make(map[string]bool),
	}
}

func (m *MockRideCache) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		atomic.AddInt32(&m.MissCount, 1)
		return nil, nil
	}
	atomic.AddInt32(&m.HitCount, 1)
	return ride.Clone(), nil
}

func (m *MockRideCache) SetRide(ctx context.Context, ride *domain.Ride) error {
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[ride.ID] {
		return nil
	}
	if _, ok := m.rides[ride.ID]; !ok {
		m.rides[ride.ID] = ride.Clone()
	}
	return nil
}

func (m *MockRideCache) InvalidateRide(ctx context.Context, rideID string) error {
	atomic.AddInt32(&m.InvalidateCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rides, rideID)
	m.held[rideID] = true
	return nil
}

// ReleaseHold lets fills for the ride through again, as when the tombstone
// expires.
func (m *MockRideCache) ReleaseHold(rideID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, rideID)
}

// IsCached reports whether the ride is cached.
func (m *MockRideCache) IsCached(rideID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rides[rideID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK GEO INDEX
// ──────────────────────────────────────────────

// MockGeoIndex is a mock implementation of GeoIndexInterface.
type MockGeoIndex struct {
	mu        sync.RWMutex
	locations []redis.RideLocation

	// Error injection
	AddRideError         error
	FindNearbyRidesError error
}

// NewMockGeoIndex creates a new mock geo index.
func NewMockGeoIndex() *MockGeoIndex {
	return &MockGeoIndex{
		locations: make([]redis.RideLocation, 0),
	}
}

func (m *MockGeoIndex) AddRide(ctx context.Context, rideID string, lat, lng float64) error {
	if m.AddRideError != nil {
		return m.AddRideError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.RideID == rideID {
			m.locations[i].Lat = lat
			m.locations[i].Lng = lng
			return nil
		}
	}
	m.locations = append(m.locations, redis.RideLocation{RideID: rideID, Lat: lat, Lng: lng})
	return nil
}

// FindNearbyRides returns every indexed ride (mock doesn't do real geo filtering).
func (m *MockGeoIndex) FindNearbyRides(ctx context.Context, lat, lng, radiusKm float64) ([]redis.RideLocation, error) {
	if m.FindNearbyRidesError != nil {
		return nil, m.FindNearbyRidesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]redis.RideLocation, len(m.locations))
	copy(result, m.locations)
	return result, nil
}

func (m *MockGeoIndex) RemoveRide(ctx context.Context, rideID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.RideID == rideID {
			m.locations = append(m.locations[:i], m.locations[i+1:]...)
			return nil
		}
	}
	return nil
}

// HasRide checks if a ride origin is indexed.
func (m *MockGeoIndex) HasRide(rideID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, loc := range m.locations {
		if loc.RideID == rideID {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────
// MOCK EVENT PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []events.Event

	// Error injection
	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishError != nil {
		return m.PublishError
	}
	m.events = append(m.events, event)
	return nil
}

// Types returns the types of published events in order.
func (m *MockPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

// Last returns the most recent event of the given type.
func (m *MockPublisher) Last(eventType string) (events.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Type == eventType {
			return m.events[i], true
		}
	}
	return events.Event{}, false
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)

// Ensure mocks implement the interfaces they stand in for.
var (
	_ repository.RideRepository    = (*MockRideRepository)(nil)
	_ repository.BookingRepository = (*MockBookingRepository)(nil)
	_ repository.UserRepository    = (*MockUserRepository)(nil)
	_ repository.TxManager         = (*MockTxManager)(nil)
	_ redis.LockStoreInterface     = (*MockLockStore)(nil)
	_ redis.RideCacheInterface     = (*MockRideCache)(nil)
	_ redis.GeoIndexInterface      = (*MockGeoIndex)(nil)
	_ events.Publisher             = (*MockPublisher)(nil)
)
