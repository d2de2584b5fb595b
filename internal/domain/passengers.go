package domain

// PassengerStatus represents a passenger's standing on a ride.
type PassengerStatus string

const (
	PassengerStatusPending   PassengerStatus = "pending"
	PassengerStatusConfirmed PassengerStatus = "confirmed"
	PassengerStatusRejected  PassengerStatus = "rejected"
	PassengerStatusCancelled PassengerStatus = "cancelled"
)

// Valid reports whether s is a known passenger status.
func (s PassengerStatus) Valid() bool {
	switch s {
	case PassengerStatusPending, PassengerStatusConfirmed,
		PassengerStatusRejected, PassengerStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus represents whether a passenger has paid for their seats.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

// PickupLocation is where the driver collects a passenger.
type PickupLocation struct {
	Address     string
	Coordinates *Coordinates
}

// PassengerEntry is a passenger's seat record embedded in a ride.
type PassengerEntry struct {
	ID            string
	UserID        string
	Seats         int
	Status        PassengerStatus
	PaymentStatus PaymentStatus
	Pickup        PickupLocation
}

// HeldSeats returns the seats this entry deducts from the ride.
func (e PassengerEntry) HeldSeats() int {
	if e.Status == PassengerStatusConfirmed {
		return e.Seats
	}
	return 0
}

func (e PassengerEntry) normalized() PassengerEntry {
	if e.Seats < 1 {
		e.Seats = 1
	}
	if e.Status == "" {
		e.Status = PassengerStatusPending
	}
	if e.PaymentStatus == "" {
		e.PaymentStatus = PaymentStatusPending
	}
	return e
}

// Passengers is the ordered roster of a ride, indexed by user and entry id.
// A user has at most one entry; repeated upserts mutate it in place.
type Passengers struct {
	entries []PassengerEntry
	byUser  map[string]int
	byID    map[string]int
}

// NewPassengers builds a roster from stored entries. Later duplicates of a
// user are dropped.
func NewPassengers(entries []PassengerEntry) *Passengers {
	p := &Passengers{
		byUser: make(map[string]int, len(entries)),
		byID:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if _, dup := p.byUser[e.UserID]; dup {
			continue
		}
		p.add(e.normalized())
	}
	return p
}

func (p *Passengers) add(e PassengerEntry) {
	p.entries = append(p.entries, e)
	idx := len(p.entries) - 1
	p.byUser[e.UserID] = idx
	if e.ID != "" {
		p.byID[e.ID] = idx
	}
}

// Len returns the number of entries.
func (p *Passengers) Len() int { return len(p.entries) }

// All returns a copy of the entries in insertion order.
func (p *Passengers) All() []PassengerEntry {
	return append([]PassengerEntry(nil), p.entries...)
}

// ByUser returns the entry held by userID.
func (p *Passengers) ByUser(userID string) (*PassengerEntry, bool) {
	idx, ok := p.byUser[userID]
	if !ok {
		return nil, false
	}
	return &p.entries[idx], true
}

// ByID returns the entry with the given entry id.
func (p *Passengers) ByID(id string) (*PassengerEntry, bool) {
	idx, ok := p.byID[id]
	if !ok {
		return nil, false
	}
	return &p.entries[idx], true
}

// Upsert replaces the entry of e.UserID, or appends e if the user has none.
// The existing entry id is kept on replace.
func (p *Passengers) Upsert(e PassengerEntry) *PassengerEntry {
	e = e.normalized()
	if idx, ok := p.byUser[e.UserID]; ok {
		e.ID = p.entries[idx].ID
		p.entries[idx] = e
		return &p.entries[idx]
	}
	p.add(e)
	return &p.entries[len(p.entries)-1]
}

// ConfirmedSeats sums the seats of confirmed entries.
func (p *Passengers) ConfirmedSeats() int {
	total := 0
	for _, e := range p.entries {
		total += e.HeldSeats()
	}
	return total
}

// HasConfirmed reports whether any entry is confirmed.
func (p *Passengers) HasConfirmed() bool {
	for _, e := range p.entries {
		if e.Status == PassengerStatusConfirmed {
			return true
		}
	}
	return false
}

// Includes reports whether userID has an entry whose status is one of statuses.
// With no statuses any entry matches.
func (p *Passengers) Includes(userID string, statuses ...PassengerStatus) bool {
	e, ok := p.ByUser(userID)
	if !ok {
		return false
	}
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if e.Status == s {
			return true
		}
	}
	return false
}
