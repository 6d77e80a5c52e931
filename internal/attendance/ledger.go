package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staffattend/internal/settings"
	"staffattend/internal/table"
)

// Status is assigned once at check-in.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusLate    Status = "LATE"
)

// State of a staff member for one date.
type State int

const (
	Absent State = iota
	CheckedIn
	CheckedOut
)

func (s State) String() string {
	switch s {
	case CheckedIn:
		return "checked_in"
	case CheckedOut:
		return "checked_out"
	default:
		return "absent"
	}
}

// Action is the transition a scan performed.
type Action string

const (
	ActionCheckIn  Action = "checkin"
	ActionCheckOut Action = "checkout"
)

// Policy decides which transition a valid scan attempts.
type Policy string

const (
	// StateDriven performs whichever transition the current record allows.
	StateDriven Policy = "state"
	// TimeGated checks in strictly before the cutoff and checks out at or after it.
	TimeGated Policy = "time"
)

// ParsePolicy maps configuration text to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", StateDriven:
		return StateDriven, nil
	case TimeGated:
		return TimeGated, nil
	default:
		return "", fmt.Errorf("unknown dispatch policy %q", s)
	}
}

var (
	ErrAlreadyCheckedIn  = errors.New("already checked in today")
	ErrNotCheckedIn      = errors.New("not checked in today")
	ErrAlreadyCheckedOut = errors.New("attendance already complete today")
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// DateOf returns the ledger date key for t.
func DateOf(t time.Time) string { return t.Format(dateLayout) }

// Columns is the attendance table header.
var Columns = []string{"date", "staff_id", "check_in_time", "check_out_time", "status"}

// Record is one staff member's attendance for one date. Empty times are unset.
type Record struct {
	Date     string `json:"date"`
	StaffID  string `json:"staff_id"`
	CheckIn  string `json:"check_in_time"`
	CheckOut string `json:"check_out_time"`
	Status   Status `json:"status"`
}

// State derives the state machine position of r.
func (r Record) State() State {
	switch {
	case r.CheckIn == "":
		return Absent
	case r.CheckOut == "":
		return CheckedIn
	default:
		return CheckedOut
	}
}

// Ledger holds at most one record per staff member and date.
type Ledger struct {
	store *table.Store
}

// NewLedger creates a ledger on b.
func NewLedger(b table.Backend) *Ledger {
	return &Ledger{store: table.NewStore(b, Columns...)}
}

// CheckIn creates today's record for staffID. The status is PRESENT when now
// is at or before cutoff and LATE otherwise.
func (l *Ledger) CheckIn(ctx context.Context, staffID string, now time.Time, cutoff settings.Clock) (Record, error) {
	var rec Record
	err := l.store.Update(ctx, func(t *table.Table) error {
		var err error
		rec, err = checkIn(t, staffID, now, cutoff)
		return err
	})
	return rec, err
}

// CheckOut stamps the check-out time on today's record for staffID.
func (l *Ledger) CheckOut(ctx context.Context, staffID string, now time.Time) (Record, error) {
	var rec Record
	err := l.store.Update(ctx, func(t *table.Table) error {
		var err error
		rec, err = checkOut(t, staffID, now)
		return err
	})
	return rec, err
}

// Apply performs the transition chosen by policy in a single locked update.
func (l *Ledger) Apply(ctx context.Context, staffID string, now time.Time, cutoff settings.Clock, policy Policy) (Record, Action, error) {
	var (
		rec    Record
		action Action
	)
	err := l.store.Update(ctx, func(t *table.Table) error {
		action = chooseAction(*t, staffID, now, cutoff, policy)
		var err error
		if action == ActionCheckIn {
			rec, err = checkIn(t, staffID, now, cutoff)
		} else {
			rec, err = checkOut(t, staffID, now)
		}
		return err
	})
	return rec, action, err
}

// Lookup returns the record of staffID on date, if any.
func (l *Ledger) Lookup(ctx context.Context, staffID, date string) (Record, bool, error) {
	var (
		rec   Record
		found bool
	)
	err := l.store.View(ctx, func(t table.Table) error {
		if i := find(t, staffID, date); i >= 0 {
			rec, found = recordAt(t, i), true
		}
		return nil
	})
	return rec, found, err
}

// State returns where staffID stands on date.
func (l *Ledger) State(ctx context.Context, staffID, date string) (State, error) {
	rec, _, err := l.Lookup(ctx, staffID, date)
	return rec.State(), err
}

// ForDate returns the records of one date in insertion order.
func (l *Ledger) ForDate(ctx context.Context, date string) ([]Record, error) {
	return l.filter(ctx, func(r Record) bool { return r.Date == date })
}

// ForStaff returns every record of one staff member in insertion order.
func (l *Ledger) ForStaff(ctx context.Context, staffID string) ([]Record, error) {
	return l.filter(ctx, func(r Record) bool { return r.StaffID == staffID })
}

// All returns every record in insertion order.
func (l *Ledger) All(ctx context.Context) ([]Record, error) {
	return l.filter(ctx, func(Record) bool { return true })
}

func (l *Ledger) filter(ctx context.Context, keep func(Record) bool) ([]Record, error) {
	out := []Record{}
	err := l.store.View(ctx, func(t table.Table) error {
		for i := range t.Rows {
			if r := recordAt(t, i); keep(r) {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

func chooseAction(t table.Table, staffID string, now time.Time, cutoff settings.Clock, policy Policy) Action {
	if policy == TimeGated {
		if cutoff.Before(now) {
			return ActionCheckIn
		}
		return ActionCheckOut
	}
	if find(t, staffID, DateOf(now)) < 0 {
		return ActionCheckIn
	}
	return ActionCheckOut
}

func checkIn(t *table.Table, staffID string, now time.Time, cutoff settings.Clock) (Record, error) {
	date := DateOf(now)
	if find(*t, staffID, date) >= 0 {
		return Record{}, ErrAlreadyCheckedIn
	}
	status := StatusLate
	if cutoff.OnTime(now) {
		status = StatusPresent
	}
	rec := Record{
		Date:    date,
		StaffID: staffID,
		CheckIn: now.Format(timeLayout),
		Status:  status,
	}
	t.Append(map[string]string{
		"date":           rec.Date,
		"staff_id":       rec.StaffID,
		"check_in_time":  rec.CheckIn,
		"check_out_time": "",
		"status":         string(rec.Status),
	})
	return rec, nil
}

func checkOut(t *table.Table, staffID string, now time.Time) (Record, error) {
	i := find(*t, staffID, DateOf(now))
	if i < 0 {
		return Record{}, ErrNotCheckedIn
	}
	rec := recordAt(*t, i)
	switch rec.State() {
	case Absent:
		return Record{}, ErrNotCheckedIn
	case CheckedOut:
		return rec, ErrAlreadyCheckedOut
	}
	rec.CheckOut = now.Format(timeLayout)
	t.SetCell(i, "check_out_time", rec.CheckOut)
	return rec, nil
}

func find(t table.Table, staffID, date string) int {
	return t.Find(map[string]string{"staff_id": staffID, "date": date})
}

func recordAt(t table.Table, i int) Record {
	return Record{
		Date:     t.Cell(i, "date"),
		StaffID:  t.Cell(i, "staff_id"),
		CheckIn:  t.Cell(i, "check_in_time"),
		CheckOut: t.Cell(i, "check_out_time"),
		Status:   Status(t.Cell(i, "status")),
	}
}
