package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"staffattend/internal/dailytoken"
	"staffattend/internal/geo"
	"staffattend/internal/metrics"
	"staffattend/internal/queue"
	"staffattend/internal/session"
	"staffattend/internal/settings"
)

// ErrOutOfGeofence is returned when a scan is submitted too far from school.
var ErrOutOfGeofence = errors.New("outside the school radius")

// EventType tags ledger transition messages on the queue.
const EventType = "attendance"

// Publisher sends audit messages.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// EvidenceStore keeps the capture of a successful scan and returns its URL.
type EvidenceStore interface {
	StoreEvidence(ctx context.Context, name string, data []byte) (string, error)
}

// ScanRequest is one staff submission: where they are and what the camera saw.
type ScanRequest struct {
	Location geo.Point
	Image    []byte
}

// ScanResult reports the transition performed by a scan.
type ScanResult struct {
	Action   Action  `json:"action,omitempty"`
	Record   Record  `json:"record"`
	Distance float64 `json:"distance_meters"`
	Radius   float64 `json:"radius_meters"`
}

// Options holds the optional collaborators of a Service.
type Options struct {
	Policy   Policy
	Events   Publisher
	Evidence EvidenceStore
}

// Service runs the staff scan flow: geofence, daily token, then the ledger.
type Service struct {
	ledger   *Ledger
	settings *settings.Store
	tokens   *dailytoken.Generator
	opts     Options

	// mu makes the config read, checks and ledger write of one scan atomic
	// with respect to other scans.
	mu sync.Mutex
}

// NewService wires the scan flow.
func NewService(ledger *Ledger, cfg *settings.Store, tokens *dailytoken.Generator, opts Options) *Service {
	if opts.Policy == "" {
		opts.Policy = StateDriven
	}
	return &Service{ledger: ledger, settings: cfg, tokens: tokens, opts: opts}
}

// Ledger exposes the underlying ledger for reporting.
func (s *Service) Ledger() *Ledger { return s.ledger }

// Distance reports how far p is from school and whether it is inside the fence.
func (s *Service) Distance(ctx context.Context, p geo.Point) (float64, bool, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return 0, false, err
	}
	d, ok := cfg.Fence.Check(p)
	return d, ok, nil
}

// Scan validates a submission for the session's own identity and records the
// resulting check-in or check-out. Nothing is written unless every check passes.
func (s *Service) Scan(ctx context.Context, sess session.Session, req ScanRequest) (ScanResult, error) {
	// Decode outside the lock; it is the slow part.
	decoded, decodeErr := s.tokens.Decode(req.Image)

	res, err := s.scan(ctx, sess.Username, req.Location, decoded, decodeErr)
	metrics.Scans.WithLabelValues(outcome(res, err)).Inc()
	if err != nil {
		return res, err
	}

	evt := Event{
		ID:        uuid.NewString(),
		StaffID:   sess.Username,
		Action:    string(res.Action),
		Status:    string(res.Record.Status),
		Date:      res.Record.Date,
		Latitude:  req.Location.Lat,
		Longitude: req.Location.Lon,
		DistanceM: res.Distance,
	}
	evt.When = s.tokens.Now().UTC()
	if s.opts.Evidence != nil {
		name := fmt.Sprintf("%s_%s_%s", sess.Username, res.Record.Date, res.Action)
		if url, err := s.opts.Evidence.StoreEvidence(ctx, name, req.Image); err != nil {
			log.Printf("evidence upload for %s failed: %v", sess.Username, err)
		} else {
			evt.ImageURL = url
		}
	}
	s.publish(ctx, evt)
	return res, nil
}

func (s *Service) scan(ctx context.Context, staffID string, p geo.Point, decoded string, decodeErr error) (ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tokens.Now()
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return ScanResult{}, err
	}
	dist, inside := cfg.Fence.Check(p)
	metrics.ScanDistance.Observe(dist)
	res := ScanResult{Distance: dist, Radius: cfg.Fence.RadiusMeters}
	if !inside {
		return res, fmt.Errorf("%w: %.0f m away, limit %.0f m", ErrOutOfGeofence, dist, cfg.Fence.RadiusMeters)
	}
	if decodeErr != nil {
		return res, decodeErr
	}
	if err := dailytoken.ValidateAt(decoded, now); err != nil {
		return res, err
	}

	rec, action, err := s.ledger.Apply(ctx, staffID, now, cfg.Cutoff, s.opts.Policy)
	res.Record, res.Action = rec, action
	return res, err
}

func (s *Service) publish(ctx context.Context, evt Event) {
	if s.opts.Events == nil {
		return
	}
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("encode event %s failed: %v", evt.ID, err)
		return
	}
	if err := s.opts.Events.Publish(ctx, queue.Message{Type: EventType, Body: body}); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

func outcome(res ScanResult, err error) string {
	switch {
	case err == nil:
		return string(res.Action)
	case errors.Is(err, ErrOutOfGeofence):
		return "out_of_geofence"
	case errors.Is(err, dailytoken.ErrUnreadable):
		return "token_unreadable"
	case errors.Is(err, dailytoken.ErrInvalid):
		return "token_invalid"
	case errors.Is(err, ErrAlreadyCheckedIn):
		return "already_checked_in"
	case errors.Is(err, ErrNotCheckedIn):
		return "not_checked_in"
	case errors.Is(err, ErrAlreadyCheckedOut):
		return "already_checked_out"
	default:
		return "error"
	}
}
