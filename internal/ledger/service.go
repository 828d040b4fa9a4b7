package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/tap2go/tap2go/internal/clock"
)

// DefaultMinWithdrawal is the smallest withdrawal accepted, in minor units.
const DefaultMinWithdrawal int64 = 1000

// Service implements balance accounting, the withdrawal workflow, statements
// and issue reports on top of a Store.
type Service struct {
	store         Store
	clock         clock.Clock
	newID         func() string
	minWithdrawal int64
	location      *time.Location
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

func WithMinWithdrawal(minor int64) Option {
	return func(s *Service) {
		if minor > 0 {
			s.minWithdrawal = minor
		}
	}
}

// WithStatementLocation sets the time zone that defines calendar months for statements.
func WithStatementLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		clock:         clock.RealClock{},
		newID:         uuid.NewString,
		minWithdrawal: DefaultMinWithdrawal,
		location:      time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) MinWithdrawal() int64 {
	return s.minWithdrawal
}

func (s *Service) Store() Store {
	return s.store
}
