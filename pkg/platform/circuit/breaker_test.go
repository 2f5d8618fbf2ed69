package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
	now     time.Time
	breaker *Breaker
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.now = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.breaker = New("rpc",
		WithFailureThreshold(3),
		WithSuccessThreshold(2),
		WithCooldown(time.Minute),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *BreakerSuite) TestOpensAfterConsecutiveFailures() {
	boom := errors.New("dial tcp: connection refused")
	s.False(s.breaker.Record(boom))
	s.False(s.breaker.Record(boom))
	s.True(s.breaker.Record(boom))

	s.Equal(StateOpen, s.breaker.State())
	s.False(s.breaker.Allow())
}

func (s *BreakerSuite) TestSuccessResetsFailureCount() {
	boom := errors.New("boom")
	s.breaker.Record(boom)
	s.breaker.Record(boom)
	s.breaker.Record(nil)
	s.breaker.Record(boom)

	s.Equal(StateClosed, s.breaker.State())
}

func (s *BreakerSuite) TestHalfOpenAfterCooldown() {
	boom := errors.New("boom")
	for range 3 {
		s.breaker.Record(boom)
	}

	s.now = s.now.Add(time.Minute)
	s.Equal(StateHalfOpen, s.breaker.State())
	s.True(s.breaker.Allow())

	s.Run("failure while half-open reopens", func() {
		s.True(s.breaker.Record(boom))
		s.Equal(StateOpen, s.breaker.State())
	})

	s.Run("successes while half-open close", func() {
		s.now = s.now.Add(time.Minute)
		s.False(s.breaker.Record(nil))
		s.True(s.breaker.Record(nil))
		s.Equal(StateClosed, s.breaker.State())
	})
}

func (s *BreakerSuite) TestReset() {
	for range 3 {
		s.breaker.Record(errors.New("boom"))
	}
	s.breaker.Reset()
	s.Equal(StateClosed, s.breaker.State())
	s.Equal("closed", s.breaker.State().String())
	s.Equal("rpc", s.breaker.Name())
}
