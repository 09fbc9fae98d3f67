package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/otpauth/internal/auth/domain"
	"github.com/aussiebroadwan/otpauth/internal/auth/service"
	"github.com/aussiebroadwan/otpauth/internal/auth/store"
	"github.com/aussiebroadwan/otpauth/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/otpauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/otpauth/pkg/clock"
	"github.com/aussiebroadwan/otpauth/pkg/cryptox"
	"github.com/aussiebroadwan/otpauth/pkg/idx"
	"github.com/aussiebroadwan/otpauth/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://auth.test"
	testPassword = "correct horse battery staple"
)

var (
	testAudience = []string{"otpauth-test"}
	testStart    = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
)

// sequence hands out codes in order, repeating the last one.
type sequence struct {
	mu    sync.Mutex
	codes []string
}

func (s *sequence) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := s.codes[0]
	if len(s.codes) > 1 {
		s.codes = s.codes[1:]
	}
	return code, nil
}

// outbox records deliveries and fails while err is set.
type outbox struct {
	mu    sync.Mutex
	codes map[string][]string
	err   error
}

func (o *outbox) Deliver(_ context.Context, address, code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	if o.codes == nil {
		o.codes = make(map[string][]string)
	}
	o.codes[address] = append(o.codes[address], code)
	return nil
}

func (o *outbox) sent(address string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.codes[address]...)
}

// countingChallenges counts every call that reaches the driver.
type countingChallenges struct {
	store.Challenges
	calls atomic.Int32

	// afterGet, when set, runs once a challenge has been read.
	afterGet func(c domain.Challenge)
}

func (c *countingChallenges) PutChallenge(ctx context.Context, ch domain.Challenge) error {
	c.calls.Add(1)
	return c.Challenges.PutChallenge(ctx, ch)
}

func (c *countingChallenges) GetChallenge(ctx context.Context, owner string) (domain.Challenge, error) {
	c.calls.Add(1)
	ch, err := c.Challenges.GetChallenge(ctx, owner)
	if err == nil && c.afterGet != nil {
		c.afterGet(ch)
	}
	return ch, err
}

func (c *countingChallenges) IncrementChallengeAttempts(ctx context.Context, owner, id string, limit int) (int, bool, error) {
	c.calls.Add(1)
	return c.Challenges.IncrementChallengeAttempts(ctx, owner, id, limit)
}

func (c *countingChallenges) DeleteChallenge(ctx context.Context, owner string) error {
	c.calls.Add(1)
	return c.Challenges.DeleteChallenge(ctx, owner)
}

func (c *countingChallenges) DeleteChallengeInstance(ctx context.Context, owner, id string) (bool, error) {
	c.calls.Add(1)
	return c.Challenges.DeleteChallengeInstance(ctx, owner, id)
}

type harness struct {
	svc        *service.AuthService
	clock      *clock.Manual
	store      *sqlite.Store
	challenges *countingChallenges
	codes      *sequence
	outbox     *outbox
	keys       *jwtx.KeyManager
	hasher     *cryptox.PasswordHasher
}

type harnessOptions struct {
	challengeTTL time.Duration
	maxAttempts  int
	codes        []string
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	if opts.challengeTTL == 0 {
		opts.challengeTTL = time.Minute
	}
	if opts.maxAttempts == 0 {
		opts.maxAttempts = 3
	}
	if len(opts.codes) == 0 {
		opts.codes = []string{"123456"}
	}

	clk := clock.NewManual(testStart)

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ApplyMigrations())

	keys, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    testIssuer,
		Audience:  testAudience,
		Now:       clk.Now,
	})
	require.NoError(t, err)

	hasher := cryptox.NewPasswordHasher("test-pepper")
	dir, err := service.NewPasswordDirectory(db.Users(), hasher)
	require.NoError(t, err)

	challenges := &countingChallenges{Challenges: memory.NewStore()}
	codes := &sequence{codes: opts.codes}
	box := &outbox{}

	return &harness{
		svc: &service.AuthService{
			Directory: dir,
			Issuer: &service.TokenIssuer{
				Keys:     keys,
				Issuer:   testIssuer,
				Audience: testAudience,
				Clock:    clk,
			},
			Challenges:    service.NewChallengeStore(challenges, codes, clk, opts.challengeTTL, opts.maxAttempts),
			Notifier:      box,
			Clock:         clk,
			PendingTTL:    2 * time.Minute,
			SessionTTL:    24 * time.Hour,
			NotifyTimeout: time.Second,
		},
		clock:      clk,
		store:      db,
		challenges: challenges,
		codes:      codes,
		outbox:     box,
		keys:       keys,
		hasher:     hasher,
	}
}

func (h *harness) addUser(t *testing.T, email string, active bool) domain.User {
	t.Helper()

	hash, err := h.hasher.Hash(testPassword)
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		PasswordHash: hash,
		Active:       active,
		CreatedAt:    testStart,
		UpdatedAt:    testStart,
	}
	require.NoError(t, h.store.Users().CreateUser(t.Context(), u))
	return u
}

func (h *harness) login(t *testing.T, email string) string {
	t.Helper()
	res, err := h.svc.Login(t.Context(), email, testPassword)
	require.NoError(t, err)
	return res.PendingToken.Token
}

func (h *harness) challenge(t *testing.T, owner string) (domain.Challenge, bool) {
	t.Helper()
	c, err := h.challenges.Challenges.GetChallenge(t.Context(), owner)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Challenge{}, false
	}
	require.NoError(t, err)
	return c, true
}
