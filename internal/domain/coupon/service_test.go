package coupon

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/coupon-engine/internal/domain/cart"
)

// --- Mock implementations ---

type mockStore struct {
	coupons    []Coupon
	listErr    error
	createErr  error
	listCalled bool
	created    *Coupon
}

func (m *mockStore) Create(_ context.Context, c *Coupon) error {
	m.created = c
	return m.createErr
}

func (m *mockStore) Replace(_ context.Context, _ *Coupon) error {
	return nil
}

func (m *mockStore) Get(_ context.Context, code string) (*Coupon, error) {
	for i := range m.coupons {
		if m.coupons[i].Code == code {
			c := m.coupons[i]
			return &c, nil
		}
	}
	return nil, ErrCouponNotFound
}

func (m *mockStore) ListActive(_ context.Context) ([]Coupon, error) {
	m.listCalled = true
	return m.coupons, m.listErr
}

type mockLedger struct {
	usage     Usage
	err       error
	recordErr error
	recorded  []string
	limits    []UsageLimit
	called    bool
}

func (m *mockLedger) GetUsage(_ context.Context, _ string) (Usage, error) {
	m.called = true
	return m.usage, m.err
}

func (m *mockLedger) Record(_ context.Context, userID, code string, limit UsageLimit) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.limits = append(m.limits, limit)
	m.recorded = append(m.recorded, userID+":"+code)
	return nil
}

func newTestService(store Store, ledger UsageLedger) *Service {
	return NewService(store, ledger, newTestEngine(ScopePerCoupon))
}

func TestService_Best(t *testing.T) {
	ctx := context.Background()

	t.Run("selects from store", func(t *testing.T) {
		store := &mockStore{coupons: []Coupon{newCoupon("FLAT100", Flat{Value: d("100")})}}
		ledger := &mockLedger{}

		res, err := newTestService(store, ledger).Best(ctx, BestRequest{User: testUser(), Cart: cartOf("2500")})
		require.NoError(t, err)
		require.NotNil(t, res.Coupon)
		assert.Equal(t, "FLAT100", res.Coupon.Code)
		assert.True(t, ledger.called)
	})

	t.Run("store failure is not an empty result", func(t *testing.T) {
		storeErr := errors.New("connection refused")
		store := &mockStore{listErr: storeErr}

		res, err := newTestService(store, &mockLedger{}).Best(ctx, BestRequest{User: testUser(), Cart: cartOf("2500")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, storeErr))
		assert.Empty(t, res.Message)
	})

	t.Run("ledger failure propagates", func(t *testing.T) {
		ledgerErr := errors.New("timeout")
		store := &mockStore{coupons: []Coupon{newCoupon("FLAT100", Flat{Value: d("100")})}}

		_, err := newTestService(store, &mockLedger{err: ledgerErr}).Best(ctx, BestRequest{User: testUser(), Cart: cartOf("2500")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ledgerErr))
	})

	t.Run("invalid input rejected before reading store", func(t *testing.T) {
		store := &mockStore{}

		_, err := newTestService(store, &mockLedger{}).Best(ctx, BestRequest{
			User: testUser(),
			Cart: cart.Cart{Items: []cart.Item{{UnitPrice: d("1"), Quantity: 0}}},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidInput))
		assert.False(t, store.listCalled)
	})

	t.Run("supplied usage bypasses ledger", func(t *testing.T) {
		limited := newCoupon("ONCE", Flat{Value: d("100")})
		limited.UsageLimitPerUser = intPtr(1)
		store := &mockStore{coupons: []Coupon{limited}}
		ledger := &mockLedger{}

		res, err := newTestService(store, ledger).Best(ctx, BestRequest{
			User:  testUser(),
			Cart:  cartOf("2500"),
			Total:    intPtr(1),
			ByCoupon: map[string]int{"ONCE": 1},
		})
		require.NoError(t, err)
		assert.Nil(t, res.Coupon)
		assert.False(t, ledger.called)
	})

	t.Run("supplied total keeps ledger per-coupon counts", func(t *testing.T) {
		limited := newCoupon("ONCE", Flat{Value: d("100")})
		limited.UsageLimitPerUser = intPtr(1)
		store := &mockStore{coupons: []Coupon{limited, newCoupon("FLAT50", Flat{Value: d("50")})}}
		ledger := &mockLedger{usage: Usage{Total: 7, ByCoupon: map[string]int{"ONCE": 1}}}

		res, err := newTestService(store, ledger).Best(ctx, BestRequest{
			User:  testUser(),
			Cart:  cartOf("2500"),
			Total: intPtr(0),
		})
		require.NoError(t, err)
		assert.True(t, ledger.called)
		require.NotNil(t, res.Coupon)
		assert.Equal(t, "FLAT50", res.Coupon.Code)
	})

	t.Run("supplied per-coupon counts keep ledger total", func(t *testing.T) {
		limited := newCoupon("ONCE", Flat{Value: d("100")})
		limited.UsageLimitPerUser = intPtr(2)
		store := &mockStore{coupons: []Coupon{limited}}
		ledger := &mockLedger{usage: Usage{Total: 2, ByCoupon: map[string]int{"ONCE": 0}}}
		svc := NewService(store, ledger, newTestEngine(ScopePerUser))

		res, err := svc.Best(ctx, BestRequest{
			User:     testUser(),
			Cart:     cartOf("2500"),
			ByCoupon: map[string]int{},
		})
		require.NoError(t, err)
		assert.True(t, ledger.called)
		assert.Nil(t, res.Coupon, "ledger total of 2 exhausts a per-user limit of 2")
	})
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	store := &mockStore{}
	c := newCoupon("NEW", Flat{Value: d("10")})
	require.NoError(t, newTestService(store, &mockLedger{}).Create(ctx, &c))
	assert.Equal(t, "NEW", store.created.Code)

	store = &mockStore{createErr: ErrCouponExists}
	err := newTestService(store, &mockLedger{}).Create(ctx, &c)
	assert.True(t, errors.Is(err, ErrCouponExists))

	store = &mockStore{}
	bad := newCoupon("", Flat{Value: d("10")})
	err = newTestService(store, &mockLedger{}).Create(ctx, &bad)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Nil(t, store.created)
}

func TestService_Redeem(t *testing.T) {
	ctx := context.Background()
	limited := newCoupon("ONCE", Flat{Value: d("100")})
	limited.UsageLimitPerUser = intPtr(1)

	t.Run("records eligible redemption", func(t *testing.T) {
		ledger := &mockLedger{}
		svc := newTestService(&mockStore{coupons: []Coupon{limited}}, ledger)

		ev, err := svc.Redeem(ctx, RedeemRequest{Code: "ONCE", User: testUser(), Cart: cartOf("2500")})
		require.NoError(t, err)
		assert.True(t, d("100").Equal(ev.DiscountAmount))
		assert.Equal(t, []string{"u1:ONCE"}, ledger.recorded)
		require.Len(t, ledger.limits, 1)
		assert.Equal(t, 1, *ledger.limits[0].Max)
		assert.Equal(t, ScopePerCoupon, ledger.limits[0].Scope)
	})

	t.Run("limit taken between check and record", func(t *testing.T) {
		ledger := &mockLedger{recordErr: ErrUsageLimitReached}
		svc := newTestService(&mockStore{coupons: []Coupon{limited}}, ledger)

		ev, err := svc.Redeem(ctx, RedeemRequest{Code: "ONCE", User: testUser(), Cart: cartOf("2500")})
		var nerr *NotEligibleError
		require.True(t, errors.As(err, &nerr))
		assert.Equal(t, ReasonUsageLimitReached, nerr.Reason)
		assert.False(t, ev.Eligible)
		assert.True(t, ev.DiscountAmount.IsZero())
	})

	t.Run("ledger failure", func(t *testing.T) {
		ledger := &mockLedger{recordErr: errors.New("disk full")}
		svc := newTestService(&mockStore{coupons: []Coupon{limited}}, ledger)

		_, err := svc.Redeem(ctx, RedeemRequest{Code: "ONCE", User: testUser(), Cart: cartOf("2500")})
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNotEligible))
	})

	t.Run("limit reached", func(t *testing.T) {
		ledger := &mockLedger{usage: Usage{Total: 1, ByCoupon: map[string]int{"ONCE": 1}}}
		svc := newTestService(&mockStore{coupons: []Coupon{limited}}, ledger)

		_, err := svc.Redeem(ctx, RedeemRequest{Code: "ONCE", User: testUser(), Cart: cartOf("2500")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotEligible))

		var nerr *NotEligibleError
		require.True(t, errors.As(err, &nerr))
		assert.Equal(t, ReasonUsageLimitReached, nerr.Reason)
		assert.Empty(t, ledger.recorded)
	})

	t.Run("unknown code", func(t *testing.T) {
		svc := newTestService(&mockStore{}, &mockLedger{})

		_, err := svc.Redeem(ctx, RedeemRequest{Code: "NOPE", User: testUser(), Cart: cartOf("2500")})
		assert.True(t, errors.Is(err, ErrCouponNotFound))
	})
}
