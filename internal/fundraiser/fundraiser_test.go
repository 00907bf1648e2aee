package fundraiser_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	appErrors "github.com/unclebandit/fundraiser-backend/internal/errors"
	"github.com/unclebandit/fundraiser-backend/internal/event"
	"github.com/unclebandit/fundraiser-backend/internal/fundraiser"
	"github.com/unclebandit/fundraiser-backend/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	custodian   = model.Address("0x00000000000000000000000000000000000000c0")
	beneficiary = model.Address("0x00000000000000000000000000000000000000b0")
	other       = model.Address("0x00000000000000000000000000000000000000a0")
)

var (
	smallDonation = decimal.RequireFromString("28900000000000000")  // 0.0289 ether
	tenthEther    = decimal.RequireFromString("100000000000000000") // 0.1 ether
)

// MockStore records calls and fails on demand
type MockStore struct {
	mu           sync.Mutex
	donations    []model.Donation
	withdrawals  []model.Withdrawal
	beneficiary  model.Address
	failNextWith error
}

func (m *MockStore) fail() error {
	err := m.failNextWith
	m.failNextWith = nil
	return err
}

func (m *MockStore) SaveDonation(_ context.Context, _ model.FundraiserID, d model.Donation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	m.donations = append(m.donations, d)
	return nil
}

func (m *MockStore) SaveWithdrawal(_ context.Context, _ model.FundraiserID, w model.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	m.withdrawals = append(m.withdrawals, w)
	return nil
}

func (m *MockStore) SaveBeneficiary(_ context.Context, _ model.FundraiserID, b model.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	m.beneficiary = b
	return nil
}

type fixture struct {
	fundraiser *fundraiser.Fundraiser
	store      *MockStore
	events     *event.Recorder
}

func deployFundraiser(t *testing.T) fixture {
	t.Helper()
	store := &MockStore{}
	events := event.NewRecorder()
	f, err := fundraiser.New(1, fundraiser.Params{
		Name:        "Beneficiary Name",
		URL:         "beneficiaryname.org",
		ImageURL:    "https://placekitten.com/600/350",
		Description: "Beneficiary description",
		Beneficiary: beneficiary,
		Owner:       custodian,
	}, fundraiser.WithStore(store), fundraiser.WithSink(events))
	require.NoError(t, err)
	return fixture{fundraiser: f, store: store, events: events}
}

func TestInitialization(t *testing.T) {
	f := deployFundraiser(t).fundraiser

	assert.Equal(t, "Beneficiary Name", f.Name())
	assert.Equal(t, "beneficiaryname.org", f.URL())
	assert.Equal(t, "https://placekitten.com/600/350", f.ImageURL())
	assert.Equal(t, "Beneficiary description", f.Description())
	assert.Equal(t, beneficiary, f.Beneficiary())
	assert.Equal(t, custodian, f.Owner())
	assert.True(t, f.TotalDonations().IsZero())
	assert.Zero(t, f.DonationsCount())
	assert.True(t, f.Balance().IsZero())
}

func TestNewRejectsInvalidAddresses(t *testing.T) {
	_, err := fundraiser.New(1, fundraiser.Params{Owner: "owner", Beneficiary: beneficiary})
	assert.True(t, appErrors.IsInvalidAddress(err))

	_, err = fundraiser.New(1, fundraiser.Params{Owner: custodian, Beneficiary: "0x12"})
	assert.True(t, appErrors.IsInvalidAddress(err))
}

func TestChecksumCasedAddressesAreNormalised(t *testing.T) {
	const (
		mixedOwner       = model.Address("0x00000000000000000000000000000000000000C0")
		mixedBeneficiary = model.Address("0x00000000000000000000000000000000000000B0")
		mixedDonor       = model.Address("0x00000000000000000000000000000000000000A0")
	)
	ctx := context.Background()

	f, err := fundraiser.New(1, fundraiser.Params{Owner: mixedOwner, Beneficiary: mixedBeneficiary})
	require.NoError(t, err)
	assert.Equal(t, custodian, f.Owner())
	assert.Equal(t, beneficiary, f.Beneficiary())

	require.NoError(t, f.Donate(ctx, mixedDonor, tenthEther))
	assert.Equal(t, 1, f.MyDonationsCount(other))

	require.NoError(t, f.SetBeneficiary(ctx, mixedOwner, mixedDonor))
	assert.Equal(t, other, f.Beneficiary())

	amount, err := f.Withdraw(ctx, mixedOwner)
	require.NoError(t, err)
	assert.True(t, amount.Equal(tenthEther))
}

func TestSetBeneficiary(t *testing.T) {
	t.Run("updates beneficiary when called by owner", func(t *testing.T) {
		fx := deployFundraiser(t)

		require.NoError(t, fx.fundraiser.SetBeneficiary(context.Background(), custodian, other))

		assert.Equal(t, other, fx.fundraiser.Beneficiary())
		assert.Equal(t, other, fx.store.beneficiary)
	})

	t.Run("emits no event", func(t *testing.T) {
		fx := deployFundraiser(t)

		require.NoError(t, fx.fundraiser.SetBeneficiary(context.Background(), custodian, other))

		assert.Zero(t, fx.events.Len())
	})

	t.Run("accepts the zero address and no-op updates", func(t *testing.T) {
		fx := deployFundraiser(t)

		require.NoError(t, fx.fundraiser.SetBeneficiary(context.Background(), custodian, beneficiary))
		require.NoError(t, fx.fundraiser.SetBeneficiary(context.Background(), custodian, model.ZeroAddress))
		assert.Equal(t, model.ZeroAddress, fx.fundraiser.Beneficiary())
	})

	t.Run("fails when called from a non-owner account", func(t *testing.T) {
		fx := deployFundraiser(t)

		err := fx.fundraiser.SetBeneficiary(context.Background(), other, other)

		require.ErrorIs(t, err, appErrors.ErrNotOwner)
		assert.EqualError(t, err, "Ownable: caller is not the owner")
		assert.Equal(t, beneficiary, fx.fundraiser.Beneficiary())
		assert.Empty(t, fx.store.beneficiary)
	})
}

func TestDonate(t *testing.T) {
	ctx := context.Background()

	t.Run("increases myDonationsCount", func(t *testing.T) {
		f := deployFundraiser(t).fundraiser
		before := f.MyDonationsCount(other)

		require.NoError(t, f.Donate(ctx, other, smallDonation))

		assert.Equal(t, 1, f.MyDonationsCount(other)-before)
	})

	t.Run("includes donation in myDonations", func(t *testing.T) {
		f := deployFundraiser(t).fundraiser

		require.NoError(t, f.Donate(ctx, other, smallDonation))

		values, dates := f.MyDonations(other)
		require.Len(t, values, 1)
		require.Len(t, dates, 1)
		assert.True(t, values[0].Equal(smallDonation))
		assert.False(t, dates[0].IsZero())
	})

	t.Run("increases totals and balance", func(t *testing.T) {
		f := deployFundraiser(t).fundraiser

		require.NoError(t, f.Donate(ctx, other, smallDonation))

		assert.True(t, f.TotalDonations().Equal(smallDonation))
		assert.True(t, f.Balance().Equal(smallDonation))
		assert.Equal(t, int64(1), f.DonationsCount())
	})

	t.Run("emits DonationReceived", func(t *testing.T) {
		fx := deployFundraiser(t)

		require.NoError(t, fx.fundraiser.Donate(ctx, other, smallDonation))

		events := fx.events.Events()
		require.Len(t, events, 1)
		assert.Equal(t, event.KindDonationReceived, events[0].Kind)
		assert.Equal(t, model.FundraiserID(1), events[0].Source)
		p := events[0].Payload.(event.DonationReceived)
		assert.Equal(t, other, p.Donor)
		assert.True(t, p.Value.Equal(smallDonation))
	})

	t.Run("rejects zero and negative values", func(t *testing.T) {
		fx := deployFundraiser(t)

		assert.ErrorIs(t, fx.fundraiser.Donate(ctx, other, decimal.Zero), appErrors.ErrZeroDonation)
		assert.ErrorIs(t, fx.fundraiser.Donate(ctx, other, decimal.NewFromInt(-1)), appErrors.ErrZeroDonation)
		assert.ErrorIs(t, fx.fundraiser.Donate(ctx, other, decimal.RequireFromString("0.5")), appErrors.ErrInvalidAmount)
		assert.Zero(t, fx.fundraiser.DonationsCount())
		assert.Zero(t, fx.events.Len())
	})

	t.Run("accepts the smallest unit", func(t *testing.T) {
		f := deployFundraiser(t).fundraiser
		require.NoError(t, f.Donate(ctx, other, decimal.NewFromInt(1)))
		assert.True(t, f.TotalDonations().Equal(decimal.NewFromInt(1)))
	})

	t.Run("keeps per-donor order and parallel slices", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		f, err := fundraiser.New(2, fundraiser.Params{Owner: custodian, Beneficiary: beneficiary},
			fundraiser.WithClock(func() time.Time {
				now = now.Add(time.Minute)
				return now
			}))
		require.NoError(t, err)

		for i := int64(1); i <= 3; i++ {
			require.NoError(t, f.Donate(ctx, other, decimal.NewFromInt(i)))
			require.NoError(t, f.Donate(ctx, custodian, decimal.NewFromInt(100)))
		}

		values, dates := f.MyDonations(other)
		require.Len(t, values, 3)
		require.Len(t, dates, 3)
		for i := range values {
			assert.True(t, values[i].Equal(decimal.NewFromInt(int64(i+1))))
			if i > 0 {
				assert.True(t, dates[i].After(dates[i-1]))
			}
		}
		assert.Equal(t, int64(6), f.DonationsCount())
		assert.True(t, f.TotalDonations().Equal(decimal.NewFromInt(306)))
	})

	t.Run("unknown donor has empty history", func(t *testing.T) {
		f := deployFundraiser(t).fundraiser
		values, dates := f.MyDonations(other)
		assert.Empty(t, values)
		assert.Empty(t, dates)
		assert.Zero(t, f.MyDonationsCount(other))
	})

	t.Run("store failure leaves no trace", func(t *testing.T) {
		fx := deployFundraiser(t)
		fx.store.failNextWith = appErrors.NewUnavailable("save donation", errors.New("connection refused"))

		err := fx.fundraiser.Donate(ctx, other, smallDonation)

		require.Error(t, err)
		assert.True(t, appErrors.IsTransient(err))
		assert.Zero(t, fx.fundraiser.DonationsCount())
		assert.True(t, fx.fundraiser.TotalDonations().IsZero())
		assert.Zero(t, fx.fundraiser.MyDonationsCount(other))
		assert.Zero(t, fx.events.Len())
	})
}

func TestReceive(t *testing.T) {
	fx := deployFundraiser(t)

	require.NoError(t, fx.fundraiser.Receive(context.Background(), other, smallDonation))

	assert.True(t, fx.fundraiser.TotalDonations().Equal(smallDonation))
	assert.Equal(t, int64(1), fx.fundraiser.DonationsCount())
	require.Equal(t, 1, fx.events.Len())
	assert.Equal(t, event.KindDonationReceived, fx.events.Events()[0].Kind)
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("fails when called from a non-owner account", func(t *testing.T) {
		fx := deployFundraiser(t)
		require.NoError(t, fx.fundraiser.Donate(ctx, other, tenthEther))

		_, err := fx.fundraiser.Withdraw(ctx, other)

		require.ErrorIs(t, err, appErrors.ErrNotOwner)
		assert.True(t, fx.fundraiser.Balance().Equal(tenthEther))
		assert.Empty(t, fx.store.withdrawals)
		assert.Equal(t, 1, fx.events.Len())
	})

	t.Run("permits the owner with an empty balance", func(t *testing.T) {
		fx := deployFundraiser(t)

		amount, err := fx.fundraiser.Withdraw(ctx, custodian)

		require.NoError(t, err)
		assert.True(t, amount.IsZero())
		events := fx.events.Events()
		require.Len(t, events, 1)
		assert.True(t, events[0].Payload.(event.Withdraw).Amount.IsZero())
	})

	t.Run("transfers balance to beneficiary", func(t *testing.T) {
		fx := deployFundraiser(t)
		require.NoError(t, fx.fundraiser.Donate(ctx, other, tenthEther))

		amount, err := fx.fundraiser.Withdraw(ctx, custodian)

		require.NoError(t, err)
		assert.True(t, amount.Equal(tenthEther))
		assert.True(t, fx.fundraiser.Balance().IsZero())
		assert.True(t, fx.fundraiser.TotalDonations().Equal(tenthEther))
		require.Len(t, fx.store.withdrawals, 1)
		assert.Equal(t, beneficiary, fx.store.withdrawals[0].Beneficiary)
		assert.True(t, fx.store.withdrawals[0].Amount.Equal(tenthEther))
	})

	t.Run("emits Withdraw with the amount", func(t *testing.T) {
		fx := deployFundraiser(t)
		require.NoError(t, fx.fundraiser.Donate(ctx, other, tenthEther))

		_, err := fx.fundraiser.Withdraw(ctx, custodian)
		require.NoError(t, err)

		events := fx.events.Events()
		require.Len(t, events, 2)
		assert.Equal(t, event.KindWithdraw, events[1].Kind)
		assert.True(t, events[1].Payload.(event.Withdraw).Amount.Equal(tenthEther))
	})

	t.Run("second withdraw transfers zero", func(t *testing.T) {
		fx := deployFundraiser(t)
		require.NoError(t, fx.fundraiser.Donate(ctx, other, tenthEther))

		_, err := fx.fundraiser.Withdraw(ctx, custodian)
		require.NoError(t, err)
		amount, err := fx.fundraiser.Withdraw(ctx, custodian)

		require.NoError(t, err)
		assert.True(t, amount.IsZero())
		assert.True(t, fx.fundraiser.Balance().IsZero())
	})

	t.Run("store failure keeps balance", func(t *testing.T) {
		fx := deployFundraiser(t)
		require.NoError(t, fx.fundraiser.Donate(ctx, other, tenthEther))
		fx.store.failNextWith = appErrors.NewUnavailable("save withdrawal", errors.New("broken pipe"))

		_, err := fx.fundraiser.Withdraw(ctx, custodian)

		require.Error(t, err)
		assert.True(t, fx.fundraiser.Balance().Equal(tenthEther))
		assert.Equal(t, 1, fx.events.Len())
	})
}

func TestBalanceInvariantUnderConcurrency(t *testing.T) {
	fx := deployFundraiser(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		withdrawn = decimal.Zero
	)
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, fx.fundraiser.Donate(ctx, other, decimal.NewFromInt(10)))
		}()
		go func() {
			defer wg.Done()
			amount, err := fx.fundraiser.Withdraw(ctx, custodian)
			assert.NoError(t, err)
			mu.Lock()
			withdrawn = withdrawn.Add(amount)
			mu.Unlock()
		}()
	}
	wg.Wait()

	f := fx.fundraiser
	assert.Equal(t, int64(50), f.DonationsCount())
	assert.True(t, f.TotalDonations().Equal(decimal.NewFromInt(500)))
	assert.True(t, f.Balance().Equal(f.TotalDonations().Sub(withdrawn)))
	assert.False(t, f.Balance().IsNegative())
	assert.Equal(t, 100, fx.events.Len())
}

func TestRestore(t *testing.T) {
	at := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	f, err := fundraiser.Restore(model.FundraiserState{
		Fundraiser: model.Fundraiser{
			ID:             9,
			Name:           "Restored",
			Owner:          custodian,
			Beneficiary:    beneficiary,
			TotalDonations: decimal.NewFromInt(30),
			DonationsCount: 2,
			Balance:        decimal.NewFromInt(5),
			CreatedAt:      at,
		},
		Donations: map[model.Address][]model.Donation{
			other: {
				{Donor: other, Value: decimal.NewFromInt(10), Date: at},
				{Donor: other, Value: decimal.NewFromInt(20), Date: at.Add(time.Hour)},
			},
		},
	})
	require.NoError(t, err)

	snap := f.Snapshot()
	assert.Equal(t, model.FundraiserID(9), snap.ID)
	assert.Equal(t, "Restored", snap.Name)
	assert.True(t, snap.Balance.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, at, snap.CreatedAt)
	assert.Equal(t, 2, f.MyDonationsCount(other))

	require.NoError(t, f.Donate(context.Background(), other, decimal.NewFromInt(1)))
	assert.Equal(t, int64(3), f.DonationsCount())
	assert.True(t, f.Balance().Equal(decimal.NewFromInt(6)))
}
