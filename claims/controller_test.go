package claims

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"checkout-svc/apperr"
	"checkout-svc/fees"
	"checkout-svc/models"
	"checkout-svc/payments"
	"checkout-svc/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// memStore mimics the conditional updates of repository.Store.
type memStore struct {
	mu       sync.Mutex
	listings map[string]*models.StewardListing
	chapters map[string]*models.Chapter
	stewards map[string]*models.Steward
	claims   []*models.StewardClaim
	settings map[string]string
}

func (m *memStore) GetListing(_ context.Context, id string) (*models.StewardListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memStore) ClaimListing(_ context.Context, listingID, memberID string) (*models.StewardListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[listingID]
	if !ok || l.Status != models.ListingStatusActive {
		return nil, repository.ErrConflict
	}
	now := time.Now()
	l.Status = models.ListingStatusClaimed
	l.ClaimedByMemberID = &memberID
	l.ClaimedAt = &now
	cp := *l
	return &cp, nil
}

func (m *memStore) WithdrawListing(_ context.Context, listingID, stewardID string) (*models.StewardListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[listingID]
	if !ok || l.StewardID != stewardID || l.Status != models.ListingStatusActive {
		return nil, repository.ErrConflict
	}
	l.Status = models.ListingStatusRemoved
	cp := *l
	return &cp, nil
}

func (m *memStore) GetChapter(_ context.Context, id string) (*models.Chapter, error) {
	if c, ok := m.chapters[id]; ok {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) GetSteward(_ context.Context, id string) (*models.Steward, error) {
	if s, ok := m.stewards[id]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) GetStewardByMember(_ context.Context, memberID string) (*models.Steward, error) {
	for _, s := range m.stewards {
		if s.MemberID == memberID {
			return s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) CreateClaim(_ context.Context, c *models.StewardClaim) (*models.StewardClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims = append(m.claims, c)
	return c, nil
}

func (m *memStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	v, ok := m.settings[key]
	return v, ok, nil
}

type fakeProcessor struct {
	payments.Processor
	mu       sync.Mutex
	sessions []payments.SessionParams
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, params payments.SessionParams) (*payments.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, params)
	return &payments.Session{ID: "cs_claim_1", URL: "https://checkout.stripe.test/cs_claim_1"}, nil
}

func strPtr(s string) *string { return &s }

func newStore() *memStore {
	return &memStore{
		listings: map[string]*models.StewardListing{
			"listing-1": {ID: "listing-1", StewardID: "steward-1", ChapterID: "chapter-1", Name: "Vintage Paddle",
				ShippingCostCents: 1000, ChapterDonationCents: 500, Status: models.ListingStatusActive},
			"removed": {ID: "removed", StewardID: "steward-1", ChapterID: "chapter-1", Status: models.ListingStatusRemoved},
			"orphan-chapter": {ID: "orphan-chapter", StewardID: "steward-1", ChapterID: "chapter-2",
				ShippingCostCents: 1000, Status: models.ListingStatusActive},
			"unpaid-steward": {ID: "unpaid-steward", StewardID: "steward-2", ChapterID: "chapter-1",
				ShippingCostCents: 1000, Status: models.ListingStatusActive},
		},
		chapters: map[string]*models.Chapter{
			"chapter-1": {ID: "chapter-1", Name: "Alpha", StripeAccountID: strPtr("acct_chapter")},
			"chapter-2": {ID: "chapter-2", Name: "Beta"},
		},
		stewards: map[string]*models.Steward{
			"steward-1": {ID: "steward-1", MemberID: "member-steward", StripeAccountID: strPtr("acct_steward")},
			"steward-2": {ID: "steward-2", MemberID: "member-steward-2"},
		},
		settings: map[string]string{},
	}
}

func TestClaim_AtMostOneClaimant(t *testing.T) {
	store := newStore()
	c := NewController(store, &fakeProcessor{}, "https://shop.example.com", zaptest.NewLogger(t))

	const claimants = 50
	var wg sync.WaitGroup
	results := make(chan error, claimants)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Claim(context.Background(), "listing-1", fmt.Sprintf("member-%d", i))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var winners, conflicts int
	for err := range results {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, apperr.HasCode(err, apperr.CodeListingUnavailable), "unexpected error: %v", err)
		conflicts++
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, claimants-1, conflicts)
	assert.Equal(t, models.ListingStatusClaimed, store.listings["listing-1"].Status)
}

func TestClaim_UnknownListing(t *testing.T) {
	c := NewController(newStore(), &fakeProcessor{}, "", zaptest.NewLogger(t))

	_, err := c.Claim(context.Background(), "nope", "member-1")
	assert.True(t, apperr.HasCode(err, apperr.CodeListingNotFound))
}

func TestCreateCheckout_FeeAndTotal(t *testing.T) {
	store := newStore()
	processor := &fakeProcessor{}
	c := NewController(store, processor, "https://shop.example.com", zaptest.NewLogger(t))

	resp, err := c.CreateCheckout(context.Background(), "listing-1", &models.Member{ID: "member-1", Email: "m@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "cs_claim_1", resp.SessionID)

	require.Len(t, store.claims, 1)
	claim := store.claims[0]
	assert.Equal(t, int64(75), claim.PlatformFeeCents)
	assert.Equal(t, int64(1575), claim.TotalAmountCents)
	assert.Equal(t, int64(1000), claim.ShippingCents)
	assert.Equal(t, int64(500), claim.ChapterDonationCents)
	assert.Equal(t, models.ClaimStatusPending, claim.Status)
	assert.Equal(t, "cs_claim_1", claim.StripeSessionID)

	require.Len(t, processor.sessions, 1)
	params := processor.sessions[0]
	assert.Equal(t, int64(1575), params.TotalCents())
	assert.Equal(t, "acct_steward", params.Destination)
	assert.Equal(t, int64(1000), params.TransferAmountCents)
	assert.Zero(t, params.ApplicationFeeCents)
	assert.Equal(t, claim.ID, params.TransferGroup)
	assert.Equal(t, payments.KindStewardClaim, params.Metadata[payments.MetaKind])
	assert.Equal(t, "acct_chapter", params.Metadata[payments.MetaChapterAccountID])
	assert.Equal(t, "500", params.Metadata[payments.MetaDonationCents])
	assert.Equal(t, claim.ID, params.Metadata[payments.MetaClaimID])

	listing := store.listings["listing-1"]
	assert.Equal(t, models.ListingStatusClaimed, listing.Status)
	require.NotNil(t, listing.ClaimedByMemberID)
	assert.Equal(t, "member-1", *listing.ClaimedByMemberID)
}

func TestCreateCheckout_ActiveListingSinglePayer(t *testing.T) {
	store := newStore()
	processor := &fakeProcessor{}
	c := NewController(store, processor, "", zaptest.NewLogger(t))

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.CreateCheckout(context.Background(), "listing-1", &models.Member{ID: fmt.Sprintf("member-%d", i)})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperr.HasCode(err, apperr.CodeListingUnavailable), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, store.claims, 1)
	assert.Len(t, processor.sessions, 1)
	assert.Equal(t, models.ListingStatusClaimed, store.listings["listing-1"].Status)
	assert.Equal(t, store.claims[0].ClaimantMemberID, *store.listings["listing-1"].ClaimedByMemberID)
}

func TestCreateCheckout_MissingPayoutLeavesListingActive(t *testing.T) {
	store := newStore()
	c := NewController(store, &fakeProcessor{}, "", zaptest.NewLogger(t))

	_, err := c.CreateCheckout(context.Background(), "unpaid-steward", &models.Member{ID: "member-1"})
	assert.True(t, apperr.HasCode(err, apperr.CodeStewardNotConnected))
	assert.Equal(t, models.ListingStatusActive, store.listings["unpaid-steward"].Status)
}

func TestCreateCheckout_UsesConfiguredFee(t *testing.T) {
	store := newStore()
	store.settings[fees.SettingFlatCents] = "200"
	c := NewController(store, &fakeProcessor{}, "", zaptest.NewLogger(t))

	_, err := c.CreateCheckout(context.Background(), "listing-1", &models.Member{ID: "member-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(200), store.claims[0].PlatformFeeCents)
	assert.Equal(t, int64(1700), store.claims[0].TotalAmountCents)
}

func TestCreateCheckout_ClaimedListing(t *testing.T) {
	store := newStore()
	c := NewController(store, &fakeProcessor{}, "", zaptest.NewLogger(t))

	_, err := c.Claim(context.Background(), "listing-1", "member-1")
	require.NoError(t, err)

	_, err = c.CreateCheckout(context.Background(), "listing-1", &models.Member{ID: "member-1"})
	assert.NoError(t, err)

	_, err = c.CreateCheckout(context.Background(), "listing-1", &models.Member{ID: "member-2"})
	assert.True(t, apperr.HasCode(err, apperr.CodeListingUnavailable))
}

func TestCreateCheckout_Rejections(t *testing.T) {
	c := NewController(newStore(), &fakeProcessor{}, "", zaptest.NewLogger(t))
	member := &models.Member{ID: "member-1"}

	tests := []struct {
		listing string
		code    string
	}{
		{"nope", apperr.CodeListingNotFound},
		{"removed", apperr.CodeListingNotClaimable},
		{"orphan-chapter", apperr.CodeChapterNotConnected},
		{"unpaid-steward", apperr.CodeStewardNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.listing, func(t *testing.T) {
			_, err := c.CreateCheckout(context.Background(), tt.listing, member)
			assert.True(t, apperr.HasCode(err, tt.code), "expected %s, got %v", tt.code, err)
		})
	}
}

func TestWithdraw(t *testing.T) {
	store := newStore()
	c := NewController(store, &fakeProcessor{}, "", zaptest.NewLogger(t))

	_, err := c.Withdraw(context.Background(), "listing-1", "member-1")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotEligible))

	_, err = c.Withdraw(context.Background(), "listing-1", "member-steward-2")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotEligible))

	listing, err := c.Withdraw(context.Background(), "listing-1", "member-steward")
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusRemoved, listing.Status)

	_, err = c.Withdraw(context.Background(), "listing-1", "member-steward")
	assert.True(t, apperr.HasCode(err, apperr.CodeListingUnavailable))
}
