package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"checkout-svc/apperr"
	"checkout-svc/middleware"
	"checkout-svc/models"
	"checkout-svc/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeDirectory struct {
	status models.VerificationStatus
}

func (f *fakeDirectory) GetUserBySubject(_ context.Context, subject string) (*models.User, error) {
	if subject != "sub-member" {
		return nil, repository.ErrNotFound
	}
	memberID := "member-1"
	return &models.User{ID: "user-1", AuthSubject: subject, Role: models.RoleMember, MemberID: &memberID}, nil
}

func (f *fakeDirectory) GetMember(_ context.Context, id string) (*models.Member, error) {
	return &models.Member{ID: id, UserID: "user-1", VerificationStatus: f.status}, nil
}

type fakeClaims struct {
	claimErr error
	memberID string
}

func (f *fakeClaims) Claim(_ context.Context, listingID, memberID string) (*models.StewardListing, error) {
	f.memberID = memberID
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return &models.StewardListing{ID: listingID, Status: models.ListingStatusClaimed, ClaimedByMemberID: &memberID}, nil
}

func (f *fakeClaims) CreateCheckout(_ context.Context, listingID string, member *models.Member) (*models.CheckoutSessionResponse, error) {
	f.memberID = member.ID
	return &models.CheckoutSessionResponse{SessionID: "cs_claim", URL: "https://pay.example/cs_claim"}, nil
}

func (f *fakeClaims) Withdraw(_ context.Context, listingID, memberID string) (*models.StewardListing, error) {
	return &models.StewardListing{ID: listingID, Status: models.ListingStatusRemoved}, nil
}

func setupClaimsTest(t *testing.T, claims ClaimService, status models.VerificationStatus) *gin.Engine {
	logger := zaptest.NewLogger(t)
	handler := NewClaimHandler(claims, false, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	members := router.Group("/")
	members.Use(middleware.RequireAuth(testSecret), middleware.RequireVerifiedMember(&fakeDirectory{status: status}, logger))
	{
		members.POST("/claims/:listingId", handler.Claim)
		members.POST("/steward-checkout/:listingId", handler.StewardCheckout)
		members.POST("/listings/:listingId/withdraw", handler.Withdraw)
	}
	router.POST("/unguarded/:listingId", handler.Claim)
	return router
}

func memberRequest(t *testing.T, path string) *http.Request {
	req := httptest.NewRequest("POST", path, nil)
	req.Header.Set("Authorization", bearer(t, "sub-member"))
	return req
}

func TestClaimHandler_Claim(t *testing.T) {
	claims := &fakeClaims{}
	router := setupClaimsTest(t, claims, models.VerificationVerified)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, memberRequest(t, "/claims/listing-1"))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	claim := body["claim"].(map[string]interface{})
	assert.Equal(t, "listing-1", claim["id"])
	assert.Equal(t, "member-1", claims.memberID)
}

func TestClaimHandler_Claim_Conflict(t *testing.T) {
	claims := &fakeClaims{claimErr: apperr.New(apperr.KindConflict, apperr.CodeListingUnavailable, "This listing has already been claimed")}
	router := setupClaimsTest(t, claims, models.VerificationVerified)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, memberRequest(t, "/claims/listing-1"))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperr.CodeListingUnavailable, decode(t, w)["code"])
}

func TestClaimHandler_RequiresVerifiedMember(t *testing.T) {
	router := setupClaimsTest(t, &fakeClaims{}, models.VerificationPending)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, memberRequest(t, "/steward-checkout/listing-1"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperr.CodeNotEligible, decode(t, w)["code"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/claims/listing-1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/unguarded/listing-1", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestClaimHandler_StewardCheckoutAndWithdraw(t *testing.T) {
	router := setupClaimsTest(t, &fakeClaims{}, models.VerificationVerified)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, memberRequest(t, "/steward-checkout/listing-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cs_claim", decode(t, w)["sessionId"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, memberRequest(t, "/listings/listing-1/withdraw"))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "REMOVED", body["listing"].(map[string]interface{})["status"])
}
