package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veyra/fleet-collections/internal/http/middleware"
	"github.com/veyra/fleet-collections/internal/model"
)

// newTestRouter wires the handler behind an auth stand-in. A nil principal
// passes the request through unauthenticated.
func newTestRouter(principal *model.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(nil, nil, zerolog.Nop())
	router := gin.New()
	handler.Register(router, func(c *gin.Context) {
		if principal != nil {
			middleware.SetPrincipal(c, *principal)
		}
		c.Next()
	})
	return router
}

func operatorPrincipal() *model.Principal {
	return &model.Principal{UserID: uuid.New(), Role: model.ActorRoleOperator}
}

func clientPrincipal(clientID uuid.UUID) *model.Principal {
	return &model.Principal{UserID: uuid.New(), ClientID: clientID, Role: model.ActorRoleClient}
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestRegisterAddressCrossClientForbidden(t *testing.T) {
	router := newTestRouter(clientPrincipal(uuid.New()))

	body := `{"client_id":"` + uuid.NewString() + `","street":"Hoofdstraat","number":"12","city":"Utrecht"}`
	recorder := doJSON(t, router, http.MethodPost, "/collections/addresses", body)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestRegisterAddressMissingFields(t *testing.T) {
	router := newTestRouter(operatorPrincipal())

	body := `{"client_id":"` + uuid.NewString() + `","street":"Hoofdstraat"}`
	recorder := doJSON(t, router, http.MethodPost, "/collections/addresses", body)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestListAddressesInvalidClientID(t *testing.T) {
	router := newTestRouter(operatorPrincipal())

	recorder := doJSON(t, router, http.MethodGet, "/collections/addresses/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestListVehiclesInvalidAddressFilter(t *testing.T) {
	router := newTestRouter(operatorPrincipal())

	recorder := doJSON(t, router, http.MethodGet, "/collections/vehicles/"+uuid.NewString()+"?address_id=not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetVehicleCrossClientForbidden(t *testing.T) {
	router := newTestRouter(clientPrincipal(uuid.New()))

	recorder := doJSON(t, router, http.MethodGet, "/collections/vehicles/"+uuid.NewString()+"/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestSetFeesRequiresOperator(t *testing.T) {
	clientID := uuid.New()
	router := newTestRouter(clientPrincipal(clientID))

	body := `{"client_id":"` + clientID.String() + `","items":[{"address_id":"` + uuid.NewString() + `","fee":100}]}`
	recorder := doJSON(t, router, http.MethodPost, "/collections/fees", body)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestSetFeesMissingPrincipal(t *testing.T) {
	router := newTestRouter(nil)

	recorder := doJSON(t, router, http.MethodPost, "/collections/fees", `{}`)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestSetFeesInvalidClientID(t *testing.T) {
	router := newTestRouter(operatorPrincipal())

	body := `{"client_id":"not-a-uuid","items":[{"address_id":"` + uuid.NewString() + `","fee":100}]}`
	recorder := doJSON(t, router, http.MethodPost, "/collections/fees", body)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "invalid client_id")
}

func TestSetFeesInvalidItemDate(t *testing.T) {
	router := newTestRouter(operatorPrincipal())

	body := `{"client_id":"` + uuid.NewString() + `","items":[{"address_id":"` + uuid.NewString() + `","fee":100,"date":"12/09/2025"}]}`
	recorder := doJSON(t, router, http.MethodPost, "/collections/fees", body)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "invalid date")
}

func TestProposeDateInvalidDate(t *testing.T) {
	router := newTestRouter(operatorPrincipal())

	body := `{"client_id":"` + uuid.NewString() + `","address_id":"` + uuid.NewString() + `","date":"next tuesday"}`
	recorder := doJSON(t, router, http.MethodPost, "/collections/propose", body)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestProposeDateCrossClientForbidden(t *testing.T) {
	router := newTestRouter(clientPrincipal(uuid.New()))

	body := `{"client_id":"` + uuid.NewString() + `","address_id":"` + uuid.NewString() + `","date":"2025-09-12"}`
	recorder := doJSON(t, router, http.MethodPost, "/collections/propose", body)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestAcceptProposalMissingBody(t *testing.T) {
	router := newTestRouter(operatorPrincipal())

	recorder := doJSON(t, router, http.MethodPost, "/collections/accept", `{}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHistoryCrossClientForbidden(t *testing.T) {
	router := newTestRouter(clientPrincipal(uuid.New()))

	recorder := doJSON(t, router, http.MethodGet, "/collections/history/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestHistoryInvalidClientID(t *testing.T) {
	router := newTestRouter(operatorPrincipal())

	recorder := doJSON(t, router, http.MethodGet, "/collections/history/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestArchiveAgreementInvalidID(t *testing.T) {
	router := newTestRouter(operatorPrincipal())

	recorder := doJSON(t, router, http.MethodPost, "/collections/archive/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestBackfillRequiresOperator(t *testing.T) {
	clientID := uuid.New()
	router := newTestRouter(clientPrincipal(clientID))

	body := `{"client_id":"` + clientID.String() + `"}`
	recorder := doJSON(t, router, http.MethodPost, "/collections/archive/backfill", body)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestMarkPaidRequiresOperator(t *testing.T) {
	router := newTestRouter(clientPrincipal(uuid.New()))

	recorder := doJSON(t, router, http.MethodPatch, "/collections/archive/records/"+uuid.NewString()+"/payment", "")
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Time
		wantErr bool
	}{
		{raw: "2025-09-12", want: time.Date(2025, 9, 12, 0, 0, 0, 0, time.UTC)},
		{raw: "2025-09-12T00:00:00Z", want: time.Date(2025, 9, 12, 0, 0, 0, 0, time.UTC)},
		{raw: "2025-09-12T10:30:00", want: time.Date(2025, 9, 12, 10, 30, 0, 0, time.UTC)},
		{raw: "", wantErr: true},
		{raw: "12/09/2025", wantErr: true},
		{raw: "tomorrow", wantErr: true},
	}

	for _, tt := range tests {
		parsed, err := parseDate(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.True(t, parsed.Equal(tt.want), tt.raw)
	}
}
