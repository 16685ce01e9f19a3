package api_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"pharmadesk/m/internal/api"
	"pharmadesk/m/internal/migrations"
)

const testSecret = "test_secret"

func newTestRouter(t *testing.T) (http.Handler, *sqlx.DB) {
	t.Helper()

	db, err := sqlx.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	migrations.Run(db)

	_, err = db.Exec(`INSERT INTO medications (id, name, active_ingredient, category, dosage_instructions, stock_quantity, requires_prescription, retail_price, wholesale_price)
        VALUES ('med_acamol', 'Acamol', 'Paracetamol', 'Analgesic', 'Take 1 tablet every 6 hours as needed', 10, 0, 10, 5)`)
	require.NoError(t, err)

	return api.New(db, testSecret).Router(), db
}

func doRequest(t *testing.T, router http.Handler, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

// registerUser creates a user through the API and returns its id and token.
func registerUser(t *testing.T, router http.Handler, name, email, role string) (id, token string) {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"email":%q,"password":"password123","role":%q}`, name, email, role)
	w := doRequest(t, router, http.MethodPost, "/auth/register", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeBody(t, w)
	user := resp["user"].(map[string]any)
	return user["id"].(string), resp["token"].(string)
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestRegisterAndLogin(t *testing.T) {
	router, _ := newTestRouter(t)

	registerUser(t, router, "Gal", "gal@example.com", "customer")

	w := doRequest(t, router, http.MethodPost, "/auth/login", "", `{"email":"gal@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeBody(t, w)["token"])

	w = doRequest(t, router, http.MethodPost, "/auth/login", "", `{"email":"gal@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Duplicate email.
	w = doRequest(t, router, http.MethodPost, "/auth/register", "", `{"name":"Gal2","email":"gal@example.com","password":"pw","role":"customer"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegister_RejectsUnknownRole(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodPost, "/auth/register", "", `{"name":"X","email":"x@example.com","password":"pw","role":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequired(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(t, router, http.MethodGet, "/medications", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, router, http.MethodGet, "/medications", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRestockFlow(t *testing.T) {
	router, db := newTestRouter(t)
	_, managerToken := registerUser(t, router, "Manager", "manager@example.com", "manager")

	w := doRequest(t, router, http.MethodPost, "/inventory/restock", managerToken, `{"med_id":"med_acamol","qty":100}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stock int64
	require.NoError(t, db.Get(&stock, `SELECT stock_quantity FROM medications WHERE id = 'med_acamol'`))
	assert.Equal(t, int64(110), stock)

	w = doRequest(t, router, http.MethodGet, "/reports/financials", managerToken, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 9500, decodeBody(t, w)["total_budget"].(float64), 1e-9)
}

func TestRestock_NonManagerForbidden(t *testing.T) {
	router, db := newTestRouter(t)
	_, customerToken := registerUser(t, router, "Gal", "gal@example.com", "customer")

	w := doRequest(t, router, http.MethodPost, "/inventory/restock", customerToken, `{"med_id":"med_acamol","qty":5}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var stock int64
	require.NoError(t, db.Get(&stock, `SELECT stock_quantity FROM medications WHERE id = 'med_acamol'`))
	assert.Equal(t, int64(10), stock)
}

func TestRestock_InsufficientBudgetConflict(t *testing.T) {
	router, _ := newTestRouter(t)
	_, managerToken := registerUser(t, router, "Manager", "manager@example.com", "manager")

	w := doRequest(t, router, http.MethodPost, "/inventory/restock", managerToken, `{"med_id":"med_acamol","qty":1000000}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPrescriptionFlow(t *testing.T) {
	router, db := newTestRouter(t)
	customerID, customerToken := registerUser(t, router, "Gal", "gal@example.com", "customer")
	_, doctorToken := registerUser(t, router, "Dr. Smith", "dr.smith@example.com", "doctor")

	// Customers cannot prescribe.
	body := fmt.Sprintf(`{"user_id":%q,"items":[{"med_id":"med_acamol","periods":3}]}`, customerID)
	w := doRequest(t, router, http.MethodPost, "/prescriptions", customerToken, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(t, router, http.MethodPost, "/prescriptions", doctorToken, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	itemIDs := decodeBody(t, w)["item_ids"].([]any)
	require.Len(t, itemIDs, 1)

	// Validate resolves the freshly issued item.
	path := fmt.Sprintf("/prescriptions/validate?user_id=%s&med_id=med_acamol&qty=2", customerID)
	w = doRequest(t, router, http.MethodGet, path, customerToken, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, itemIDs[0], decodeBody(t, w)["item_id"])

	// Dispense, then bill: two calls, shell-composed.
	fulfill := fmt.Sprintf(`{"user_id":%q,"med_id":"med_acamol","qty":2}`, customerID)
	w = doRequest(t, router, http.MethodPost, "/prescriptions/fulfill", customerToken, fulfill)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	bill := fmt.Sprintf(`{"user_id":%q,"amount":20}`, customerID)
	w = doRequest(t, router, http.MethodPost, "/transactions", customerToken, bill)
	assert.Equal(t, http.StatusOK, w.Code)

	var stock int64
	require.NoError(t, db.Get(&stock, `SELECT stock_quantity FROM medications WHERE id = 'med_acamol'`))
	assert.Equal(t, int64(8), stock)

	w = doRequest(t, router, http.MethodGet, "/users/"+customerID+"/debt", customerToken, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 20, decodeBody(t, w)["debt"].(float64), 1e-9)

	// Only one period left now; over-asking is a conflict, unknown pairs 404.
	path = fmt.Sprintf("/prescriptions/validate?user_id=%s&med_id=med_acamol&qty=3", customerID)
	w = doRequest(t, router, http.MethodGet, path, customerToken, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	path = fmt.Sprintf("/prescriptions/validate?user_id=%s&med_id=med_unknown&qty=1", customerID)
	w = doRequest(t, router, http.MethodGet, path, customerToken, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMedicationEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	_, token := registerUser(t, router, "Gal", "gal@example.com", "customer")

	w := doRequest(t, router, http.MethodGet, "/medications?query=para", token, "")
	assert.Equal(t, http.StatusOK, w.Code)
	var meds []map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&meds))
	require.Len(t, meds, 1)
	assert.Equal(t, "Acamol", meds[0]["name"])

	w = doRequest(t, router, http.MethodGet, "/medications/med_acamol", token, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/medications/med_unknown", token, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFinancialsReport_ManagerOnly(t *testing.T) {
	router, _ := newTestRouter(t)
	_, customerToken := registerUser(t, router, "Gal", "gal@example.com", "customer")

	w := doRequest(t, router, http.MethodGet, "/reports/financials", customerToken, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
