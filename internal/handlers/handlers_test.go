package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"budget-tracker/internal/auth"
	"budget-tracker/internal/models"
	"budget-tracker/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testSecret = "test-secret-0123456789"

// HandlersTestSuite drives the real router through an HTTP test server.
type HandlersTestSuite struct {
	suite.Suite
	db     *storage.DB
	h      *Handlers
	server *httptest.Server
	ctx    context.Context
}

func (suite *HandlersTestSuite) SetupTest() {
	db, err := storage.NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db

	h, err := NewHandlers(db, auth.NewSessionManager(testSecret, time.Hour, false))
	require.NoError(suite.T(), err, "failed to create handlers")
	suite.h = h

	mux := http.NewServeMux()
	h.Mount(mux)
	suite.server = httptest.NewServer(mux)
	suite.ctx = context.Background()
}

func (suite *HandlersTestSuite) TearDownTest() {
	if suite.server != nil {
		suite.server.Close()
	}
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *HandlersTestSuite) newClient() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(suite.T(), err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (suite *HandlersTestSuite) get(c *http.Client, path string) (*http.Response, string) {
	resp, err := c.Get(suite.server.URL + path)
	require.NoError(suite.T(), err)
	return resp, readBody(suite.T(), resp)
}

func (suite *HandlersTestSuite) post(c *http.Client, path string, form url.Values) (*http.Response, string) {
	resp, err := c.PostForm(suite.server.URL+path, form)
	require.NoError(suite.T(), err)
	return resp, readBody(suite.T(), resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func (suite *HandlersTestSuite) assertRedirect(resp *http.Response, location string) {
	suite.T().Helper()
	assert.Equal(suite.T(), http.StatusFound, resp.StatusCode)
	assert.Equal(suite.T(), location, resp.Header.Get("Location"))
}

// login registers username and returns a client holding its session.
func (suite *HandlersTestSuite) login(username string) *http.Client {
	c := suite.newClient()
	creds := url.Values{"username": {username}, "password": {"pw-" + username}}

	resp, _ := suite.post(c, "/register", creds)
	suite.assertRedirect(resp, "/login")
	resp, _ = suite.post(c, "/login", creds)
	suite.assertRedirect(resp, "/dashboard")
	return c
}

func (suite *HandlersTestSuite) userID(username string) int64 {
	var id int64
	err := suite.db.WithTx(suite.ctx, func(tx *storage.Tx) error {
		u, err := tx.GetUserByUsername(suite.ctx, username)
		if err != nil {
			return err
		}
		id = u.ID
		return nil
	})
	require.NoError(suite.T(), err)
	return id
}

func (suite *HandlersTestSuite) refs(userID int64, t models.TransactionType) (accountID, categoryID string) {
	accounts, err := suite.h.ledger.ListAccounts(suite.ctx, userID)
	require.NoError(suite.T(), err)
	categories, err := suite.h.ledger.ListCategories(suite.ctx, userID)
	require.NoError(suite.T(), err)
	for _, c := range categories {
		if c.CategoryType == t {
			return strconv.FormatInt(accounts[0].ID, 10), strconv.FormatInt(c.ID, 10)
		}
	}
	suite.T().Fatalf("no %s category", t)
	return "", ""
}

func (suite *HandlersTestSuite) TestRootRedirectsToLogin() {
	resp, _ := suite.get(suite.newClient(), "/")
	suite.assertRedirect(resp, "/login")
}

func (suite *HandlersTestSuite) TestHealthz() {
	resp, body := suite.get(suite.newClient(), "/healthz")
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(suite.T(), "ok", body)
}

func (suite *HandlersTestSuite) TestRegisterLoginDashboard() {
	c := suite.newClient()
	creds := url.Values{"username": {"alice"}, "password": {"wonderland"}}

	resp, body := suite.get(c, "/register")
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Contains(suite.T(), body, "register-form")

	resp, _ = suite.post(c, "/register", creds)
	suite.assertRedirect(resp, "/login")

	resp, body = suite.get(c, "/login")
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Contains(suite.T(), body, "Registration successful! Please login.")

	resp, _ = suite.post(c, "/login", creds)
	suite.assertRedirect(resp, "/dashboard")

	resp, body = suite.get(c, "/dashboard")
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Contains(suite.T(), body, "Welcome, alice")
	assert.Contains(suite.T(), body, "Login successful!")
	for _, name := range []string{"Cash", "Savings Account", "Card"} {
		assert.Contains(suite.T(), body, name)
	}
	assert.Contains(suite.T(), body, "0.00")

	resp, _ = suite.get(c, "/login")
	suite.assertRedirect(resp, "/dashboard")
}

func (suite *HandlersTestSuite) TestRegisterDuplicate() {
	suite.login("alice")

	resp, body := suite.post(suite.newClient(), "/register", url.Values{"username": {"alice"}, "password": {"other"}})
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Contains(suite.T(), body, "Username already exists")

	err := suite.db.WithTx(suite.ctx, func(tx *storage.Tx) error {
		count, err := tx.UserCount(suite.ctx)
		assert.Equal(suite.T(), 1, count)
		return err
	})
	require.NoError(suite.T(), err)
}

func (suite *HandlersTestSuite) TestRegisterMissingFields() {
	resp, body := suite.post(suite.newClient(), "/register", url.Values{"username": {"bob"}})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(suite.T(), body, "password is required")
}

func (suite *HandlersTestSuite) TestRegisterPasswordTooLongForBcrypt() {
	// 40 characters pass the form limit but take 80 bytes
	resp, body := suite.post(suite.newClient(), "/register", url.Values{
		"username": {"bob"}, "password": {strings.Repeat("é", 40)},
	})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(suite.T(), body, "password must be at most 72 bytes")
	assert.Contains(suite.T(), body, "register-form")
}

func (suite *HandlersTestSuite) TestLoginFailuresLookAlike() {
	suite.login("alice")

	c := suite.newClient()
	wrongResp, wrongBody := suite.post(c, "/login", url.Values{"username": {"alice"}, "password": {"nope"}})
	unknownResp, unknownBody := suite.post(c, "/login", url.Values{"username": {"mallory"}, "password": {"nope"}})

	assert.Equal(suite.T(), wrongResp.StatusCode, unknownResp.StatusCode)
	assert.Contains(suite.T(), wrongBody, "Invalid username or password")
	assert.Contains(suite.T(), unknownBody, "Invalid username or password")

	resp, _ := suite.get(c, "/dashboard")
	suite.assertRedirect(resp, "/login")
}

func (suite *HandlersTestSuite) TestProtectedRoutesRequireSession() {
	suite.login("alice")
	aliceID := suite.userID("alice")
	accountID, categoryID := suite.refs(aliceID, models.Expense)

	anon := suite.newClient()
	for _, path := range []string{"/dashboard", "/transactions"} {
		resp, _ := suite.get(anon, path)
		suite.assertRedirect(resp, "/login")
	}

	posts := map[string]url.Values{
		"/transactions": {
			"amount": {"5"}, "category": {categoryID}, "account": {accountID},
			"transaction_type": {"expense"},
		},
		"/manage_accounts":   {"name": {"Sneaky"}, "initial_balance": {"1"}},
		"/manage_categories": {"name": {"Sneaky"}, "category_type": {"income"}},
	}
	for path, form := range posts {
		resp, _ := suite.post(anon, path, form)
		suite.assertRedirect(resp, "/login")
	}

	overview, err := suite.h.ledger.Overview(suite.ctx, aliceID)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), overview.Transactions)
	assert.Len(suite.T(), overview.Accounts, 3)
	assert.Len(suite.T(), overview.Categories, 7)
}

func (suite *HandlersTestSuite) TestTamperedSessionIsAnonymous() {
	c := suite.newClient()
	serverURL, err := url.Parse(suite.server.URL)
	require.NoError(suite.T(), err)

	forged := auth.NewSessionManager("attacker-secret-0123", time.Hour, false)
	rec := httptest.NewRecorder()
	require.NoError(suite.T(), forged.Start(rec, 1, "alice"))
	c.Jar.SetCookies(serverURL, rec.Result().Cookies())

	resp, _ := suite.get(c, "/dashboard")
	suite.assertRedirect(resp, "/login")
}

func (suite *HandlersTestSuite) TestTransactionFlow() {
	c := suite.login("alice")
	aliceID := suite.userID("alice")
	accountID, expenseID := suite.refs(aliceID, models.Expense)
	_, incomeID := suite.refs(aliceID, models.Income)

	resp, _ := suite.post(c, "/transactions", url.Values{
		"amount": {"100"}, "category": {incomeID}, "account": {accountID},
		"transaction_type": {"income"}, "description": {"Paycheck"}, "timestamp": {"2024-06-01T09:00"},
	})
	suite.assertRedirect(resp, "/transactions")

	resp, _ = suite.post(c, "/transactions", url.Values{
		"amount": {"12.5"}, "category": {expenseID}, "account": {accountID},
		"transaction_type": {"expense"}, "description": {"Lunch"}, "timestamp": {""},
	})
	suite.assertRedirect(resp, "/transactions")

	resp, body := suite.get(c, "/transactions")
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Contains(suite.T(), body, "Transaction added!")
	assert.Contains(suite.T(), body, "Paycheck")
	assert.Contains(suite.T(), body, "2024-06-01 09:00")
	assert.Less(suite.T(), strings.Index(body, "Lunch"), strings.Index(body, "Paycheck"), "newest first")

	_, body = suite.get(c, "/dashboard")
	assert.Contains(suite.T(), body, "87.50")
}

func (suite *HandlersTestSuite) TestCreateTransactionValidation() {
	c := suite.login("alice")
	accountID, categoryID := suite.refs(suite.userID("alice"), models.Expense)

	tests := []struct {
		name    string
		modify  func(url.Values)
		message string
	}{
		{"malformed amount", func(v url.Values) { v.Set("amount", "ten") }, "amount must be a number"},
		{"negative amount", func(v url.Values) { v.Set("amount", "-4") }, "amount must not be negative"},
		{"exponent amount", func(v url.Values) { v.Set("amount", "1e200000000") }, "amount must be a number"},
		{"oversized amount", func(v url.Values) { v.Set("amount", "12345678901234567") }, "amount is too large"},
		{"too precise amount", func(v url.Values) { v.Set("amount", "0.123456789") }, "amount must have at most 8 decimal places"},
		{"missing amount", func(v url.Values) { v.Del("amount") }, "amount is required"},
		{"bad timestamp", func(v url.Values) { v.Set("timestamp", "yesterday") }, "timestamp must look like"},
		{"bad type", func(v url.Values) { v.Set("transaction_type", "gift") }, "transaction type must be one of"},
		{"bad account", func(v url.Values) { v.Set("account", "abc") }, "account must be a number"},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			form := url.Values{
				"amount": {"5"}, "category": {categoryID}, "account": {accountID},
				"transaction_type": {"expense"},
			}
			tt.modify(form)
			resp, body := suite.post(c, "/transactions", form)
			assert.Equal(suite.T(), http.StatusUnprocessableEntity, resp.StatusCode)
			assert.Contains(suite.T(), body, tt.message)
			assert.Contains(suite.T(), body, "transaction-form", "form is redisplayed")
		})
	}

	txns, err := suite.h.ledger.ListTransactions(suite.ctx, suite.userID("alice"))
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), txns)
}

func (suite *HandlersTestSuite) TestCreateTransactionWithGuessedForeignIDs() {
	alice := suite.login("alice")
	suite.login("bob")
	bobID := suite.userID("bob")
	bobAccount, bobCategory := suite.refs(bobID, models.Expense)

	resp, body := suite.post(alice, "/transactions", url.Values{
		"amount": {"5"}, "category": {bobCategory}, "account": {bobAccount},
		"transaction_type": {"expense"}, "description": {"stolen"},
	})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(suite.T(), body, "Unknown account or category")

	for _, user := range []int64{suite.userID("alice"), bobID} {
		txns, err := suite.h.ledger.ListTransactions(suite.ctx, user)
		require.NoError(suite.T(), err)
		assert.Empty(suite.T(), txns)
	}

	_, body = suite.get(alice, "/transactions")
	assert.NotContains(suite.T(), body, "stolen")
}

func (suite *HandlersTestSuite) TestManageAccountsAndCategories() {
	c := suite.login("alice")

	resp, _ := suite.post(c, "/manage_accounts", url.Values{"name": {"Mortgage"}, "initial_balance": {"-2500.5"}})
	suite.assertRedirect(resp, "/transactions")

	resp, _ = suite.post(c, "/manage_categories", url.Values{"name": {"Bonus"}, "category_type": {"income"}})
	suite.assertRedirect(resp, "/transactions")

	_, body := suite.get(c, "/transactions")
	assert.Contains(suite.T(), body, "Category added!")
	assert.Contains(suite.T(), body, "Mortgage")
	assert.Contains(suite.T(), body, "Bonus (income)")

	_, body = suite.get(c, "/dashboard")
	assert.Contains(suite.T(), body, "-2500.50")

	resp, body = suite.post(c, "/manage_accounts", url.Values{"name": {""}, "initial_balance": {"1"}})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(suite.T(), body, "name is required")

	resp, body = suite.post(c, "/manage_accounts", url.Values{"name": {"X"}, "initial_balance": {"lots"}})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(suite.T(), body, "initial_balance must be a number")

	resp, body = suite.post(c, "/manage_accounts", url.Values{"name": {"Moon"}, "initial_balance": {"-1e200000000"}})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(suite.T(), body, "initial_balance must be a number")

	resp, body = suite.post(c, "/manage_categories", url.Values{"name": {"Odd"}, "category_type": {"transfer"}})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(suite.T(), body, "category type must be one of")
}

func (suite *HandlersTestSuite) TestLogout() {
	c := suite.login("alice")

	resp, _ := suite.get(c, "/logout")
	suite.assertRedirect(resp, "/login")

	resp, body := suite.get(c, "/login")
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Contains(suite.T(), body, "Logged out")

	resp, _ = suite.get(c, "/dashboard")
	suite.assertRedirect(resp, "/login")
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
