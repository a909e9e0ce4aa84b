package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"wallet/internal/core"
	"wallet/internal/ledger"
	"wallet/internal/log"
	"wallet/internal/storage"
	"wallet/internal/taxonomy"
)

var testCategories = []string{"Food", "Entertainment", "Travel"}

func newTestServer(t *testing.T, mutate ...func(*Options)) (*Server, *ledger.Ledger, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	l, err := ledger.Open(context.Background(), store, ledger.Options{
		Categories: taxonomy.New(testCategories),
		Logger:     log.Discard(),
	})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	opts := Options{
		Addr:              ":0",
		Ledger:            l,
		Categories:        testCategories,
		Logger:            log.Discard(),
		RequestsPerMinute: 1000,
	}
	for _, m := range mutate {
		m(&opts)
	}
	srv := NewServer(opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, l, store
}

func do(t *testing.T, srv *Server, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func postForm(t *testing.T, srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, srv, http.MethodPost, path, "application/x-www-form-urlencoded", form.Encode())
}

func postJSON(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, srv, http.MethodPost, path, "application/json", body)
}

func TestIndexAndHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Wallet Balance: <span class=\"amount\">₹5000</span>", "Expenses: <span class=\"amount\">₹0</span>", "No transactions!"} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if strings.Contains(body, "<dialog") {
		t.Error("dialogs must start closed")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/", "", "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy")
	}
}

func TestReadyReportsStorageFailure(t *testing.T) {
	srv, _, store := newTestServer(t)
	_ = store.Close()

	rr := do(t, srv, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var body struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "not_ready" || body.Checks["templates"] != "ok" {
		t.Fatalf("unexpected readiness body: %+v", body)
	}
}

func TestMissingTemplatesReturn500(t *testing.T) {
	srv, _, _ := newTestServer(t, func(o *Options) { o.Templates = fstest.MapFS{} })
	rr := do(t, srv, http.MethodGet, "/", "", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/static/app.css", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("static status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Cache-Control"), "max-age=3600") {
		t.Fatalf("unexpected Cache-Control %q", rr.Header().Get("Cache-Control"))
	}
}

func TestDialogsOpenAndCancel(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := postForm(t, srv, "/income/open", nil)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("open: status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
	body := do(t, srv, http.MethodGet, "/", "", "").Body.String()
	if !strings.Contains(body, `id="income-dialog"`) {
		t.Fatal("income dialog should be open")
	}
	if strings.Contains(body, `id="expense-dialog"`) {
		t.Fatal("expense dialog should stay closed")
	}

	postForm(t, srv, "/expenses/open", nil)
	body = do(t, srv, http.MethodGet, "/", "", "").Body.String()
	if !strings.Contains(body, `id="income-dialog"`) || !strings.Contains(body, `id="expense-dialog"`) {
		t.Fatal("both dialogs may be open at once")
	}

	postForm(t, srv, "/income/cancel", nil)
	postForm(t, srv, "/expenses/cancel", nil)
	body = do(t, srv, http.MethodGet, "/", "", "").Body.String()
	if strings.Contains(body, "<dialog") {
		t.Fatal("dialogs should be closed after cancel")
	}
}

func TestSubmitIncomeForm(t *testing.T) {
	srv, l, _ := newTestServer(t)
	postForm(t, srv, "/income/open", nil)

	rr := postForm(t, srv, "/income", url.Values{"amount": {"abc"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `id="income-dialog"`) || !strings.Contains(body, "Enter an income amount of zero or more.") {
		t.Fatal("rejected income should keep the dialog open with a message")
	}
	if l.Balance().String() != "5000" {
		t.Fatalf("balance changed on rejected income: %s", l.Balance())
	}

	rr = postForm(t, srv, "/income", url.Values{"amount": {"500.9"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if l.Balance().String() != "5500" {
		t.Fatalf("expected truncated income, balance=%s", l.Balance())
	}
	body = do(t, srv, http.MethodGet, "/", "", "").Body.String()
	if strings.Contains(body, `id="income-dialog"`) {
		t.Fatal("dialog should close after success")
	}
	if !strings.Contains(body, "Wallet Balance: <span class=\"amount\">₹5500</span>") {
		t.Fatal("page should show the new balance")
	}
}

func TestSubmitExpenseForm(t *testing.T) {
	srv, l, _ := newTestServer(t)
	postForm(t, srv, "/expenses/open", nil)

	valid := url.Values{
		"title":    {"Groceries"},
		"price":    {"1200"},
		"category": {"Food"},
		"date":     {"2024-01-01"},
	}

	tooMuch := url.Values{}
	for k, v := range valid {
		tooMuch[k] = v
	}
	tooMuch.Set("price", "6000")

	rr := postForm(t, srv, "/expenses", tooMuch)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "insufficient wallet balance") {
		t.Fatal("missing insufficient balance message")
	}
	if !strings.Contains(body, `value="Groceries"`) {
		t.Fatal("form fields should be kept after a rejected submit")
	}

	rr = postForm(t, srv, "/expenses", valid)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if l.Balance().String() != "3800" || len(l.Expenses()) != 1 {
		t.Fatalf("unexpected ledger state: balance=%s expenses=%d", l.Balance(), len(l.Expenses()))
	}

	body = do(t, srv, http.MethodGet, "/", "", "").Body.String()
	for _, want := range []string{"Groceries", "Expenses: <span class=\"amount\">₹1200</span>", "Wallet Balance: <span class=\"amount\">₹3800</span>"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestNoticeDismiss(t *testing.T) {
	srv, _, _ := newTestServer(t)
	postForm(t, srv, "/income/open", nil)
	postForm(t, srv, "/income", url.Values{"amount": {"100"}})

	body := do(t, srv, http.MethodGet, "/", "", "").Body.String()
	if !strings.Contains(body, "Income added.") {
		t.Fatal("expected success notice")
	}
	postForm(t, srv, "/notice/dismiss", nil)
	body = do(t, srv, http.MethodGet, "/", "", "").Body.String()
	if strings.Contains(body, "Income added.") {
		t.Fatal("notice should be dismissed")
	}
}

func TestAPIAddExpense(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantKind string
	}{
		{"valid", `{"title":"Movie","price":"250","category":"Entertainment","date":"2024-02-01"}`, http.StatusCreated, ""},
		{"numeric price", `{"title":"Movie","price":250.5,"category":"Entertainment","date":"2024-02-01"}`, http.StatusCreated, ""},
		{"insufficient", `{"title":"Car","price":"9000","category":"Travel","date":"2024-02-01"}`, http.StatusConflict, core.KindInsufficientBalance},
		{"empty title", `{"title":"  ","price":"10","category":"Food","date":"2024-02-01"}`, http.StatusUnprocessableEntity, core.KindEmptyTitle},
		{"bad price", `{"title":"x","price":"abc","category":"Food","date":"2024-02-01"}`, http.StatusUnprocessableEntity, core.KindInvalidAmount},
		{"unknown category", `{"title":"x","price":"10","category":"Rent","date":"2024-02-01"}`, http.StatusUnprocessableEntity, core.KindUnknownCategory},
		{"bad date", `{"title":"x","price":"10","category":"Food","date":"2024-02-30"}`, http.StatusUnprocessableEntity, core.KindInvalidDate},
		{"malformed", `{"title":`, http.StatusBadRequest, "bad_request"},
		{"unknown field", `{"title":"x","cost":"10"}`, http.StatusBadRequest, "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer(t)
			rr := postJSON(t, srv, "/api/expenses", tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rr.Code, rr.Body.String())
			}
			if tt.wantKind == "" {
				return
			}
			var resp apiError
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Kind != tt.wantKind || resp.Error == "" {
				t.Fatalf("unexpected error body: %+v", resp)
			}
		})
	}
}

func TestAPIAddIncome(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := postJSON(t, srv, "/api/income", `{"amount":"500"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"balance":5500}` {
		t.Fatalf("unexpected body %s", got)
	}

	rr = postJSON(t, srv, "/api/income", `{"amount":0}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("zero income: expected 200, got %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"balance":5500}` {
		t.Fatalf("zero income changed the balance: %s", got)
	}

	start := time.Now()
	for _, body := range []string{`{"amount":-5}`, `{"amount":1e-999999999}`, `{"amount":"1e-999999999"}`} {
		rr = postJSON(t, srv, "/api/income", body)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d", body, rr.Code)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("rejecting bad amounts took %s", elapsed)
	}
}

func TestAPIReadEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)
	for _, body := range []string{
		`{"title":"Groceries","price":"1200","category":"Food","date":"2024-01-01"}`,
		`{"title":"Train","price":"300","category":"Travel","date":"2024-01-02"}`,
		`{"title":"Lunch","price":"100","category":"Food","date":"2024-01-03"}`,
	} {
		if rr := postJSON(t, srv, "/api/expenses", body); rr.Code != http.StatusCreated {
			t.Fatalf("seed expense: %d %s", rr.Code, rr.Body.String())
		}
	}

	var w walletResponse
	rr := do(t, srv, http.MethodGet, "/api/wallet", "", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &w); err != nil {
		t.Fatalf("decode wallet: %v", err)
	}
	if w.Balance.String() != "3400" || w.TotalExpenses.String() != "1600" || len(w.Expenses) != 3 || len(w.Categories) != 3 {
		t.Fatalf("unexpected wallet: %+v", w)
	}
	if w.Expenses[0].Title != "Groceries" || w.Expenses[2].Title != "Lunch" {
		t.Fatal("expenses must keep insertion order")
	}

	rr = do(t, srv, http.MethodGet, "/api/expenses/total", "", "")
	if got := strings.TrimSpace(rr.Body.String()); got != `{"total":1600}` {
		t.Fatalf("unexpected total %s", got)
	}

	rr = do(t, srv, http.MethodGet, "/api/expenses/by-category", "", "")
	if got := strings.TrimSpace(rr.Body.String()); got != `[{"name":"Food","amount":1300},{"name":"Travel","amount":300}]` {
		t.Fatalf("unexpected by-category %s", got)
	}

	rr = do(t, srv, http.MethodGet, "/api/expenses", "", "")
	var list []core.Expense
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil || len(list) != 3 {
		t.Fatalf("unexpected list: %s err=%v", rr.Body.String(), err)
	}
}

func TestAPIEmptyLists(t *testing.T) {
	srv, _, _ := newTestServer(t)
	for path, want := range map[string]string{
		"/api/expenses":             `[]`,
		"/api/expenses/by-category": `[]`,
		"/api/expenses/total":       `{"total":0}`,
	} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if got := strings.TrimSpace(rr.Body.String()); got != want {
			t.Errorf("%s: got %s want %s", path, got, want)
		}
	}
}

func TestAPIStorageFailureIs500(t *testing.T) {
	srv, l, store := newTestServer(t)
	store.FailWrites = context.DeadlineExceeded

	rr := postJSON(t, srv, "/api/income", `{"amount":"10"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if l.Balance().String() != "5000" {
		t.Fatal("failed write must not change the balance")
	}
}

func TestRateLimitOnPosts(t *testing.T) {
	srv, _, _ := newTestServer(t, func(o *Options) { o.RequestsPerMinute = 2 })

	for i := 0; i < 2; i++ {
		if rr := postForm(t, srv, "/notice/dismiss", nil); rr.Code != http.StatusSeeOther {
			t.Fatalf("request %d: %d", i, rr.Code)
		}
	}
	rr := postForm(t, srv, "/notice/dismiss", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("GET should not be limited, got %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t, func(o *Options) { o.AllowedOrigins = []string{"https://example.com"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/wallet", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestTextOrNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"12.50"`, "12.50"},
		{`12.5`, "12.5"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var v textOrNumber
		if err := json.Unmarshal([]byte(tt.in), &v); err != nil {
			t.Fatalf("%s: %v", tt.in, err)
		}
		if string(v) != tt.want {
			t.Errorf("%s: got %q want %q", tt.in, v, tt.want)
		}
	}
	var v textOrNumber
	if err := json.Unmarshal([]byte(`true`), &v); err == nil {
		t.Error("bool should be rejected")
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Lunch\x00\x07 "); got != "Lunch" {
		t.Fatalf("got %q", got)
	}
	if got := sanitizeInput("a\tb"); got != "a\tb" {
		t.Fatalf("tab should be kept, got %q", got)
	}
}
