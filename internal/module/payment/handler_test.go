package payment

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newHandlerTestServer(repo *MockRepository, jobs *MockEnqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := newTestService(repo, nil, jobs)
	h := NewHandler(svc)

	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestHandler_CreateTransaction(t *testing.T) {
	repo := new(MockRepository)
	jobs := new(MockEnqueuer)
	r := newHandlerTestServer(repo, jobs)

	repo.On("CreateTransaction", mock.Anything, mock.Anything).Return(nil)
	jobs.On("Enqueue", mock.Anything, JobKindCreateIntent, mock.Anything,
		QueuePayments, PriorityIntent, 0).Return(nil)

	body := `{"user_id":"` + uuid.New().String() + `","amount":"100.00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "pending_intent")
}

func TestHandler_CreateTransaction_BadBody(t *testing.T) {
	r := newHandlerTestServer(new(MockRepository), new(MockEnqueuer))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_CreateTransaction_DuplicateConflict(t *testing.T) {
	repo := new(MockRepository)
	r := newHandlerTestServer(repo, new(MockEnqueuer))

	prior := succeededTransaction(uuid.New())
	repo.On("GetTransaction", mock.Anything, prior.ID).Return(prior, nil)

	body := `{"user_id":"` + uuid.New().String() + `","amount":"100.00","prior_transaction_id":"` + prior.ID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already_paid")
}

func TestHandler_GetTransaction_NotFound(t *testing.T) {
	repo := new(MockRepository)
	r := newHandlerTestServer(repo, new(MockEnqueuer))

	id := uuid.New()
	repo.On("GetTransaction", mock.Anything, id).Return(nil, ErrTransactionNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/"+id.String(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_GetTransaction_BadID(t *testing.T) {
	r := newHandlerTestServer(new(MockRepository), new(MockEnqueuer))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_InitiateRefund(t *testing.T) {
	repo := new(MockRepository)
	jobs := new(MockEnqueuer)
	r := newHandlerTestServer(repo, jobs)

	tx := succeededTransaction(uuid.New())
	repo.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)
	repo.On("HasPendingRefund", mock.Anything, tx.ID).Return(false, nil)
	repo.On("CreateRefund", mock.Anything, mock.Anything).Return(nil)
	jobs.On("Enqueue", mock.Anything, JobKindProcessRefund, mock.Anything,
		QueuePayments, PriorityRefund, 0).Return(nil)

	body := `{"amount":"50.00","reason":"requested by customer"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/"+tx.ID.String()+"/refund", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	repo.AssertExpectations(t)
}

func TestHandler_InitiateRefund_PendingConflict(t *testing.T) {
	repo := new(MockRepository)
	r := newHandlerTestServer(repo, new(MockEnqueuer))

	tx := succeededTransaction(uuid.New())
	repo.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)
	repo.On("HasPendingRefund", mock.Anything, tx.ID).Return(true, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/"+tx.ID.String()+"/refund",
		strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "refund_pending")
}

func TestHandler_CreateTransaction_InvalidAmount(t *testing.T) {
	r := newHandlerTestServer(new(MockRepository), new(MockEnqueuer))

	body := `{"user_id":"` + uuid.New().String() + `","amount":"-5"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_amount")
}
