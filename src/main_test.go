package main

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"rbs/src/db"
	"rbs/src/middlewares"
	"rbs/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
	DB   *gorm.DB
	Mock sqlmock.Sqlmock
}

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

// stubAuth stands in for the JWT middleware so handler tests do not need a
// user row behind the mock connection.
func stubAuth(ctx *gin.Context) {
	ctx.Set("id", uint(1))
	ctx.Set("email", "someone@example.com")
	ctx.Set("role", "renter")
}

func (s *TestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	registerValidators()

	d, mock := NewMockDB()
	db.NewDB(d)
	s.DB = d
	s.Mock = mock
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestMissingAuth() {
	router := setupRouter()
	authorized := apiv1Group(router)
	authorized.Use(middlewares.AuthMiddleware)
	bookingHandlers(authorized)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/bookings", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 401, w.Code)
}

func (s *TestSuite) TestCreateBookingValidation() {
	router := setupRouter()
	authorized := apiv1Group(router)
	authorized.Use(stubAuth)
	bookingHandlers(authorized)

	s.Run("Should reject a body with missing fields", func() {
		body := types.CreateBookingRequestBody{
			RenterID: 1,
		}
		rbytes, err := json.Marshal(&body)
		assert.Nil(s.T(), err)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(rbytes)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
		errMsg := gjson.Get(w.Body.String(), "error").String()
		assert.NotEmpty(s.T(), errMsg)
	})

	s.Run("Should reject an end date before the start date", func() {
		body := types.CreateBookingRequestBody{
			RenterID:         1,
			OwnerID:          2,
			ListingID:        3,
			StartDate:        "2030-06-10 10:00:00 +00:00",
			EndDate:          "2030-06-01 10:00:00 +00:00",
			DailyRateCents:   30000,
			Currency:         "usd",
			AuthorizationRef: "pi_123",
			ApprovalDeadline: "2030-06-05 10:00:00 +00:00",
		}
		rbytes, err := json.Marshal(&body)
		assert.Nil(s.T(), err)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(rbytes)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("Should reject a date in the past", func() {
		body := types.CreateBookingRequestBody{
			RenterID:         1,
			OwnerID:          2,
			ListingID:        3,
			StartDate:        "2020-06-01 10:00:00 +00:00",
			EndDate:          "2030-06-10 10:00:00 +00:00",
			DailyRateCents:   30000,
			Currency:         "usd",
			AuthorizationRef: "pi_123",
			ApprovalDeadline: "2030-06-05 10:00:00 +00:00",
		}
		rbytes, err := json.Marshal(&body)
		assert.Nil(s.T(), err)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(string(rbytes)))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
