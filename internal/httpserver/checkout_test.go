package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/checkout/internal/auth"
	"github.com/Skotchmaster/checkout/internal/cart"
	"github.com/Skotchmaster/checkout/internal/catalog"
	"github.com/Skotchmaster/checkout/internal/checkout"
	"github.com/Skotchmaster/checkout/internal/ledger"
	"github.com/Skotchmaster/checkout/internal/models"
	"github.com/Skotchmaster/checkout/internal/orderstore"
)

type testEnv struct {
	T         *testing.T
	E         *echo.Echo
	DB        *gorm.DB
	Auth      *auth.Middleware
	Checkout  *CheckoutHandler
	Order     *OrderHandler
	Admin     *AdminHandler
	JWTSecret []byte
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{}, &models.Reservation{},
	))

	secret := []byte("test_secret")
	store := &orderstore.Store{DB: db}
	cartSource := &cart.GormSource{DB: db}
	engine := &checkout.Engine{
		Ledger:  &ledger.Ledger{DB: db},
		Store:   store,
		Catalog: &catalog.Reader{DB: db},
		Cart:    cartSource,
	}

	return &testEnv{
		T:         t,
		E:         echo.New(),
		DB:        db,
		Auth:      &auth.Middleware{JWTSecret: secret},
		Checkout:  &CheckoutHandler{Engine: engine, Cart: cartSource},
		Order:     &OrderHandler{Engine: engine, Store: store},
		Admin:     &AdminHandler{Engine: engine, Store: store},
		JWTSecret: secret,
	}
}

func (env *testEnv) accessToken(userID uint, role string) *http.Cookie {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(15 * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(env.JWTSecret)
	require.NoError(env.T, err)
	return &http.Cookie{Name: "accessToken", Value: signed, Path: "/"}
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func TestCheckoutEndpoint(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.DB.Create(&models.Product{Name: "test_name", Description: "test_description", Price: 1000, Count: 5}).Error)
	require.NoError(t, env.DB.Create(&models.CartItem{UserID: 1, ProductID: 1, Quantity: 2}).Error)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/checkout", nil, env.accessToken(1, "user"))
	require.NoError(t, env.Auth.RequireLogin(env.Checkout.Checkout)(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	require.Equal(t, uint(1), order.UserID)
	require.Equal(t, int64(2000), order.Total)
	require.Equal(t, "pending", order.Status)
	require.Len(t, order.Items, 1)

	var p models.Product
	require.NoError(t, env.DB.First(&p, 1).Error)
	require.Equal(t, uint(3), p.Count)
}

func TestCheckoutEndpointInsufficientStock(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.DB.Create(&models.Product{Name: "test_name", Description: "test_description", Price: 1000, Count: 5}).Error)
	require.NoError(t, env.DB.Create(&models.CartItem{UserID: 1, ProductID: 1, Quantity: 10}).Error)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/checkout", nil, env.accessToken(1, "user"))
	err := env.Auth.RequireLogin(env.Checkout.Checkout)(c)

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusConflict, he.Code)

	payload, ok := he.Message.(map[string]any)
	require.True(t, ok)
	require.Equal(t, uint(1), payload["product_id"])
	require.Equal(t, uint(5), payload["available"])

	var p models.Product
	require.NoError(t, env.DB.First(&p, 1).Error)
	require.Equal(t, uint(5), p.Count)
}

func TestCheckoutEndpointEmptyCart(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/checkout", nil, env.accessToken(1, "user"))
	err := env.Auth.RequireLogin(env.Checkout.Checkout)(c)

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusBadRequest, he.Code)
}

func TestCheckoutEndpointRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/checkout", nil)
	err := env.Auth.RequireLogin(env.Checkout.Checkout)(c)

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestGetOrderScopedToOwner(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.DB.Create(&models.Product{Name: "test_name", Description: "test_description", Price: 1000, Count: 5}).Error)
	require.NoError(t, env.DB.Create(&models.CartItem{UserID: 1, ProductID: 1, Quantity: 1}).Error)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/checkout", nil, env.accessToken(1, "user"))
	require.NoError(t, env.Auth.RequireLogin(env.Checkout.Checkout)(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))

	// owner sees the order
	recGet, cGet := env.doJSONRequest(http.MethodGet, "/api/v1/orders/1", nil, env.accessToken(1, "user"))
	cGet.SetParamNames("id")
	cGet.SetParamValues("1")
	require.NoError(t, env.Auth.RequireLogin(env.Order.GetOrder)(cGet))
	require.Equal(t, http.StatusOK, recGet.Code)

	// another user does not
	_, cOther := env.doJSONRequest(http.MethodGet, "/api/v1/orders/1", nil, env.accessToken(2, "user"))
	cOther.SetParamNames("id")
	cOther.SetParamValues("1")
	err := env.Auth.RequireLogin(env.Order.GetOrder)(cOther)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusNotFound, he.Code)

	// an admin does
	recAdmin, cAdmin := env.doJSONRequest(http.MethodGet, "/api/v1/orders/1", nil, env.accessToken(3, "admin"))
	cAdmin.SetParamNames("id")
	cAdmin.SetParamValues("1")
	require.NoError(t, env.Auth.RequireLogin(env.Order.GetOrder)(cAdmin))
	require.Equal(t, http.StatusOK, recAdmin.Code)
}
