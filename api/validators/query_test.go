package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
)

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=30&bad=x&big=500", nil)
	v, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 30, v)

	v, err = ParseQueryInt(req, "missing", 20, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 20, v)

	_, err = ParseQueryInt(req, "bad", 20, 1, 100)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	_, err = ParseQueryInt(req, "big", 20, 1, 100)
	require.Error(t, err)
}

func TestParseQueryList(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?statuses=pending,paid&statuses=+failed+&statuses=", nil)
	require.Equal(t, []string{"pending", "paid", "failed"}, ParseQueryList(req, "statuses"))
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?include_locked=true&bad=maybe", nil)
	v, err := ParseQueryBool(req, "include_locked", false)
	require.NoError(t, err)
	require.True(t, v)
	_, err = ParseQueryBool(req, "bad", false)
	require.Error(t, err)
}

func TestParseQueryDecimal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?price_min=12.50&bad=cheap", nil)
	v, err := ParseQueryDecimal(req, "price_min")
	require.NoError(t, err)
	require.Equal(t, "12.5", v.String())

	v, err = ParseQueryDecimal(req, "price_max")
	require.NoError(t, err)
	require.Nil(t, v)

	_, err = ParseQueryDecimal(req, "bad")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rc := chi.NewRouteContext()
	rc.URLParams.Add("order_id", id.String())
	rc.URLParams.Add("broken", "nope")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := ParseUUIDParam(req, "order_id")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParseUUIDParam(req, "broken")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestDecodeJSONBodyRejectsUnknownFieldsAndValidates(t *testing.T) {
	type body struct {
		Quantity int `json:"quantity" validate:"required,min=1"`
	}
	var dst body
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":1,"extra":true}`)), &dst)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":0}`)), &dst)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, map[string]string{"quantity": "is required"}, typed.Details())

	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":3}`)), &dst)
	require.NoError(t, err)
	require.Equal(t, 3, dst.Quantity)
}

func TestDecodeJSONBodyRejectsMalformedEnvelopes(t *testing.T) {
	type body struct {
		Tags []string `json:"tags" validate:"omitempty,dive,max=4"`
	}
	var dst body

	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &dst)
	require.Equal(t, "request body is required", pkgerrors.As(err).Message())

	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"tags":[]} {"tags":[]}`)), &dst)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	huge := `{"tags":["` + strings.Repeat("a", int(MaxBodyBytes)) + `"]}`
	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge)), &dst)
	require.Equal(t, "request body too large", pkgerrors.As(err).Message())

	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"tags":["ok","toolong"]}`)), &dst)
	require.Equal(t, map[string]string{"tags[1]": "must be at most 4"}, pkgerrors.As(err).Details())
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "brake caliper BC-204", SanitizeString("  brake\tcaliper\n\nBC-204 ", 0))
	require.Equal(t, "abc", SanitizeString("abcdef", 3))
	// "é" is two bytes; a cut inside it backs off to the previous rune.
	require.Equal(t, "caf", SanitizeString("café", 4))
	require.Equal(t, "", SanitizeString("\x00\x07 ", 10))
}
