package backendapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alovak/checkout-playground/checkout/models"
	"github.com/alovak/checkout-playground/internal/backendapi"
	"github.com/stretchr/testify/require"
)

func TestGetDiscountList_NotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := backendapi.New(srv.URL, "", nil)
	offers, err := client.GetDiscountList(context.Background())
	require.NoError(t, err)
	require.Empty(t, offers)
	require.NotNil(t, offers)
}

func TestGetDiscountList_NullBodyIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("null"))
	}))
	defer srv.Close()

	client := backendapi.New(srv.URL, "", nil)
	offers, err := client.GetDiscountList(context.Background())
	require.NoError(t, err)
	require.Empty(t, offers)
	require.NotNil(t, offers, "a JSON null body must not surface as a null discount list")
}

func TestGetPointBalance(t *testing.T) {
	t.Run("defaults to zero on server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := backendapi.New(srv.URL, "", nil)
		snapshot, err := client.GetPointBalance(context.Background())
		require.NoError(t, err)
		require.Zero(t, snapshot.AvailableBalance)
	})

	t.Run("auth failure propagates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "expired session", http.StatusUnauthorized)
		}))
		defer srv.Close()

		client := backendapi.New(srv.URL, "", nil)
		_, err := client.GetPointBalance(context.Background())
		be, ok := backendapi.AsError(err)
		require.True(t, ok)
		require.Equal(t, http.StatusUnauthorized, be.Status)
	})
}

func TestSavePaymentBefore_SynthesizesOnNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := backendapi.New(srv.URL, "", nil)
	record, err := client.SavePaymentBefore(context.Background(), backendapi.SavePaymentRequest{
		ReservationID: "resv_1",
		OrderID:       "ORDER-1700000000000-x7k2m9qp4",
		FinalAmount:   45000,
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(record.PaymentID, "LOCAL-"))
	require.Equal(t, "ORDER-1700000000000-x7k2m9qp4", record.OrderID)
	require.Equal(t, "resv_1", record.ReservationID)
	require.Equal(t, models.PaymentStatusReady, record.Status)
}

func TestConfirmPayment_ErrorCarriesStatusCodeMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"code": "INVALID_AMOUNT", "message": "amount does not match ledger"})
	}))
	defer srv.Close()

	client := backendapi.New(srv.URL, "", nil)
	_, err := client.ConfirmPayment(context.Background(), backendapi.ConfirmPaymentRequest{})
	be, ok := backendapi.AsError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, be.Status)
	require.Equal(t, "INVALID_AMOUNT", be.Code)
	require.Equal(t, "amount does not match ledger", be.Message)
}

func TestConfirmPayment_PlainTextErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := backendapi.New(srv.URL, "", nil)
	_, err := client.ConfirmPayment(context.Background(), backendapi.ConfirmPaymentRequest{})
	be, ok := backendapi.AsError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusInternalServerError, be.Status)
	require.Equal(t, "internal error", be.Message)
}

func TestClient_SendsAuthToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]models.DiscountOffer{})
	}))
	defer srv.Close()

	client := backendapi.New(srv.URL, "session-token", nil)
	_, err := client.GetDiscountList(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer session-token", gotAuth)
}
