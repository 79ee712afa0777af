//go:build !integration

package order

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"checkout-bridge/internal/domain/model"
)

func paidUpdate() model.SettlementUpdate {
	return model.SettlementUpdate{
		OrderID:   "D100",
		UserEmail: "a@b.com",
		Status:    model.OrderStatusPaid,
		PaymentID: "pay_1",
		Amount:    99750,
		Currency:  "USD",
	}
}

func TestGetCourseClient_UpdateOrderStatus(t *testing.T) {
	var form map[string]string
	var params map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/pl/api/deals" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		form = map[string]string{"action": r.PostForm.Get("action"), "key": r.PostForm.Get("key")}
		raw, err := base64.StdEncoding.DecodeString(r.PostForm.Get("params"))
		if err != nil {
			t.Errorf("params not base64: %v", err)
		}
		d := json.NewDecoder(strings.NewReader(string(raw)))
		d.UseNumber()
		_ = d.Decode(&params)
		_, _ = w.Write([]byte(`{"success":true,"action":"add","result":{"success":true,"deal_id":42}}`))
	}))
	defer srv.Close()

	c, err := NewGetCourseClient("", "gc_key", srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewGetCourseClient: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }

	if err := c.UpdateOrderStatus(context.Background(), paidUpdate()); err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}
	if form["action"] != "add" || form["key"] != "gc_key" {
		t.Fatalf("unexpected form: %v", form)
	}

	user := params["user"].(map[string]any)
	deal := params["deal"].(map[string]any)
	pay := params["payment"].(map[string]any)
	if user["email"] != "a@b.com" || deal["deal_number"] != "D100" || deal["deal_status"] != "payed" {
		t.Fatalf("unexpected deal params: %v", params)
	}
	if pay["payment_amount"] != json.Number("997.50") || pay["payment_status"] != "accepted" || pay["payment_type"] != "CARD" {
		t.Fatalf("unexpected payment params: %v", pay)
	}
	if pay["payment_id"] != "pay_1" || pay["payment_date"] != "2026-05-01T09:00:00Z" {
		t.Fatalf("unexpected payment params: %v", pay)
	}
}

func TestGetCourseClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantSub string
	}{
		{"top level failure", 200, `{"success":false,"error_message":"Invalid key"}`, "Invalid key"},
		{"deal error", 200, `{"success":true,"result":{"success":false,"error":true,"error_message":"bad email"}}`, "bad email"},
		{"http error", 500, `oops`, "http 500"},
		{"not json", 200, `<html>`, "decode"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, _ := NewGetCourseClient("", "k", srv.URL, time.Second)
			err := c.UpdateOrderStatus(context.Background(), paidUpdate())
			if err == nil || !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("got %v, want error containing %q", err, tc.wantSub)
			}
		})
	}
}

func TestGetCourseClient_Validation(t *testing.T) {
	if _, err := NewGetCourseClient("", "", "", 0); err == nil {
		t.Fatal("expected error without key")
	}
	if _, err := NewGetCourseClient("", "k", "", 0); err == nil {
		t.Fatal("expected error without account or base url")
	}
	c, err := NewGetCourseClient("myschool", "k", "", 0)
	if err != nil {
		t.Fatalf("NewGetCourseClient: %v", err)
	}
	if c.endpoint != "https://myschool.getcourse.ru/pl/api/deals" {
		t.Fatalf("endpoint = %s", c.endpoint)
	}

	u := paidUpdate()
	u.UserEmail = ""
	if err := c.UpdateOrderStatus(context.Background(), u); err == nil {
		t.Fatal("expected error without email")
	}
}

func TestNoopOrderClient(t *testing.T) {
	l := zerolog.New(io.Discard)
	c := NewNoopOrderClient(&l)
	if err := c.UpdateOrderStatus(context.Background(), paidUpdate()); err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}
	if got := c.Updates(); len(got) != 1 || got[0].OrderID != "D100" {
		t.Fatalf("updates = %+v", got)
	}
}
