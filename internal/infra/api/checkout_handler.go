package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"checkout-bridge/internal/domain"
	"checkout-bridge/internal/domain/model"
	"checkout-bridge/internal/infra/logging"
	"checkout-bridge/internal/usecase"
)

// Order pages send camelCase, form builders send snake_case or the
// order platform's own field names.
var paramAliases = map[string][]string{
	"orderId":    {"orderId", "order_id", "deal_number", "dealNumber"},
	"userEmail":  {"userEmail", "user_email", "email"},
	"userPhone":  {"userPhone", "user_phone", "phone"},
	"userName":   {"userName", "user_name", "name"},
	"amount":     {"amount", "deal_cost", "cost"},
	"offerTitle": {"offerTitle", "offer_title"},
	"currency":   {"currency"},
	"mode":       {"mode"},
	"async":      {"async"},
}

type requestParams map[string]string

func (p requestParams) get(field string) string {
	for _, k := range paramAliases[field] {
		if v := strings.TrimSpace(p[k]); v != "" {
			return v
		}
	}
	return ""
}

// readParams merges query string, form and JSON body values; body wins.
func readParams(r *http.Request, maxBytes int64) (requestParams, error) {
	out := requestParams{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	if r.Body == nil || r.Method == http.MethodGet {
		return out, nil
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		var err error
		if ct == "multipart/form-data" {
			err = r.ParseMultipartForm(maxBytes)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		for k, v := range r.PostForm {
			if len(v) > 0 {
				out[k] = v[0]
			}
		}
	default:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if len(strings.TrimSpace(string(body))) == 0 {
			return out, nil
		}
		dec := json.NewDecoder(strings.NewReader(string(body)))
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("invalid JSON payload: %w", err)
		}
		for k, v := range m {
			switch t := v.(type) {
			case nil:
			case string:
				out[k] = t
			case json.Number:
				out[k] = t.String()
			case bool:
				out[k] = fmt.Sprint(t)
			}
		}
	}
	return out, nil
}

func isAsync(p requestParams) bool {
	return strings.EqualFold(p.get("mode"), "async") || strings.EqualFold(p.get("async"), "true") || p.get("async") == "1"
}

func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	}
	p, err := readParams(r, s.opts.MaxBodyBytes)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	req := usecase.CheckoutRequest{
		OrderID:    p.get("orderId"),
		UserEmail:  p.get("userEmail"),
		UserPhone:  p.get("userPhone"),
		UserName:   p.get("userName"),
		Amount:     p.get("amount"),
		OfferTitle: p.get("offerTitle"),
		Currency:   p.get("currency"),
	}
	ctx := logging.WithOrderID(r.Context(), req.OrderID)

	if isAsync(p) && s.d.Dispatcher != nil {
		s.createAsync(ctx, w, req)
		return
	}

	res, err := s.d.Checkout.CreateCheckout(ctx, req)
	if err != nil {
		s.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, readyBody(res))
}

func (s *Server) createAsync(ctx context.Context, w http.ResponseWriter, req usecase.CheckoutRequest) {
	prepared, err := s.d.Checkout.Prepare(ctx, req)
	if err != nil {
		s.writeCheckoutError(ctx, w, err)
		return
	}

	submitErr := s.d.Dispatcher.Submit(func(poolCtx context.Context) error {
		_, err := s.d.Checkout.Complete(logging.WithOrderID(poolCtx, prepared.Request.OrderID), prepared)
		return err
	})
	if submitErr != nil {
		logging.With(ctx, s.log).Warn().Err(submitErr).Msg("dispatcher unavailable; completing checkout inline")
		res, err := s.d.Checkout.Complete(ctx, prepared)
		if err != nil {
			s.writeCheckoutError(ctx, w, err)
			return
		}
		writeJSON(w, http.StatusOK, readyBody(res))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"success":   true,
		"ready":     false,
		"orderId":   prepared.Request.OrderID,
		"planName":  prepared.Plan.Name,
		"amount":    model.MajorNumber(prepared.Amount),
		"statusUrl": "/api/checkout-status/" + url.PathEscape(prepared.Request.OrderID),
		"expiresAt": prepared.Handle.ExpiresAt,
	})
}

func readyBody(res *usecase.CheckoutResult) map[string]any {
	return map[string]any{
		"success":     true,
		"ready":       true,
		"checkoutUrl": res.CheckoutURL,
		"orderId":     res.OrderID,
		"planName":    res.Plan.Name,
		"amount":      model.MajorNumber(res.Amount),
		"currency":    res.Currency,
		"expiresAt":   res.ExpiresAt,
	}
}

func (s *Server) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   domain.ErrMissingParameters.Error(),
			"missing": ve.Missing,
		})
	case errors.Is(err, domain.ErrSessionSuperseded):
		writeJSON(w, http.StatusConflict, errorBody("checkout superseded by a newer request"))
	case errors.Is(err, domain.ErrUpstream):
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create checkout"))
	default:
		logging.With(ctx, s.log).Error().Err(err).Msg("create checkout failed")
		writeJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
	}
}

func (s *Server) handleCheckoutStatus(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	ctx := logging.WithOrderID(r.Context(), orderID)

	st, err := s.d.Status.Poll(ctx, orderID)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false, "error": domain.ErrMissingParameters.Error(), "missing": ve.Missing,
			})
			return
		}
		logging.With(ctx, s.log).Error().Err(err).Msg("status poll failed")
		writeJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
		return
	}

	switch st.State {
	case usecase.PollExpired:
		writeJSON(w, http.StatusGone, map[string]any{"success": false, "ready": false, "error": "expired"})
	case usecase.PollWaiting:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "ready": false, "message": st.Message})
	case usecase.PollPreparing:
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"ready":      false,
			"message":    st.Message,
			"orderId":    st.OrderID,
			"amount":     model.MajorNumber(st.Amount),
			"offerTitle": st.OfferTitle,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"ready":       true,
			"orderId":     st.OrderID,
			"checkoutUrl": st.CheckoutURL,
			"amount":      model.MajorNumber(st.Amount),
			"currency":    st.Currency,
			"offerTitle":  st.OfferTitle,
			"planName":    st.PlanName,
		})
	}
}
