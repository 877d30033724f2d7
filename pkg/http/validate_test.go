package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type probe struct {
	Severity int `json:"severity" validate:"gte=0,lte=5"`
}

type probeRequest struct {
	Name   string  `json:"name" validate:"required"`
	Limit  int     `json:"limit" default:"10" validate:"lte=100"`
	Probes []probe `json:"probes" validate:"max=2,dive"`
}

func bind(t *testing.T, body string) (probeRequest, interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	var out probeRequest
	return out, ReadAndValidateRequest(c, &out)
}

func TestReadAndValidateRequest(t *testing.T) {
	if _, verr := bind(t, `{"name":"ok","probes":[{"severity":3}]}`); verr != nil {
		t.Fatalf("valid request rejected: %+v", verr)
	}

	_, verr := bind(t, `{"probes":[{"severity":1},{"severity":7}]}`)
	errs, ok := verr.([]ValidationError)
	if !ok || len(errs) != 2 {
		t.Fatalf("errors = %#v", verr)
	}
	if errs[0].Field != "name" || errs[0].Code != "ERR_REQUIRED" {
		t.Fatalf("first error %+v", errs[0])
	}
	if errs[1].Field != "probes[1].severity" || errs[1].Code != "ERR_LTE" || errs[1].Params["max"] != "5" {
		t.Fatalf("second error %+v", errs[1])
	}

	_, verr = bind(t, `{"name":`)
	if errs, ok := verr.([]ValidationError); !ok || errs[0].Code != "ERR_MALFORMED_BODY" {
		t.Fatalf("malformed body: %#v", verr)
	}
}

func TestValidateStruct(t *testing.T) {
	if err := ValidateStruct(context.Background(), &probe{Severity: 2}); err != nil {
		t.Fatalf("valid: %v", err)
	}
	err := ValidateStruct(context.Background(), &probe{Severity: 9})
	if err == nil || !strings.Contains(err.Error(), "severity must be less than or equal to 5") {
		t.Fatalf("err = %v", err)
	}
}
