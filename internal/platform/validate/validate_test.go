package validate

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

type sample struct {
	Name   string `validate:"required"`
	Status string `validate:"omitempty,oneof=draft active"`
}

func TestValidate_Pass(t *testing.T) {
	v := New()
	if err := v.Validate(&sample{Name: "intake", Status: "draft"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	v := New()
	err := v.Validate(&sample{})
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestValidate_InvalidEnum(t *testing.T) {
	v := New()
	err := v.Validate(&sample{Name: "intake", Status: "bogus"})
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
