package handlers

import (
	"net/http/httptest"
	"testing"

	"copa-dashboard/models"

	"github.com/gin-gonic/gin"
)

func specFor(t *testing.T, rawQuery string) (models.FilterSpec, error) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/listings?"+rawQuery, nil)
	return filterSpecFromQuery(c)
}

func TestFilterSpecFromQuery(t *testing.T) {
	tests := []struct {
		name     string
		rawQuery string
		check    func(t *testing.T, spec models.FilterSpec)
	}{
		{
			name:     "Defaults",
			rawQuery: "",
			check: func(t *testing.T, spec models.FilterSpec) {
				if !spec.ShowActive || spec.MinDaysLeft != 1 {
					t.Errorf("expected active-only with 1 day minimum, got %+v", spec)
				}
				if spec.Flagged || spec.UnitBucket != models.UnitBucketNone || spec.Neighborhoods != nil {
					t.Errorf("expected empty optional filters, got %+v", spec)
				}
			},
		},
		{
			name:     "Full query",
			rawQuery: "q=valencia&neighborhoods=Mission,Noe%20Valley&units=11-25&active=false&flagged=true",
			check: func(t *testing.T, spec models.FilterSpec) {
				if spec.Query != "valencia" {
					t.Errorf("Query = %q", spec.Query)
				}
				if !spec.Neighborhoods["Mission"] || !spec.Neighborhoods["Noe Valley"] || len(spec.Neighborhoods) != 2 {
					t.Errorf("Neighborhoods = %v", spec.Neighborhoods)
				}
				if spec.UnitBucket != models.UnitBucket11To25 {
					t.Errorf("UnitBucket = %v", spec.UnitBucket)
				}
				if spec.ShowActive {
					t.Errorf("expected ShowActive false")
				}
				if !spec.Flagged {
					t.Errorf("expected Flagged true")
				}
			},
		},
		{
			name:     "Custom minimum days",
			rawQuery: "min_days_left=3",
			check: func(t *testing.T, spec models.FilterSpec) {
				if spec.MinDaysLeft != 3 {
					t.Errorf("MinDaysLeft = %d, want 3", spec.MinDaysLeft)
				}
			},
		},
		{
			name:     "Blank neighborhood entries dropped",
			rawQuery: "neighborhoods=Mission,%20,",
			check: func(t *testing.T, spec models.FilterSpec) {
				if len(spec.Neighborhoods) != 1 || !spec.Neighborhoods["Mission"] {
					t.Errorf("Neighborhoods = %v", spec.Neighborhoods)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := specFor(t, tt.rawQuery)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, spec)
		})
	}
}

func TestFilterSpecFromQueryRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		rawQuery string
	}{
		{"Unknown unit bucket", "units=2-5"},
		{"Non-boolean active", "active=maybe"},
		{"Negative minimum days", "min_days_left=-1"},
		{"Non-numeric minimum days", "min_days_left=soon"},
		{"Non-boolean flagged", "flagged=yes%20please"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := specFor(t, tt.rawQuery); err == nil {
				t.Errorf("expected error for %q", tt.rawQuery)
			}
		})
	}
}

func TestParseUnitBucket(t *testing.T) {
	tests := []struct {
		in       string
		expected models.UnitBucket
		ok       bool
	}{
		{"1-10", models.UnitBucket1To10, true},
		{"11-25", models.UnitBucket11To25, true},
		{"26-49", models.UnitBucket26To49, true},
		{"50+", models.UnitBucket50Plus, true},
		{"", models.UnitBucketNone, false},
		{"all", models.UnitBucketNone, false},
	}

	for _, tt := range tests {
		bucket, ok := parseUnitBucket(tt.in)
		if bucket != tt.expected || ok != tt.ok {
			t.Errorf("parseUnitBucket(%q) = (%v, %v), want (%v, %v)", tt.in, bucket, ok, tt.expected, tt.ok)
		}
	}
}
