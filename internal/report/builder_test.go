package report

import (
	"strings"
	"testing"
	"time"

	"github.com/secdesk/abuse-portal/internal/model"
)

func validForm() Form {
	return Form{
		IncidentType:  model.IncidentPhishing,
		ThreatType:    model.ThreatURL,
		TimeZone:      "UTC",
		Description:   "phishing page impersonating a bank",
		ReporterEmail: "analyst@example.com",
		ReporterName:  "Analyst",
	}
}

func TestFormValidateOK(t *testing.T) {
	if err := validForm().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestFormValidateErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Form)
		wantField string
	}{
		{
			name:      "unknown incident type",
			mutate:    func(f *Form) { f.IncidentType = "Nonsense" },
			wantField: "incidentType",
		},
		{
			name:      "threat not allowed for incident",
			mutate:    func(f *Form) { f.ThreatType = model.ThreatIP },
			wantField: "threatType",
		},
		{
			name:      "missing description",
			mutate:    func(f *Form) { f.Description = "   " },
			wantField: "reportNotes",
		},
		{
			name:      "bad email",
			mutate:    func(f *Form) { f.ReporterEmail = "not-an-email" },
			wantField: "reporterEmail",
		},
		{
			name:      "missing name",
			mutate:    func(f *Form) { f.ReporterName = "" },
			wantField: "reporterName",
		},
		{
			name:      "missing time zone",
			mutate:    func(f *Form) { f.TimeZone = "" },
			wantField: "timeZone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(&f)
			err := f.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			fieldErrs, ok := err.(FieldErrors)
			if !ok {
				t.Fatalf("error type = %T, want FieldErrors", err)
			}
			if _, present := fieldErrs[tt.wantField]; !present {
				t.Errorf("FieldErrors missing %q: %v", tt.wantField, fieldErrs)
			}
		})
	}
}

func TestFormValidateRequiresDestinationForBruteForce(t *testing.T) {
	f := validForm()
	f.IncidentType = model.IncidentBruteForce
	f.ThreatType = model.ThreatIP

	err := f.Validate()
	if err == nil {
		t.Fatal("expected destination errors")
	}
	fieldErrs := err.(FieldErrors)
	if _, ok := fieldErrs["destinationIp"]; !ok {
		t.Error("missing destinationIp error")
	}
	if _, ok := fieldErrs["destinationPort"]; !ok {
		t.Error("missing destinationPort error")
	}

	f.DestinationIP = "10.0.0.1"
	f.DestinationPort = "22"
	if err := f.Validate(); err != nil {
		t.Errorf("Validate() with destination = %v, want nil", err)
	}
}

func TestBuildURLPlacement(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 30, 5, 0, time.UTC)
	rpt := Build(validForm(), "http://x.com", now)

	if rpt.SourceURL != "http://x.com" {
		t.Errorf("SourceURL = %q, want %q", rpt.SourceURL, "http://x.com")
	}
	if rpt.SourceIP != "" || rpt.ReportedSubscriptionID != "" {
		t.Errorf("unexpected source fields set: ip=%q sub=%q", rpt.SourceIP, rpt.ReportedSubscriptionID)
	}
	if rpt.Date != "2026-08-28" {
		t.Errorf("Date = %q, want 2026-08-28", rpt.Date)
	}
	if rpt.Time != "14:30:05" {
		t.Errorf("Time = %q, want 14:30:05", rpt.Time)
	}
	if rpt.TimeZone != "UTC" {
		t.Errorf("TimeZone = %q, want UTC", rpt.TimeZone)
	}
}

func TestBuildIPWithDestination(t *testing.T) {
	f := validForm()
	f.IncidentType = model.IncidentDoS
	f.ThreatType = model.ThreatIP
	f.DestinationIP = "198.51.100.7"
	f.DestinationPort = "443"

	rpt := Build(f, "203.0.113.5", time.Now())

	if rpt.SourceIP != "203.0.113.5" {
		t.Errorf("SourceIP = %q", rpt.SourceIP)
	}
	if rpt.DestinationIP != "198.51.100.7" || rpt.DestinationPort != 443 {
		t.Errorf("destination = %q:%d, want 198.51.100.7:443", rpt.DestinationIP, rpt.DestinationPort)
	}
}

func TestBuildIPWithoutDestinationCombination(t *testing.T) {
	f := validForm()
	f.IncidentType = model.IncidentMalware
	f.ThreatType = model.ThreatIP
	f.DestinationIP = "198.51.100.7"
	f.DestinationPort = "443"

	rpt := Build(f, "203.0.113.5", time.Now())
	if rpt.DestinationIP != "" || rpt.DestinationPort != 0 {
		t.Error("destination fields set outside Brute Force / DoS + IP combination")
	}
}

func TestBuildSubscriptionPlacement(t *testing.T) {
	f := validForm()
	f.IncidentType = model.IncidentResourceAbuse
	f.ThreatType = model.ThreatSubscription

	id := "6a5f25ac-61a9-42b9-8d23-f19f46a324d3"
	rpt := Build(f, id, time.Now())
	if rpt.ReportedSubscriptionID != id {
		t.Errorf("ReportedSubscriptionID = %q, want %q", rpt.ReportedSubscriptionID, id)
	}
}

func TestBuildUnknownThreatFallsBackToNotes(t *testing.T) {
	f := validForm()
	f.ThreatType = model.ThreatType("Other")

	rpt := Build(f, "mystery-target", time.Now())
	if rpt.SourceURL != "" || rpt.SourceIP != "" || rpt.ReportedSubscriptionID != "" {
		t.Error("no dedicated field should be set for unknown threat type")
	}
	if !strings.Contains(rpt.ReportNotes, "Suspected Target: mystery-target") {
		t.Errorf("ReportNotes = %q, want suspected-target annotation", rpt.ReportNotes)
	}
}

func TestAllowedThreatTypesDerivation(t *testing.T) {
	got := model.AllowedThreatTypes(model.IncidentPhishing)
	if len(got) != 1 || got[0] != model.ThreatURL {
		t.Errorf("AllowedThreatTypes(Phishing) = %v, want [URL]", got)
	}
	if model.ThreatAllowed(model.IncidentPhishing, model.ThreatIP) {
		t.Error("IP Address must not be allowed for Phishing")
	}
	if got := model.AllowedThreatTypes(model.IncidentType("Nope")); got != nil {
		t.Errorf("unknown incident type yields %v, want nil", got)
	}
}
