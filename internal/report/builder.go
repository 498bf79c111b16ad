// Package report builds upstream abuse-report payloads from form state.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/secdesk/abuse-portal/internal/model"
	"github.com/secdesk/abuse-portal/internal/validate"
)

// Form holds the classification selections and reporter identity shared by
// every report in a submission. One Form drives many Build calls, one per
// bulk target.
type Form struct {
	IncidentType    model.IncidentType
	ThreatType      model.ThreatType
	TimeZone        string
	Description     string
	ReporterEmail   string
	ReporterName    string
	Anonymize       bool
	TestSubmission  bool
	DestinationIP   string
	DestinationPort string
}

// FieldErrors maps form field names to validation messages. It is returned
// as a single up-front failure; submission must not start while it is
// non-empty.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("invalid form fields: %s", strings.Join(fields, ", "))
}

// NeedsDestination reports whether the incident/threat combination requires
// a destination IP and port on the report.
func NeedsDestination(it model.IncidentType, tt model.ThreatType) bool {
	if tt != model.ThreatIP {
		return false
	}
	return it == model.IncidentBruteForce || it == model.IncidentDoS
}

// Validate checks the required identity, classification, and description
// fields. It returns nil when the form is submittable, or a FieldErrors
// describing everything wrong at once.
func (f Form) Validate() error {
	errs := FieldErrors{}

	if !f.IncidentType.Valid() {
		errs["incidentType"] = "select an incident type"
	}
	if !f.ThreatType.Valid() {
		errs["threatType"] = "select a threat type"
	} else if f.IncidentType.Valid() && !model.ThreatAllowed(f.IncidentType, f.ThreatType) {
		errs["threatType"] = fmt.Sprintf("threat type %q is not permitted for incident type %q", f.ThreatType, f.IncidentType)
	}
	if f.TimeZone == "" {
		errs["timeZone"] = "time zone is required"
	}
	if strings.TrimSpace(f.Description) == "" {
		errs["reportNotes"] = "a description is required"
	}
	if !strings.Contains(f.ReporterEmail, "@") {
		errs["reporterEmail"] = "a valid reporter email is required"
	}
	if strings.TrimSpace(f.ReporterName) == "" {
		errs["reporterName"] = "reporter name is required"
	}

	if NeedsDestination(f.IncidentType, f.ThreatType) {
		if !validate.IsIP(f.DestinationIP) {
			errs["destinationIp"] = "a valid destination IP is required for this incident type"
		}
		if !validate.IsPort(f.DestinationPort) {
			errs["destinationPort"] = "a valid destination port (1-65535) is required for this incident type"
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Build produces one report payload for a single raw target. Date and time
// come from the supplied wall-clock instant split into calendar date and
// time-of-day; the time zone rides along as a descriptive field with no
// conversion applied. Field placement follows the threat type, with
// unrecognized types falling back to a "Suspected Target" annotation in the
// notes.
func Build(f Form, target string, now time.Time) model.AbuseReport {
	rpt := model.AbuseReport{
		Date:            now.Format("2006-01-02"),
		Time:            now.Format("15:04:05"),
		TimeZone:        f.TimeZone,
		IncidentType:    f.IncidentType,
		ThreatType:      f.ThreatType,
		ReporterEmail:   f.ReporterEmail,
		ReporterName:    f.ReporterName,
		ReportNotes:     f.Description,
		AnonymizeReport: f.Anonymize,
		TestSubmission:  f.TestSubmission,
	}

	switch f.ThreatType {
	case model.ThreatURL:
		rpt.SourceURL = target
	case model.ThreatIP:
		rpt.SourceIP = target
		if NeedsDestination(f.IncidentType, f.ThreatType) {
			rpt.DestinationIP = f.DestinationIP
			port, _ := strconv.Atoi(f.DestinationPort)
			rpt.DestinationPort = port
		}
	case model.ThreatSubscription:
		rpt.ReportedSubscriptionID = target
	default:
		rpt.ReportNotes = f.Description + "\n\nSuspected Target: " + target
	}

	return rpt
}
