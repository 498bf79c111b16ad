package model

// IncidentType categorizes the kind of abuse being reported.
type IncidentType string

const (
	IncidentPhishing       IncidentType = "Phishing"
	IncidentMalware        IncidentType = "Malware"
	IncidentSpam           IncidentType = "Spam"
	IncidentBruteForce     IncidentType = "Brute Force"
	IncidentDoS            IncidentType = "Denial of Service"
	IncidentIllegalContent IncidentType = "Illegal Content"
	IncidentResourceAbuse  IncidentType = "Azure Resource Abuse"
)

// ThreatType is the kind of indicator a report targets.
type ThreatType string

const (
	ThreatURL          ThreatType = "URL"
	ThreatIP           ThreatType = "IP Address"
	ThreatSubscription ThreatType = "Azure Subscription"
)

// allowedThreats is the fixed incident-to-threat mapping. A report's threat
// type must be one of the entries for its incident type.
var allowedThreats = map[IncidentType][]ThreatType{
	IncidentPhishing:       {ThreatURL},
	IncidentMalware:        {ThreatURL, ThreatIP},
	IncidentSpam:           {ThreatIP, ThreatURL},
	IncidentBruteForce:     {ThreatIP},
	IncidentDoS:            {ThreatIP},
	IncidentIllegalContent: {ThreatURL},
	IncidentResourceAbuse:  {ThreatSubscription, ThreatURL, ThreatIP},
}

// AllowedThreatTypes returns the threat types permitted for an incident type.
// It is a pure derivation; unknown incident types yield nil.
func AllowedThreatTypes(it IncidentType) []ThreatType {
	return allowedThreats[it]
}

// Valid reports whether the incident type is one of the fixed set.
func (it IncidentType) Valid() bool {
	_, ok := allowedThreats[it]
	return ok
}

// Valid reports whether the threat type is one of the fixed set.
func (tt ThreatType) Valid() bool {
	switch tt {
	case ThreatURL, ThreatIP, ThreatSubscription:
		return true
	}
	return false
}

// ThreatAllowed reports whether tt may be combined with it.
func ThreatAllowed(it IncidentType, tt ThreatType) bool {
	for _, allowed := range allowedThreats[it] {
		if allowed == tt {
			return true
		}
	}
	return false
}

// AbuseReport is the payload submitted to the upstream abuse API. Exactly one
// of SourceIP, SourceURL, ReportedSubscriptionID is set depending on the
// threat type. Reports are built fresh per target and never persisted.
type AbuseReport struct {
	Date                   string       `json:"date"`
	Time                   string       `json:"time"`
	TimeZone               string       `json:"timeZone"`
	IncidentType           IncidentType `json:"incidentType"`
	ThreatType             ThreatType   `json:"threatType"`
	ReporterEmail          string       `json:"reporterEmail"`
	ReporterName           string       `json:"reporterName"`
	ReportNotes            string       `json:"reportNotes"`
	AnonymizeReport        bool         `json:"anonymizeReport"`
	TestSubmission         bool         `json:"testSubmission"`
	SourceIP               string       `json:"sourceIp,omitempty"`
	SourceURL              string       `json:"sourceUrl,omitempty"`
	ReportedSubscriptionID string       `json:"reportedSubscriptionId,omitempty"`
	DestinationIP          string       `json:"destinationIp,omitempty"`
	DestinationPort        int          `json:"destinationPort,omitempty"`
}

// TargetEntry is one non-empty line of bulk target text, classified against
// the selected threat type. Invalid entries are kept so the caller can show
// them; whether they are dispatched is a submission-time option.
type TargetEntry struct {
	Raw   string `json:"raw"`
	Valid bool   `json:"valid"`
}

// ValidationResult is the outcome of classifying bulk target text. It has no
// identity beyond the form state it was computed from.
type ValidationResult struct {
	ValidCount   int           `json:"validCount"`
	InvalidCount int           `json:"invalidCount"`
	Entries      []TargetEntry `json:"entries"`
}

// Outcome tags a submission log entry.
type Outcome string

const (
	OutcomeSuccess  Outcome = "SUCCESS"
	OutcomeError    Outcome = "ERROR"
	OutcomeInfo     Outcome = "INFO"
	OutcomeComplete Outcome = "COMPLETE"
)

// SubmissionLogEntry is one line of a bulk submission run's log.
type SubmissionLogEntry struct {
	Seq     int     `json:"seq"`
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
}

// SecurityUpdate is a read-only projection of one upstream bulletin entry.
// Several upstream fields arrive either as a bare string or as an object
// wrapping one, so they decode through FlexString.
type SecurityUpdate struct {
	ID                 FlexString `json:"ID"`
	Alias              FlexString `json:"Alias"`
	DocumentTitle      FlexString `json:"DocumentTitle"`
	Severity           FlexString `json:"Severity,omitempty"`
	InitialReleaseDate string     `json:"InitialReleaseDate"`
	CurrentReleaseDate string     `json:"CurrentReleaseDate"`
	CvrfURL            string     `json:"CvrfUrl,omitempty"`
}
