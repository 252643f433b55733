package normalizer

import (
	"fmt"
	"strings"
)

// Options carries the run context a few mappings depend on.
type Options struct {
	// W2CompanyName is the data source owner. Rows naming it as their
	// subcontractor are W2 rows.
	W2CompanyName string
}

// Normalize converts a raw record into canonical form. It has no side effects
// and only fails for an unknown format.
func Normalize(rec Record, format Format, opts Options) (Row, error) {
	values := cleanKeys(rec.Values)
	row := Row{Line: rec.Line, Format: format, Raw: rec.Values}
	switch format {
	case FormatSiebel:
		row.Fields = siebelFields(values, opts)
		row.Latitude = ScaleCoordinate(values["Activity Geo Latitude"])
		row.Longitude = ScaleCoordinate(values["Activity Geo Longitude"])
	case FormatEdge:
		row.Fields = edgeFields(values, opts)
		row.Latitude = ScaleCoordinate(values["Latitude"])
		row.Longitude = ScaleCoordinate(values["Longitude"])
	case FormatClosed:
		row.Fields = closedFields(values, opts)
	case FormatTechProfile:
		row.Fields = techProfileFields(values, opts)
		row.Latitude = ScaleCoordinate(values[FieldStartLatitude])
		row.Longitude = ScaleCoordinate(values[FieldStartLongitude])
	default:
		return Row{}, fmt.Errorf("unknown row format %q", format)
	}
	return row, nil
}

// NormalizeAll normalizes every record of a run.
func NormalizeAll(recs []Record, format Format, opts Options) ([]Row, error) {
	rows := make([]Row, 0, len(recs))
	for _, rec := range recs {
		row, err := Normalize(rec, format, opts)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// subcontractorName returns the sanitized subcontractor company, or "" for W2 work.
func subcontractorName(raw string, opts Options) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == w2TechType || strings.EqualFold(raw, unknownValue) {
		return ""
	}
	name := SanitizeName(raw)
	if opts.W2CompanyName != "" && strings.EqualFold(name, opts.W2CompanyName) {
		return ""
	}
	return name
}

func knownID(raw string) string {
	if strings.EqualFold(raw, unknownValue) {
		return ""
	}
	return raw
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func yesNo(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), "Y") {
		return "true"
	}
	return "false"
}

func compact(fields map[string]string) map[string]string {
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	return fields
}

func siebelFields(v map[string]string, opts Options) map[string]string {
	return compact(map[string]string{
		FieldSource:               string(FormatSiebel),
		FieldPartnerName:          opts.W2CompanyName,
		FieldSubcontractor:        subcontractorName(v[FieldTechType], opts),
		FieldActivityID:           v["Activity #"],
		FieldTechID:               knownID(v[FieldTechUserID]),
		FieldTechName:             SanitizeName(v[FieldTechFullName]),
		FieldTechTeam:             knownID(v["Tech Team"]),
		FieldTechSupervisor:       SanitizeName(v[FieldTeamName]),
		FieldServiceRegion:        v["SR"],
		FieldDMA:                  v["DMA"],
		FieldOffice:               v["Office"],
		FieldDivision:             v["Division"],
		FieldOrderType:            v["Order Type"],
		FieldStatus:               v["Status"],
		FieldReasonCode:           v["Reason Code"],
		FieldTimeZone:             v["Time Zone"],
		FieldCreatedDate:          v["Created Date (with timestamp)"],
		FieldDueDate:              v["Activity Due Date RT"],
		FieldPlannedStartDate:     v["Planned Start Date RT"],
		FieldActualStartDate:      v["Actual Start Date RT"],
		FieldActualEndDate:        v["Actual End Date RT"],
		FieldCancelledDate:        v["Activity Cancelled Date"],
		FieldNegativeReschedules:  v["# of Negative Reschedules"],
		FieldPlannedDuration:      v["Planned Duration (FS Scheduler)"],
		FieldActualDuration:       v["Total Duration Minutes"],
		FieldInternetConnectivity: yesNo(v["Internet Connectivity"]),
		FieldCustomerID:           v["Cust Acct Number"],
		FieldCustomerName:         SanitizeName(v["Cust Name"]),
		FieldCustomerPhone:        v["Home Phone"],
		FieldDwellingType:         v["Dwelling Type"],
		FieldAddress:              joinNonEmpty(v["House #"], v["Street Name"]),
		FieldZipcode:              v["Zip"],
		FieldCity:                 v["City"],
		FieldState:                v["Service State"],
	})
}

func firstOf(v map[string]string, keys ...string) string {
	for _, k := range keys {
		if s := v[k]; s != "" {
			return s
		}
	}
	return ""
}

func edgeFields(v map[string]string, opts Options) map[string]string {
	return compact(map[string]string{
		FieldSource:               string(FormatEdge),
		FieldPartnerName:          opts.W2CompanyName,
		FieldSubcontractor:        subcontractorName(v["Subcontractor"], opts),
		FieldActivityID:           firstOf(v, "Work Order #", "Activity ID"),
		FieldTechID:               knownID(v["Tech ID"]),
		FieldTechName:             SanitizeName(v["Tech Name"]),
		FieldTechTeam:             knownID(firstOf(v, "Team ID", "Tech Team")),
		FieldTechSupervisor:       SanitizeName(firstOf(v, "Supervisor", "Tech Supervisor")),
		FieldServiceRegion:        v["Service Region"],
		FieldDMA:                  v["DMA"],
		FieldOffice:               v["Office"],
		FieldDivision:             v["Division"],
		FieldOrderType:            firstOf(v, "Work Order Type", "Order Type"),
		FieldStatus:               v["Status"],
		FieldReasonCode:           v["Reason Code"],
		FieldCreatedDate:          v["Created Date"],
		FieldDueDate:              v["Due Date"],
		FieldCancelledDate:        v["Cancelled Date"],
		FieldInternetConnectivity: yesNo(v["Internet Connectivity"]),
		FieldCustomerID:           v["Customer ID"],
		FieldCustomerName:         SanitizeName(v["Customer Name"]),
		FieldCustomerPhone:        v["Customer Phone"],
		FieldDwellingType:         v["Dwelling Type"],
		FieldAddress:              v["Address"],
		FieldZipcode:              firstOf(v, "Zip", "Zipcode"),
		FieldCity:                 v["City"],
		FieldState:                v["State"],
	})
}

// closedFields keeps the report's own columns and adds the canonical aliases
// the closed processor reads.
func closedFields(v map[string]string, opts Options) map[string]string {
	fields := make(map[string]string, len(v)+6)
	for k, s := range v {
		fields[k] = s
	}
	fields[FieldActivityID] = v[FieldActivityID]
	fields[FieldTechID] = knownID(v[FieldTechID])
	fields[FieldStatus] = firstOf(v, FieldSnapshotStatus, FieldStatus)
	fields[FieldSnapshotDate] = DateString(v[FieldBGOSnapshotDate])
	fields[FieldSubcontractor] = subcontractorName(v[FieldSubcontractorName], opts)
	if v[FieldSubcontractorName] == unknownValue {
		delete(fields, FieldSubcontractorName)
	}
	return compact(fields)
}

func techProfileFields(v map[string]string, opts Options) map[string]string {
	fields := make(map[string]string, len(v)+4)
	for k, s := range v {
		fields[k] = s
	}
	fields[FieldTechUserID] = knownID(v[FieldTechUserID])
	fields[FieldTeamID] = knownID(v[FieldTeamID])
	fields[FieldTechID] = fields[FieldTechUserID]
	fields[FieldTechName] = SanitizeName(v[FieldTechFullName])
	fields[FieldTechSupervisor] = SanitizeName(v[FieldTeamName])
	fields[FieldSubcontractor] = subcontractorName(v[FieldTechType], opts)
	return compact(fields)
}
