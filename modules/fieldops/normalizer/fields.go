package normalizer

// Canonical field names shared by every route-log format.
const (
	FieldSource               = "Source"
	FieldPartnerName          = "Partner Name"
	FieldSubcontractor        = "Subcontractor"
	FieldActivityID           = "Activity ID"
	FieldTechID               = "Tech ID"
	FieldTechName             = "Tech Name"
	FieldTechTeam             = "Tech Team"
	FieldTechSupervisor       = "Tech Supervisor"
	FieldServiceRegion        = "Service Region"
	FieldDMA                  = "DMA"
	FieldOffice               = "Office"
	FieldDivision             = "Division"
	FieldOrderType            = "Order Type"
	FieldStatus               = "Status"
	FieldReasonCode           = "Reason Code"
	FieldTimeZone             = "Time Zone"
	FieldCreatedDate          = "Created Date"
	FieldDueDate              = "Due Date"
	FieldPlannedStartDate     = "Planned Start Date"
	FieldActualStartDate      = "Actual Start Date"
	FieldActualEndDate        = "Actual End Date"
	FieldCancelledDate        = "Cancelled Date"
	FieldNegativeReschedules  = "Negative Reschedules"
	FieldPlannedDuration      = "Planned Duration"
	FieldActualDuration       = "Actual Duration"
	FieldInternetConnectivity = "Internet Connectivity"
	FieldCustomerID           = "Customer ID"
	FieldCustomerName         = "Customer Name"
	FieldCustomerPhone        = "Customer Phone"
	FieldDwellingType         = "Dwelling Type"
	FieldAddress              = "Address"
	FieldZipcode              = "Zipcode"
	FieldCity                 = "City"
	FieldState                = "State"
	FieldLatitude             = "Latitude"
	FieldLongitude            = "Longitude"
)

// Closed report fields.
const (
	FieldSnapshotDate       = "Snapshot Date"
	FieldBGOSnapshotDate    = "BGO Snapshot Date"
	FieldSnapshotStatus     = "Activity Status (Snapshot)"
	FieldSnapshotSubType    = "Activity Sub Type (Snapshot)"
	FieldSubcontractorName  = "Subcontractor Company Name"
	FieldSameDayClosedCount = "# of Same Day Activity Closed Count"
	FieldTeamName           = "Team Name"
)

// Tech profile fields.
const (
	FieldTechUserID      = "Tech User ID"
	FieldTechATTUID      = "Tech ATT UID"
	FieldTechFullName    = "Tech Full Name"
	FieldTechType        = "Tech Type"
	FieldTeamID          = "Team ID"
	FieldSupervisorLogin = "Tech Team Supervisor Login"
	FieldSupervisorPhone = "Tech Team Supervisor Mobile #"
	FieldTechPhone       = "Tech Mobile Phone #"
	FieldTechSchedule    = "Tech Schedule"
	FieldSkillPackage    = "Skill Package"
	FieldStartStreet     = "Start Street"
	FieldStartCity       = "Start City"
	FieldStartState      = "Start State"
	FieldStartZip        = "Start Zip"
	FieldStartLatitude   = "Start Latitude"
	FieldStartLongitude  = "Start Longitude"
)

const (
	unknownValue = "UNKNOWN"
	w2TechType   = "W2"
)
