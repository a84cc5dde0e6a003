package fleetclient

import (
	"net/url"
	"strconv"
)

// Role is the backend-assigned access level carried on a [User]. The client
// treats it as data; enforcement happens server-side.
type Role string

const (
	// RoleAdmin is an administrator account.
	RoleAdmin Role = "admin"
	// RoleTechnician is a fleet technician account.
	RoleTechnician Role = "technician"
	// RoleUser is a regular end-user account.
	RoleUser Role = "user"
)

// User is the backend-owned account record. The session holds a cached,
// possibly stale, copy; it is never mutated locally except through the
// profile-update flow, which re-fetches.
type User struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	FullName   string `json:"full_name,omitempty"`
	Role       Role   `json:"role"`
	Department string `json:"department,omitempty"`
	Phone      string `json:"phone,omitempty"`
	IsActive   bool   `json:"is_active"`
	IsStaff    bool   `json:"is_staff"`
	IsLdapUser bool   `json:"is_ldap_user"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// Credentials is the Login input.
type Credentials struct {
	Username string
	Password string
}

// LoginResult is the token pair and user returned by the backend on a
// successful credential exchange.
type LoginResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// ProfileUpdate carries the mutable profile fields; zero-valued fields are
// omitted from the request.
type ProfileUpdate struct {
	Email      string `json:"email,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Department string `json:"department,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

/*
====================================
PRINTERS
====================================
*/

// Printer is one managed device as reported by the backend.
type Printer struct {
	ID              int                `json:"id"`
	Name            string             `json:"name"`
	Model           string             `json:"model"`
	SerialNumber    string             `json:"serial_number"`
	IPAddress       string             `json:"ip_address"`
	MACAddress      string             `json:"mac_address,omitempty"`
	PrinterType     string             `json:"printer_type"`
	Status          string             `json:"status"`
	Location        string             `json:"location,omitempty"`
	Department      string             `json:"department,omitempty"`
	FirmwareVersion string             `json:"firmware_version,omitempty"`
	SupportsDuplex  bool               `json:"supports_duplex"`
	SupportsColor   bool               `json:"supports_color"`
	IsMonitored     bool               `json:"is_monitored"`
	IsOnline        bool               `json:"is_online"`
	LastSeen        string             `json:"last_seen,omitempty"`
	Supplies        []PrinterSupply    `json:"supplies,omitempty"`
	TonerLevels     map[string]float64 `json:"toner_levels,omitempty"`
	PaperLevel      float64            `json:"paper_level"`
	QueueSize       int                `json:"queue_size"`
}

// PrinterSupply is one consumable slot on a printer.
type PrinterSupply struct {
	ID          int     `json:"id"`
	SupplyType  string  `json:"supply_type"`
	Level       float64 `json:"level"`
	MaxCapacity int     `json:"max_capacity"`
	Status      string  `json:"status"`
	LastUpdated string  `json:"last_updated,omitempty"`
}

// PrinterList is the paginated printer list envelope.
type PrinterList struct {
	Count    int       `json:"count"`
	Next     string    `json:"next,omitempty"`
	Previous string    `json:"previous,omitempty"`
	Results  []Printer `json:"results"`
}

// PrinterFilters narrows the printer list. The zero value selects everything.
type PrinterFilters struct {
	Status      string
	PrinterType string
	Department  string
	Search      string
	Ordering    string
	Page        int
	PageSize    int
}

func (f PrinterFilters) values() url.Values {
	v := url.Values{}
	setNonEmpty(v, "status", f.Status)
	setNonEmpty(v, "printer_type", f.PrinterType)
	setNonEmpty(v, "department", f.Department)
	setNonEmpty(v, "search", f.Search)
	setNonEmpty(v, "ordering", f.Ordering)
	setPositive(v, "page", f.Page)
	setPositive(v, "page_size", f.PageSize)
	return v
}

// PrinterCreate is the input for CreatePrinter.
type PrinterCreate struct {
	Name          string `json:"name"`
	Model         string `json:"model"`
	SerialNumber  string `json:"serial_number"`
	IPAddress     string `json:"ip_address"`
	PrinterType   string `json:"printer_type"`
	Location      string `json:"location,omitempty"`
	Department    string `json:"department,omitempty"`
	SNMPCommunity string `json:"snmp_community,omitempty"`
	SNMPPort      int    `json:"snmp_port,omitempty"`
	IsMonitored   bool   `json:"is_monitored"`
}

// PrinterUpdate carries the mutable printer fields for UpdatePrinter;
// zero-valued fields are omitted from the request.
type PrinterUpdate struct {
	Name        string `json:"name,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`
	Location    string `json:"location,omitempty"`
	Department  string `json:"department,omitempty"`
	Status      string `json:"status,omitempty"`
	IsMonitored *bool  `json:"is_monitored,omitempty"`
}

// ConnectionTest is the result of probing one printer.
type ConnectionTest struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
	LastSeen  string `json:"last_seen,omitempty"`
}

// DiscoveryRequest asks the backend to scan an IP range for printers.
type DiscoveryRequest struct {
	IPRange       string `json:"ip_range"`
	TimeoutSecs   int    `json:"timeout,omitempty"`
	SNMPCommunity string `json:"snmp_community,omitempty"`
}

// DiscoveryResult is what a discovery scan found.
type DiscoveryResult struct {
	DiscoveredPrinters []Printer `json:"discovered_printers"`
	Count              int       `json:"count"`
}

// PrinterStatistics is the fleet-wide printer summary.
type PrinterStatistics struct {
	TotalPrinters         int `json:"total_printers"`
	ActivePrinters        int `json:"active_printers"`
	OfflinePrinters       int `json:"offline_printers"`
	MaintenancePrinters   int `json:"maintenance_printers"`
	LaserPrinters         int `json:"laser_printers"`
	InkjetPrinters        int `json:"inkjet_printers"`
	MultifunctionPrinters int `json:"multifunction_printers"`
}

/*
====================================
ALERTS
====================================
*/

// AlertStatusNew marks an alert nobody has acted on yet.
const AlertStatusNew = "new"

// Alert is one raised fleet alert.
type Alert struct {
	ID              int    `json:"id"`
	Rule            int    `json:"rule"`
	Printer         int    `json:"printer"`
	PrinterName     string `json:"printer_name"`
	Title           string `json:"title"`
	Message         string `json:"message"`
	Status          string `json:"status"`
	Severity        string `json:"severity"`
	CreatedAt       string `json:"created_at"`
	AcknowledgedAt  string `json:"acknowledged_at,omitempty"`
	AcknowledgedBy  int    `json:"acknowledged_by,omitempty"`
	ResolvedAt      string `json:"resolved_at,omitempty"`
	ResolvedBy      int    `json:"resolved_by,omitempty"`
	ResolutionNotes string `json:"resolution_notes,omitempty"`
}

// AlertList is the paginated alert list envelope.
type AlertList struct {
	Count    int     `json:"count"`
	Next     string  `json:"next,omitempty"`
	Previous string  `json:"previous,omitempty"`
	Results  []Alert `json:"results"`
}

// UnreadCount reports how many alerts on this page nobody has acted on.
func (l *AlertList) UnreadCount() int {
	if l == nil {
		return 0
	}
	n := 0
	for _, a := range l.Results {
		if a.Status == AlertStatusNew {
			n++
		}
	}
	return n
}

// AlertFilters narrows the alert list. The zero value selects everything.
type AlertFilters struct {
	Status   string
	Severity string
	Printer  int
	Search   string
	Ordering string
	Page     int
	PageSize int
}

func (f AlertFilters) values() url.Values {
	v := url.Values{}
	setNonEmpty(v, "status", f.Status)
	setNonEmpty(v, "severity", f.Severity)
	setPositive(v, "printer", f.Printer)
	setNonEmpty(v, "search", f.Search)
	setNonEmpty(v, "ordering", f.Ordering)
	setPositive(v, "page", f.Page)
	setPositive(v, "page_size", f.PageSize)
	return v
}

// AlertRule is one server-evaluated alerting rule.
type AlertRule struct {
	ID                int     `json:"id"`
	Name              string  `json:"name"`
	Description       string  `json:"description,omitempty"`
	TriggerType       string  `json:"trigger_type"`
	Severity          string  `json:"severity"`
	ThresholdValue    float64 `json:"threshold_value,omitempty"`
	ConditionOperator string  `json:"condition_operator,omitempty"`
	SendEmail         bool    `json:"send_email"`
	SendSMS           bool    `json:"send_sms"`
	Printers          []int   `json:"printers,omitempty"`
	UsersToNotify     []int   `json:"users_to_notify,omitempty"`
	IsActive          bool    `json:"is_active"`
	CooldownMinutes   int     `json:"cooldown_minutes"`
}

// AlertRuleInput is the create/update payload for an alert rule.
type AlertRuleInput struct {
	Name              string  `json:"name"`
	Description       string  `json:"description,omitempty"`
	TriggerType       string  `json:"trigger_type"`
	Severity          string  `json:"severity"`
	ThresholdValue    float64 `json:"threshold_value,omitempty"`
	ConditionOperator string  `json:"condition_operator,omitempty"`
	SendEmail         bool    `json:"send_email"`
	SendSMS           bool    `json:"send_sms"`
	Printers          []int   `json:"printers,omitempty"`
	UsersToNotify     []int   `json:"users_to_notify,omitempty"`
	IsActive          bool    `json:"is_active"`
	CooldownMinutes   int     `json:"cooldown_minutes,omitempty"`
}

// AlertStatistics is the fleet-wide alert summary.
type AlertStatistics struct {
	TotalAlerts        int `json:"total_alerts"`
	NewAlerts          int `json:"new_alerts"`
	AcknowledgedAlerts int `json:"acknowledged_alerts"`
	ResolvedAlerts     int `json:"resolved_alerts"`
	CriticalAlerts     int `json:"critical_alerts"`
	HighAlerts         int `json:"high_alerts"`
}

func setNonEmpty(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func setPositive(v url.Values, key string, value int) {
	if value > 0 {
		v.Set(key, strconv.Itoa(value))
	}
}
