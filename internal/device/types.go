package device

// Device is a device bound to an agent, as listed by the manager API.
type Device struct {
	ID              string `json:"id"`
	UserID          string `json:"userId,omitempty"`
	MacAddress      string `json:"macAddress"`
	Board           string `json:"board,omitempty"`
	Alias           string `json:"alias,omitempty"`
	AgentID         string `json:"agentId"`
	AppVersion      string `json:"appVersion,omitempty"`
	AutoUpdate      int    `json:"autoUpdate"` // 1 when OTA upgrades are enabled
	LastConnectedAt string `json:"lastConnectedAt,omitempty"`
	CreateDate      string `json:"createDate,omitempty"`
}

// OTA status values accepted by EnableOTA.
const (
	OTADisabled = 0
	OTAEnabled  = 1
)

// UpgradesEnabled reports whether automatic OTA upgrades are enabled.
func (d Device) UpgradesEnabled() bool {
	return d.AutoUpdate == OTAEnabled
}

// BatchFile is the workbook uploaded by BatchBind. The first column of the first
// sheet holds one device code per row.
type BatchFile struct {
	Name    string
	Content []byte
}

type bindParams struct {
	AgentID    string `validate:"required"`
	DeviceCode string `validate:"required"`
}

type idParams struct {
	ID string `validate:"required"`
}

type remarkParams struct {
	DeviceCode string `validate:"required"`
}

type otaParams struct {
	ID     string `validate:"required"`
	Status int    `validate:"oneof=0 1"`
}

type registerParams struct {
	MacAddress string `validate:"required,mac"`
}
