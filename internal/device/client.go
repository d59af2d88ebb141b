// Package device maps the device operations of the manager console onto the
// manager API. Each operation is one request configuration sent through the
// request executor and wrapped in the caller's retry policy.
package device

import (
	"context"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/h2non/filetype"
	jsonitor "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/sjson"
	"github.com/xiaozhi/managerctl/internal/request"
	"github.com/xiaozhi/managerctl/internal/retry"
)

const (
	xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	xlsMIME  = "application/vnd.ms-excel"
)

// ServiceURL resolves the base URL of the manager API.
type ServiceURL interface {
	GetServerURL() string
}

// Client performs device operations.
type Client struct {
	exec     *request.Executor
	service  ServiceURL
	policy   retry.Policy
	validate *validator.Validate
}

// NewClient returns a client sending requests through exec.
func NewClient(exec *request.Executor, service ServiceURL, policy retry.Policy) *Client {
	return &Client{
		exec:     exec,
		service:  service,
		policy:   policy,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ListBound returns the raw list of devices bound to an agent.
func (c *Client) ListBound(ctx context.Context, agentID string) (request.Payload, error) {
	if err := c.check(idParams{ID: agentID}); err != nil {
		return nil, err
	}
	u, err := c.endpoint(nil, "device", "bind", agentID)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, "list bound devices", c.exec.NewRequest().URL(u).Method(http.MethodGet))
}

// Devices is ListBound decoded.
func (c *Client) Devices(ctx context.Context, agentID string) ([]Device, error) {
	p, err := c.ListBound(ctx, agentID)
	if err != nil {
		return nil, err
	}
	data := p.Data()
	if len(data) == 0 || string(data) == "null" {
		return []Device{}, nil
	}
	var devices []Device
	if err := jsonitor.Unmarshal(data, &devices); err != nil {
		return nil, ErrDecode.MsgErr("unable to decode device list", err)
	}
	return devices, nil
}

// Unbind removes a device from the current user.
func (c *Client) Unbind(ctx context.Context, deviceID string) (request.Payload, error) {
	if err := c.check(idParams{ID: deviceID}); err != nil {
		return nil, err
	}
	u, err := c.endpoint(nil, "device", "unbind")
	if err != nil {
		return nil, err
	}
	body, err := sjson.SetBytes([]byte(`{}`), "deviceId", deviceID)
	if err != nil {
		return nil, ErrInvalidParams.MsgErr("unable to encode request", err)
	}
	return c.send(ctx, "unbind device", c.exec.NewRequest().
		URL(u).
		Method(http.MethodPost).
		Header(map[string]string{"Content-Type": "application/json"}).
		Data(body))
}

// Bind activates a device code for an agent. remark may be empty.
func (c *Client) Bind(ctx context.Context, agentID, deviceCode, remark string) (request.Payload, error) {
	if err := c.check(bindParams{AgentID: agentID, DeviceCode: deviceCode}); err != nil {
		return nil, err
	}
	u, err := c.endpoint(url.Values{"remark": {remark}}, "device", "bind", agentID, deviceCode)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, "bind device", c.exec.NewRequest().URL(u).Method(http.MethodPost))
}

// BatchBind uploads a workbook of device codes and binds all of them to an agent.
func (c *Client) BatchBind(ctx context.Context, agentID, remark string, file BatchFile) (request.Payload, error) {
	if err := c.check(idParams{ID: agentID}); err != nil {
		return nil, err
	}
	mimeType, err := workbookType(file)
	if err != nil {
		return nil, err
	}
	u, err := c.endpoint(url.Values{"agentId": {agentID}, "remark": {remark}}, "device", "bind", "batch")
	if err != nil {
		return nil, err
	}
	form := request.NewForm().File("file", filepath.Base(file.Name), mimeType, file.Content)
	return c.send(ctx, "batch bind devices", c.exec.NewRequest().
		URL(u).
		Data(form).
		Method(http.MethodPost).
		Header(map[string]string{"Content-Type": "multipart/form-data"}))
}

// UpdateRemark changes the remark of a device.
func (c *Client) UpdateRemark(ctx context.Context, deviceCode, remark string) (request.Payload, error) {
	if err := c.check(remarkParams{DeviceCode: deviceCode}); err != nil {
		return nil, err
	}
	u, err := c.endpoint(url.Values{"remark": {remark}}, "device", "updateRemark", deviceCode)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, "update remark", c.exec.NewRequest().URL(u).Method(http.MethodPost))
}

// EnableOTA turns automatic upgrades on (OTAEnabled) or off (OTADisabled).
func (c *Client) EnableOTA(ctx context.Context, id string, status int) (request.Payload, error) {
	if err := c.check(otaParams{ID: id, Status: status}); err != nil {
		return nil, err
	}
	u, err := c.endpoint(nil, "device", "enableOta", id, strconv.Itoa(status))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, "update ota status", c.exec.NewRequest().URL(u).Method(http.MethodPut))
}

// Register registers a device by MAC address and returns the six digit code the
// device owner binds it with.
func (c *Client) Register(ctx context.Context, macAddress string) (string, error) {
	if err := c.check(registerParams{MacAddress: macAddress}); err != nil {
		return "", err
	}
	u, err := c.endpoint(nil, "device", "register")
	if err != nil {
		return "", err
	}
	body, err := sjson.SetBytes([]byte(`{}`), "macAddress", macAddress)
	if err != nil {
		return "", ErrInvalidParams.MsgErr("unable to encode request", err)
	}
	p, err := c.send(ctx, "register device", c.exec.NewRequest().
		URL(u).
		Method(http.MethodPost).
		Header(map[string]string{"Content-Type": "application/json"}).
		Data(body))
	if err != nil {
		return "", err
	}
	code := p.Get("data").String()
	if code == "" {
		return "", ErrDecode.Msg("response did not contain a device code")
	}
	return code, nil
}

func (c *Client) send(ctx context.Context, op string, b request.Builder) (request.Payload, error) {
	logger := log.With().Str("operation", op).Logger()
	var payload request.Payload
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		p, err := b.NetworkFail(func(err error) {
			logger.Debug().Err(err).Msg("device request failed")
		}).Send(ctx).Wait(ctx)
		if err != nil {
			return err
		}
		payload = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) check(params any) error {
	if err := c.validate.Struct(params); err != nil {
		return ErrInvalidParams.MsgErr(err.Error(), err)
	}
	return nil
}

// endpoint joins escaped path segments onto the service URL.
func (c *Client) endpoint(query url.Values, segments ...string) (string, error) {
	base := strings.TrimRight(c.service.GetServerURL(), "/")
	if u, err := url.Parse(base); err != nil || u.Host == "" {
		return "", ErrInvalidParams.Msg("invalid server url " + base)
	}
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	endpoint := base + "/" + strings.Join(escaped, "/")
	if query != nil {
		endpoint += "?" + query.Encode()
	}
	return endpoint, nil
}

// workbookType returns the MIME type of an Excel upload. Files are recognised by
// content; a zip archive is accepted as a workbook only under an .xlsx name since
// some generators write OOXML parts in an order content sniffing does not detect.
func workbookType(file BatchFile) (string, error) {
	if len(file.Content) == 0 {
		return "", ErrUnsupportedFile.Msg("batch file is empty")
	}
	kind, err := filetype.Match(file.Content)
	if err != nil {
		return "", ErrUnsupportedFile.MsgErr(err.Error(), err)
	}
	switch kind.Extension {
	case "xlsx":
		return xlsxMIME, nil
	case "xls":
		return xlsMIME, nil
	case "zip":
		if strings.EqualFold(filepath.Ext(file.Name), ".xlsx") {
			return xlsxMIME, nil
		}
	}
	return "", ErrUnsupportedFile
}
