package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/xiaozhi/managerctl/internal/auth"
	"github.com/xiaozhi/managerctl/internal/common/httpclient"
	"github.com/xiaozhi/managerctl/internal/device"
	"github.com/xiaozhi/managerctl/internal/request"
	"github.com/xiaozhi/managerctl/internal/retry"
	"github.com/xiaozhi/managerctl/internal/session"
)

// deviceSession bundles a device client with the guard it re-authenticates through.
type deviceSession struct {
	client *device.Client
	guard  *session.Guard
}

// newDeviceSession wires transport, login, session guard, executor and retry
// policy for cfg.
func newDeviceSession(cfg *Config) *deviceSession {
	transport := httpclient.NewClient(cfg, httpclient.ClientOptions{Timeout: cfg.GetTimeout()})

	login := auth.NewPasswordLogin(cfg, transport)
	if cfg.LoginPath != "" {
		login = login.WithPath(cfg.LoginPath)
	}
	guard := session.NewGuard(login, session.WithStateChange(func(from, to session.State) {
		log.Debug().Stringer("from", from).Stringer("to", to).Msg("session state changed")
	}))

	exec := request.NewExecutor(transport, request.WithGuard(guard))
	return &deviceSession{
		client: device.NewClient(exec, cfg, retry.Default().WithTracker(guard)),
		guard:  guard,
	}
}

// finish prints the result of a device command.
func (s *deviceSession) finish(message string, payload request.Payload, err error) error {
	if err != nil {
		if s.guard.State() == session.StateInvalid {
			warnLabel.Fprintln(os.Stderr, "Session expired and could not be renewed. Run \"managerctl login\".")
		}
		return err
	}
	if jsonOutput {
		out := map[string]any{"result": 1, "message": message}
		if data := payload.Data(); len(data) > 0 && string(data) != "null" {
			out["value"] = jsonRaw(data)
		}
		printJSON(out)
		return nil
	}
	okLabel.Printf("✓ %s\n", message)
	return nil
}

// jsonRaw embeds an already encoded payload in printJSON output.
type jsonRaw []byte

func (r jsonRaw) MarshalJSON() ([]byte, error) { return r, nil }

func newDeviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage devices bound to agents",
		Long: `Manage the devices bound to your agents.

Examples:
  managerctl device list <agent-id>
  managerctl device bind <agent-id> <code> --remark kitchen
  managerctl device batch-bind <agent-id> devices.xlsx
  managerctl device unbind <device-id>
  managerctl device remark <code> "living room"
  managerctl device ota <device-id> on
  managerctl device register AA:BB:CC:DD:EE:FF`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cmd.AddCommand(
		newDeviceListCmd(),
		newDeviceBindCmd(),
		newDeviceBatchBindCmd(),
		newDeviceUnbindCmd(),
		newDeviceRemarkCmd(),
		newDeviceOTACmd(),
		newDeviceRegisterCmd(),
	)
	return cmd
}

func newDeviceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <agent-id>",
		Short: "List the devices bound to an agent",
		Long: `List the devices bound to an agent.

Examples:
  managerctl device list <agent-id>
  managerctl device list <agent-id> --version "< 1.6.0"  # devices due for an upgrade`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newDeviceSession(GetConfig())
			devices, err := s.client.Devices(cmd.Context(), args[0])
			if err != nil {
				return s.finish("", nil, err)
			}
			if constraint, _ := cmd.Flags().GetString("version"); constraint != "" {
				if devices, err = device.MatchVersion(devices, constraint); err != nil {
					return err
				}
			}
			printDevices(devices)
			return nil
		},
	}
	cmd.Flags().String("version", "", "Only list devices whose firmware version satisfies this constraint")
	return cmd
}

func printDevices(devices []device.Device) {
	if jsonOutput {
		printJSON(map[string]any{
			"result": 1,
			"value":  devices,
		})
		return
	}
	if len(devices) == 0 {
		fmt.Println("No devices bound")
		return
	}
	fmt.Printf("%-20s %-18s %-16s %-10s %-5s %-20s\n", "DEVICE ID", "MAC ADDRESS", "BOARD", "VERSION", "OTA", "LAST CONNECTED")
	fmt.Println(strings.Repeat("-", 94))
	for _, d := range devices {
		ota := "off"
		if d.UpgradesEnabled() {
			ota = "on"
		}
		lastSeen := d.LastConnectedAt
		if lastSeen == "" {
			lastSeen = "N/A"
		}
		fmt.Printf("%-20s %-18s %-16s %-10s %-5s %-20s\n", d.ID, d.MacAddress, d.Board, d.AppVersion, ota, lastSeen)
	}
}

func newDeviceBindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bind <agent-id> <code>",
		Short: "Bind a device to an agent with its six digit code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			remark, _ := cmd.Flags().GetString("remark")
			s := newDeviceSession(GetConfig())
			p, err := s.client.Bind(cmd.Context(), args[0], args[1], remark)
			return s.finish("Device bound", p, err)
		},
	}
	cmd.Flags().String("remark", "", "Remark stored with the device")
	return cmd
}

func newDeviceBatchBindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch-bind <agent-id> <file.xlsx>",
		Short: "Bind every device code listed in an Excel workbook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("unable to read %s: %w", args[1], err)
			}
			remark, _ := cmd.Flags().GetString("remark")
			s := newDeviceSession(GetConfig())
			p, err := s.client.BatchBind(cmd.Context(), args[0], remark, device.BatchFile{Name: args[1], Content: content})
			return s.finish("Devices bound", p, err)
		},
	}
	cmd.Flags().String("remark", "", "Remark stored with every device")
	return cmd
}

func newDeviceUnbindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unbind <device-id>",
		Short: "Unbind a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newDeviceSession(GetConfig())
			p, err := s.client.Unbind(cmd.Context(), args[0])
			return s.finish("Device unbound", p, err)
		},
	}
}

func newDeviceRemarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remark <code> <remark>",
		Short: "Change the remark of a device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newDeviceSession(GetConfig())
			p, err := s.client.UpdateRemark(cmd.Context(), args[0], args[1])
			return s.finish("Remark updated", p, err)
		},
	}
}

func newDeviceOTACmd() *cobra.Command {
	return &cobra.Command{
		Use:       "ota <device-id> on|off",
		Short:     "Turn automatic OTA upgrades on or off",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := parseOTAStatus(args[1])
			if err != nil {
				return err
			}
			s := newDeviceSession(GetConfig())
			p, err := s.client.EnableOTA(cmd.Context(), args[0], status)
			return s.finish("OTA setting updated", p, err)
		},
	}
}

func parseOTAStatus(v string) (int, error) {
	switch strings.ToLower(v) {
	case "on", "1", "true", "enable":
		return device.OTAEnabled, nil
	case "off", "0", "false", "disable":
		return device.OTADisabled, nil
	default:
		return 0, fmt.Errorf("invalid OTA status %q, use on or off", v)
	}
}

func newDeviceRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <mac-address>",
		Short: "Register a device and print its binding code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newDeviceSession(GetConfig())
			code, err := s.client.Register(cmd.Context(), args[0])
			if err != nil {
				return s.finish("", nil, err)
			}
			if jsonOutput {
				printJSON(map[string]any{"result": 1, "code": code})
			} else {
				okLabel.Printf("✓ Device registered, binding code: %s\n", code)
			}
			return nil
		},
	}
}
