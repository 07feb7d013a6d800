package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/withme/withme/internal/config"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage paired push devices",
}

var devicePairUser string
var deviceListUser string

var devicePairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Generate a pairing QR code for the mobile app",
	RunE:  runDevicePair,
}

var deviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List paired devices for a user",
	RunE:  runDeviceList,
}

func init() {
	devicePairCmd.Flags().StringVar(&devicePairUser, "user", "", "User ID to pair the device to")
	devicePairCmd.MarkFlagRequired("user")
	deviceListCmd.Flags().StringVar(&deviceListUser, "user", "", "User ID to list devices for")
	deviceListCmd.MarkFlagRequired("user")
	deviceCmd.AddCommand(devicePairCmd)
	deviceCmd.AddCommand(deviceListCmd)
}

func runDevicePair(cmd *cobra.Command, args []string) error {
	printHeader("📱 withMe Device Pairing")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	code := uuid.NewString()
	payload := fmt.Sprintf("withme://pair?user=%s&code=%s&host=%s:%d",
		devicePairUser, code, cfg.Server.Host, cfg.Server.Port)

	qrPath := dataFilePath(cfg, "device-qr.png")
	if cfg.Paths.DataDir != "" {
		if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	if err := qrcode.WriteFile(payload, qrcode.Medium, 512, qrPath); err != nil {
		return fmt.Errorf("write QR code: %w", err)
	}

	fmt.Println("Scan this QR code with the withMe app:")
	fmt.Println("QR image:     " + qrPath)
	fmt.Println("Pairing code: " + code)
	fmt.Println("The app completes pairing by posting its push token to /api/v1/devices.")
	return nil
}

func runDeviceList(cmd *cobra.Command, args []string) error {
	printHeader("📱 withMe Devices")

	st, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer st.Close()

	devices, err := st.DevicesForUser(deviceListUser)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(devices) == 0 {
		fmt.Println("No devices paired.")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%s  %-8s  %s\n", d.ID, d.Platform, maskToken(d.PushToken))
	}
	return nil
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
