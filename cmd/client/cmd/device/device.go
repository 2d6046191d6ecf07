package device

import (
	"github.com/spf13/cobra"
)

// DeviceCmd - родительская команда для операций с устройством
var DeviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Управление устройством",
	Long:  `Регистрация устройства на сервере.`,
}
