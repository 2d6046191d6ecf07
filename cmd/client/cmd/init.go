// cmd/client/cmd/init.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"punchclock/cmd/client/cmd/device"
	"punchclock/cmd/client/cmd/employee"
	"punchclock/cmd/client/cmd/punch"
	"punchclock/cmd/client/cmd/sync"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Инициализировать клиент PunchClock",
	Long: `Команда init выполняет первоначальную настройку устройства:
	1. Создает локальное хранилище и идентификатор устройства
	2. Показывает политику площадки из конфигурации
	3. Проверяет соединение с сервером

Отметки можно делать и без сервера: они дождутся сети в локальной очереди.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("=== Инициализация PunchClock ===")
		fmt.Println()

		deviceID, err := app.DeviceID(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка создания идентификатора устройства: %w", err)
		}
		fmt.Printf("Устройство:  %s\n", deviceID)
		fmt.Printf("Хранилище:   %s\n", cfg.DBPath)

		site := cfg.Site
		fmt.Printf("Площадка:    %s (%.6f, %.6f), радиус %.0f м\n",
			site.SiteID, site.Center.Lat, site.Center.Lon, site.RadiusMeters)
		if len(site.AllowedMethods) > 0 {
			fmt.Printf("Способы:     %s\n", strings.Join(site.AllowedMethods, ", "))
		}
		fmt.Println()

		// Проверяем соединение с сервером
		fmt.Println("Проверка соединения с сервером...")
		if err := app.CheckConnection(); err != nil {
			color.Yellow("⚠️  Не удалось подключиться к серверу: %v", err)
			fmt.Println("Отметки будут храниться локально до появления сети.")
		} else {
			color.Green("✓ Соединение с сервером установлено")
		}

		fmt.Println()
		fmt.Println("Что дальше:")
		if !app.IsRegistered() {
			fmt.Println("1. Зарегистрируйте устройство: punchclock device register")
		} else {
			fmt.Println("1. Устройство уже зарегистрировано")
		}
		fmt.Println("2. Добавьте сотрудника: punchclock employee enroll --id emp-1 --name \"Анна\"")
		fmt.Println("3. Отметьте приход: punchclock punch in --employee emp-1 --lat 55.75 --lon 37.61")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)

	rootCmd.AddCommand(device.DeviceCmd)
	device.DeviceCmd.AddCommand(device.RegisterCmd)

	rootCmd.AddCommand(employee.EmployeeCmd)
	employee.EmployeeCmd.AddCommand(employee.EnrollCmd)
	employee.EmployeeCmd.AddCommand(employee.SetPINCmd)
	employee.EmployeeCmd.AddCommand(employee.ShowCmd)

	rootCmd.AddCommand(punch.PunchCmd)
	for _, c := range punch.TypeCmds() {
		punch.PunchCmd.AddCommand(c)
	}
	punch.PunchCmd.AddCommand(punch.ListCmd)
	punch.PunchCmd.AddCommand(punch.ShowCmd)

	rootCmd.AddCommand(sync.SyncCmd)
}
