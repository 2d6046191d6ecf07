package employee

import (
	"fmt"

	"github.com/spf13/cobra"

	"punchclock/internal/app/client"
)

var (
	employeeID string
	name       string
	override   bool
)

var EnrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Добавить или обновить сотрудника",
	Long: `Добавляет сотрудника на устройство.

Флаг --override разрешает отметку вне геозоны: такая отметка
принимается, но помечается для проверки руководителем.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		emp, err := app.EnrollEmployee(cmd.Context(), employeeID, name, override)
		if err != nil {
			return fmt.Errorf("ошибка сохранения сотрудника: %w", err)
		}

		fmt.Printf("✅ Сотрудник %s сохранен\n", emp.ID)
		if emp.OverrideGeofence {
			fmt.Println("   Разрешена отметка вне геозоны")
		}
		if !emp.HasPIN() {
			fmt.Printf("   Задайте PIN для киоска: punchclock employee set-pin --id %s\n", emp.ID)
		}
		return nil
	},
}

func init() {
	EnrollCmd.Flags().StringVar(&employeeID, "id", "", "идентификатор сотрудника")
	EnrollCmd.Flags().StringVar(&name, "name", "", "имя сотрудника")
	EnrollCmd.Flags().BoolVar(&override, "override", false, "разрешить отметку вне геозоны")
	_ = EnrollCmd.MarkFlagRequired("id")
}
