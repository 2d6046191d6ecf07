package employee

import (
	"github.com/spf13/cobra"
)

// EmployeeCmd - родительская команда для сотрудников на устройстве
var EmployeeCmd = &cobra.Command{
	Use:   "employee",
	Short: "Сотрудники на устройстве",
	Long:  `Добавление сотрудников, резервный PIN и просмотр карточек.`,
}
