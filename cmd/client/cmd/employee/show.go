package employee

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"punchclock/internal/app/client"
	"punchclock/internal/domain/attendance"
)

var showEmployeeID string

var ShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Показать сотрудников",
	Long:  `Без --id выводит всех сотрудников устройства.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		var employees []*attendance.Employee
		if showEmployeeID != "" {
			emp, err := app.Employee(cmd.Context(), showEmployeeID)
			if err != nil {
				return err
			}
			employees = append(employees, emp)
		} else {
			employees, err = app.Employees(cmd.Context())
			if err != nil {
				return fmt.Errorf("ошибка получения сотрудников: %w", err)
			}
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(employees)
		}

		if len(employees) == 0 {
			fmt.Println("Сотрудники не добавлены")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tИМЯ\tPIN\tВНЕ ГЕОЗОНЫ")
		for _, e := range employees {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Name, yesNo(e.HasPIN()), yesNo(e.OverrideGeofence))
		}
		return w.Flush()
	},
}

func yesNo(v bool) string {
	if v {
		return "да"
	}
	return "нет"
}

func init() {
	ShowCmd.Flags().StringVar(&showEmployeeID, "id", "", "идентификатор сотрудника")
}
