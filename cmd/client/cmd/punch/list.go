package punch

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"punchclock/internal/app/client"
	"punchclock/internal/domain/attendance"
)

var (
	listEmployee string
	listState    string
	listLimit    int
	listRemote   bool
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список отметок",
	Long: `Выводит отметки из локального журнала устройства.
С флагом --remote показывает отметки, принятые сервером.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		if listRemote {
			if listEmployee == "" {
				return fmt.Errorf("для --remote нужен --employee")
			}
			punches, err := app.ServerPunches(cmd.Context(), listEmployee)
			if err != nil {
				return fmt.Errorf("ошибка получения отметок с сервера: %w", err)
			}
			if asJSON {
				return printJSON(punches)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID СЕРВЕРА\tТИП\tВРЕМЯ\tГЕОЗОНА\tПРОВЕРКА")
			for _, p := range punches {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n",
					p.ServerID, p.Type, p.Timestamp.Local().Format("2006-01-02 15:04:05"), p.GeofenceResult, p.ReviewRequired)
			}
			return w.Flush()
		}

		filter := attendance.EventFilter{
			EmployeeID: listEmployee,
			SyncState:  attendance.SyncState(listState),
			Limit:      listLimit,
		}
		if filter.SyncState != "" && !filter.SyncState.Valid() {
			return fmt.Errorf("неизвестное состояние отправки: %s", listState)
		}

		events, err := app.Events(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("ошибка получения отметок: %w", err)
		}
		if asJSON {
			return printJSON(events)
		}
		if len(events) == 0 {
			fmt.Println("Отметок нет")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tСОТРУДНИК\tТИП\tВРЕМЯ\tГЕОЗОНА\tСПОСОБ\tОТПРАВКА")
		for _, ev := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				ev.ID, ev.EmployeeID, ev.Type, ev.Timestamp.Local().Format("2006-01-02 15:04:05"),
				ev.GeofenceResult, ev.VerificationMethod, ev.SyncState)
		}
		return w.Flush()
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	ListCmd.Flags().StringVarP(&listEmployee, "employee", "e", "", "фильтр по сотруднику")
	ListCmd.Flags().StringVar(&listState, "state", "", "фильтр по состоянию отправки (pending, submitting, synced, rejected)")
	ListCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "максимум записей")
	ListCmd.Flags().BoolVar(&listRemote, "remote", false, "отметки с сервера")
}
