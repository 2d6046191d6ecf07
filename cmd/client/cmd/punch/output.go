package punch

import (
	"fmt"

	"github.com/fatih/color"

	"punchclock/internal/domain/attendance"
)

func printEvent(ev *attendance.Event) {
	fmt.Printf("ID:          %s\n", ev.ID)
	fmt.Printf("Сотрудник:   %s\n", ev.EmployeeID)
	fmt.Printf("Тип:         %s\n", ev.Type)
	fmt.Printf("Время:       %s\n", ev.Timestamp.Local().Format("2006-01-02 15:04:05"))
	if ev.Location != nil {
		fmt.Printf("Координаты:  %.6f, %.6f (±%.0f м)\n", ev.Location.Lat, ev.Location.Lon, ev.Location.AccuracyMeters)
	}
	fmt.Printf("Геозона:     %s\n", ev.GeofenceResult)
	fmt.Printf("Лицо:        %s\n", ev.BiometricResult)
	fmt.Printf("Способ:      %s\n", ev.VerificationMethod)
	if ev.FallbackCredential {
		fmt.Println("Резерв:      PIN")
	}
	if ev.CorrectsID != "" {
		fmt.Printf("Исправляет:  %s\n", ev.CorrectsID)
	}
	fmt.Printf("Отправка:    %s\n", syncState(ev.SyncState))
	if ev.ServerID != "" {
		fmt.Printf("ID сервера:  %s\n", ev.ServerID)
	}
}

func syncState(s attendance.SyncState) string {
	switch s {
	case attendance.SyncSynced:
		return color.GreenString(string(s))
	case attendance.SyncRejected:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}
