package punch

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"punchclock/internal/app/client"
	"punchclock/internal/domain/attendance"
	"punchclock/internal/domain/geofence"
)

type punchFlags struct {
	employeeID  string
	lat         float64
	lon         float64
	accuracy    float64
	method      string
	credential  string
	face        string
	fallbackPIN bool
	corrects    string
}

func newTypeCmd(use, short string, typ attendance.PunchType) *cobra.Command {
	var f punchFlags

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := client.FromContext(cmd.Context())
			if err != nil {
				return err
			}

			req, err := f.request(cmd, typ)
			if err != nil {
				return err
			}

			ev, err := app.Punch(cmd.Context(), req)
			if err != nil {
				return err
			}

			color.Green("✅ Отметка сохранена")
			printEvent(ev)
			if ev.ReviewRequired {
				color.Yellow("⚠️  Отметка вне геозоны по разрешению, будет проверена руководителем")
			}
			if !app.IsRegistered() {
				fmt.Println("Устройство не зарегистрировано: отметка уйдет на сервер после punchclock device register")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.employeeID, "employee", "e", "", "идентификатор сотрудника")
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "широта")
	cmd.Flags().Float64Var(&f.lon, "lon", 0, "долгота")
	cmd.Flags().Float64Var(&f.accuracy, "accuracy", 10, "точность координат, м")
	cmd.Flags().StringVarP(&f.method, "method", "m", string(attendance.MethodGeoFace), "способ проверки")
	cmd.Flags().StringVar(&f.credential, "credential", "", "PIN киоска или содержимое QR-кода")
	cmd.Flags().StringVar(&f.face, "face", "ok", "результаты захвата лица по попыткам, например fail,ok")
	cmd.Flags().BoolVar(&f.fallbackPIN, "fallback-pin", false, "запросить PIN, если лицо не распознано")
	cmd.Flags().StringVar(&f.corrects, "corrects", "", "ID исправляемой отметки")
	_ = cmd.MarkFlagRequired("employee")

	return cmd
}

func (f *punchFlags) request(cmd *cobra.Command, typ attendance.PunchType) (client.PunchRequest, error) {
	kind := attendance.MethodKind(f.method)

	credential := f.credential
	if kind == attendance.MethodKiosk && credential == "" {
		pin, err := readPIN("PIN: ")
		if err != nil {
			return client.PunchRequest{}, err
		}
		credential = pin
	}

	method, err := attendance.NewMethod(kind, credential)
	if err != nil {
		return client.PunchRequest{}, err
	}

	req := client.PunchRequest{
		EmployeeID: f.employeeID,
		Type:       typ,
		Method:     method,
		CorrectsID: f.corrects,
		FaceScript: f.face,
	}

	if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
		req.Location = &geofence.Location{Lat: f.lat, Lon: f.lon, AccuracyMeters: f.accuracy}
	}

	if f.fallbackPIN {
		pin, err := readPIN("Резервный PIN: ")
		if err != nil {
			return client.PunchRequest{}, err
		}
		req.FallbackPIN = pin
	}

	return req, nil
}

func readPIN(prompt string) (string, error) {
	fmt.Print(prompt)
	pin, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("ошибка чтения PIN: %w", err)
	}
	fmt.Println()
	return string(pin), nil
}
