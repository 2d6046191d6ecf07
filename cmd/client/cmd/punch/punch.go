package punch

import (
	"github.com/spf13/cobra"

	"punchclock/internal/domain/attendance"
)

// PunchCmd - родительская команда для отметок
var PunchCmd = &cobra.Command{
	Use:   "punch",
	Short: "Отметки прихода, ухода и перерывов",
	Long: `Отметка проходит проверку на устройстве и попадает в очередь на отправку.

Способы проверки (--method):
- geo_face  - геозона и лицо (по умолчанию)
- geo       - только геозона
- kiosk_pin - общий киоск, PIN сотрудника
- qr        - QR-код площадки`,
}

var punchTypes = []struct {
	use   string
	short string
	typ   attendance.PunchType
}{
	{use: "in", short: "Отметить приход", typ: attendance.ClockIn},
	{use: "out", short: "Отметить уход", typ: attendance.ClockOut},
	{use: "break-start", short: "Начать перерыв", typ: attendance.BreakStart},
	{use: "break-end", short: "Закончить перерыв", typ: attendance.BreakEnd},
}

// TypeCmds возвращает по команде на каждый тип отметки.
func TypeCmds() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(punchTypes))
	for _, pt := range punchTypes {
		cmds = append(cmds, newTypeCmd(pt.use, pt.short, pt.typ))
	}
	return cmds
}
