package lamp

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Chat commands understood by the bot.
const (
	CmdOn    = "/on"
	CmdOff   = "/off"
	CmdBri   = "/bri"
	CmdTemp  = "/temp"
	CmdScene = "/scene"
	CmdID    = "/id"
	CmdPing  = "/ping"
)

const (
	HelpText           = "Команды: /on /off /bri 1-100 /temp 2700-6500 /scene night|reading /id /ping"
	UnauthorizedText   = "🚫 Не авторизован."
	briUsageText       = "Использование: /bri 1-100"
	tempUsageText      = "Использование: /temp 2700-6500"
	sceneAvailableText = "Доступные: night, reading"
)

// Command is one parsed chat line.
type Command struct {
	Name   string
	Arg    string
	HasArg bool
}

// ParseCommand splits text into a command name and at most one argument.
// Tokens after the first argument are ignored.
func ParseCommand(text string) Command {
	fields := strings.Fields(text)
	switch len(fields) {
	case 0:
		return Command{}
	case 1:
		return Command{Name: fields[0]}
	default:
		return Command{Name: fields[0], Arg: fields[1], HasArg: true}
	}
}

// Outcome is what a command resolves to: zero or more actions and the reply for the chat.
type Outcome struct {
	Actions []Action
	Reply   string
}

// MapCommand resolves device commands. /id and /ping need request context and
// are answered by the caller; here they fall through to the help text.
func MapCommand(cmd Command) Outcome {
	switch cmd.Name {
	case CmdOn:
		return Outcome{Actions: []Action{Power(true)}, Reply: "✅ Включаю"}
	case CmdOff:
		return Outcome{Actions: []Action{Power(false)}, Reply: "✅ Выключаю"}
	case CmdBri:
		n, ok := parseNumber(cmd.Arg)
		if !ok {
			return Outcome{Reply: briUsageText}
		}
		v := ClampBrightness(n)
		return Outcome{Actions: []Action{Brightness(v)}, Reply: fmt.Sprintf("🔆 Яркость %d%%", v)}
	case CmdTemp:
		n, ok := parseNumber(cmd.Arg)
		if !ok {
			return Outcome{Reply: tempUsageText}
		}
		v := ClampTemperatureK(n)
		return Outcome{Actions: []Action{TemperatureK(v)}, Reply: fmt.Sprintf("🌡️ Теплота %dK", v)}
	case CmdScene:
		a, ok := Scene(cmd.Arg)
		if !ok {
			return Outcome{Reply: sceneAvailableText}
		}
		return Outcome{Actions: []Action{a}, Reply: fmt.Sprintf("🎨 Сцена: %s", a.State.Value)}
	default:
		return Outcome{Reply: HelpText}
	}
}

var leadingInt = regexp.MustCompile(`^[+-]?\d+`)

// parseNumber reads the leading base-10 integer of s, ignoring anything after
// it ("42.6" -> 42, "30abc" -> 30). An overlong digit run yields ±Inf, which the
// clamp pins to the range bound.
func parseNumber(s string) (float64, bool) {
	prefix := leadingInt.FindString(strings.TrimSpace(s))
	if prefix == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil && !math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
