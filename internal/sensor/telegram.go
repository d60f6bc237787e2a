package sensor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// EOL terminates every telegram on the gauge's serial line.
const EOL = '\r'

// TelegramError reports a telegram that could not be decoded.
type TelegramError struct {
	Telegram string
}

func (e *TelegramError) Error() string {
	return fmt.Sprintf("invalid telegram: %q", e.Telegram)
}

var valuePattern = regexp.MustCompile(`[-+]?\d*\.\d+|\d+`)

// Telegram is the decoded form of a gauge display-value response:
// the numeric reading plus unit, mode and condition flags.
type Telegram struct {
	Value     float64
	Unit      byte
	Mode      byte
	Condition byte
}

// DecodeTelegram decodes a raw response line. The numeric display value
// is followed by three flag characters (unit, mode, condition).
func DecodeTelegram(raw string) (Telegram, error) {
	s := strings.ReplaceAll(raw, string(EOL), "")
	match := valuePattern.FindString(s)
	if match == "" {
		return Telegram{}, &TelegramError{Telegram: s}
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return Telegram{}, &TelegramError{Telegram: s}
	}
	if len(s) < 3 {
		return Telegram{}, &TelegramError{Telegram: s}
	}
	flags := s[len(s)-3:]
	return Telegram{Value: value, Unit: flags[0], Mode: flags[1], Condition: flags[2]}, nil
}
