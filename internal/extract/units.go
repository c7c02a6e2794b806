package extract

import (
	"encoding/json"
	"math/big"

	"github.com/tjfontaine/roboto-ai-actions/internal/descriptor"
)

// picosecondDigits is the decimal length at which a timestamp is taken to be
// in picoseconds. Nanosecond epoch timestamps for current dates have 19 digits.
const picosecondDigits = 22

var thousand = big.NewInt(1000)

// CorrectTimestampUnits repairs events whose timestamps were written in
// picoseconds instead of nanoseconds. It walks root["data"] and, for each
// object whose start and end are both integer literals, divides both by 1000
// when either one has 22 or more characters. root is modified in place and
// returned along with the number of corrected events.
//
// Both fields are scaled even when only one is oversized. A correctly scaled
// partner is therefore shrunk as well; the resulting batch normally fails the
// duration bounds in the schema.
func CorrectTimestampUnits(root any) (any, int) {
	obj, ok := root.(map[string]any)
	if !ok {
		return root, 0
	}
	events, ok := obj["data"].([]any)
	if !ok {
		return root, 0
	}

	corrected := 0
	for _, item := range events {
		event, ok := item.(map[string]any)
		if !ok {
			continue
		}
		start, ok := integerLiteral(event["start"])
		if !ok {
			continue
		}
		end, ok := integerLiteral(event["end"])
		if !ok {
			continue
		}
		if len(start) < picosecondDigits && len(end) < picosecondDigits {
			continue
		}

		event["start"] = divideByThousand(start)
		event["end"] = divideByThousand(end)
		corrected++
	}
	return root, corrected
}

func integerLiteral(v any) (string, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return "", false
	}
	s := n.String()
	if !descriptor.IsIntegerLiteral(s) {
		return "", false
	}
	return s, true
}

// divideByThousand floors s/1000. big.Int.Div is Euclidean, which equals floor
// division for a positive divisor.
func divideByThousand(s string) json.Number {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return json.Number(s)
	}
	return json.Number(v.Div(v, thousand).String())
}
