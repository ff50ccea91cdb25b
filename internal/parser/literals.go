package parser

import "strconv"

// parseIntLiteral accepts both decimal and the lexer's `0x...` hex form.
func parseIntLiteral(lit string) int32 {
	n, err := strconv.ParseInt(lit, 0, 64)
	if err != nil {
		return 0
	}
	return int32(n)
}

func parseDecimalLiteral(lit string) float64 {
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0
	}
	return f
}
