package helper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang-options/internal/dto"
	"golang-options/internal/model"
)

// OCC option symbol: root (1-6 letters), YYMMDD, C or P, strike x1000 in 8 digits.
var occPattern = regexp.MustCompile(`^([A-Z]{1,6})(\d{6})([CP])(\d{8})$`)

func IsOCCSymbol(symbol string) bool {
	return occPattern.MatchString(strings.ReplaceAll(symbol, " ", ""))
}

func FormatOCCSymbol(underlying string, expiration time.Time, contractType model.ContractType, strike float64) string {
	cp := "C"
	if contractType == model.ContractPut {
		cp = "P"
	}
	return fmt.Sprintf("%s%s%s%08d", underlying, expiration.Format("060102"), cp, int64(strike*1000+0.5))
}

// ParseOCCSymbol decodes an OCC symbol into an option spec.
func ParseOCCSymbol(symbol string) (dto.OptionSpec, error) {
	m := occPattern.FindStringSubmatch(strings.ReplaceAll(symbol, " ", ""))
	if m == nil {
		return dto.OptionSpec{}, fmt.Errorf("%w: %q is not an OCC option symbol", dto.ErrInvalidSymbol, symbol)
	}

	expiration, err := time.ParseInLocation("060102", m[2], time.UTC)
	if err != nil {
		return dto.OptionSpec{}, fmt.Errorf("%w: bad expiration in %q: %v", dto.ErrInvalidSymbol, symbol, err)
	}
	strike, err := strconv.ParseInt(m[4], 10, 64)
	if err != nil {
		return dto.OptionSpec{}, fmt.Errorf("%w: bad strike in %q: %v", dto.ErrInvalidSymbol, symbol, err)
	}

	contractType := model.ContractCall
	if m[3] == "P" {
		contractType = model.ContractPut
	}

	return dto.OptionSpec{
		Underlying:   m[1],
		OptionSymbol: m[0],
		ContractType: contractType,
		Strike:       float64(strike) / 1000,
		Expiration:   expiration,
	}, nil
}
