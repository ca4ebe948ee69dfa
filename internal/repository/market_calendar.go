package repository

import (
	"fmt"
	"time"

	"golang-options/config"
	"golang-options/internal/contract"
)

type marketCalendar struct {
	loc      *time.Location
	openMin  int
	closeMin int
	holidays map[string]struct{}
}

// NewMarketCalendar returns a weekday regular-session calendar with a
// configured holiday list (YYYY-MM-DD in the market time zone).
func NewMarketCalendar(cfg config.Market) (contract.MarketCalendar, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid market time zone %q: %w", cfg.TimeZone, err)
	}
	openMin, err := parseClock(cfg.OpenTime)
	if err != nil {
		return nil, fmt.Errorf("invalid market open time: %w", err)
	}
	closeMin, err := parseClock(cfg.CloseTime)
	if err != nil {
		return nil, fmt.Errorf("invalid market close time: %w", err)
	}
	if closeMin <= openMin {
		return nil, fmt.Errorf("market close %s must be after open %s", cfg.CloseTime, cfg.OpenTime)
	}

	holidays := make(map[string]struct{}, len(cfg.Holidays))
	for _, h := range cfg.Holidays {
		if _, err := time.Parse(time.DateOnly, h); err != nil {
			return nil, fmt.Errorf("invalid market holiday %q: %w", h, err)
		}
		holidays[h] = struct{}{}
	}

	return &marketCalendar{loc: loc, openMin: openMin, closeMin: closeMin, holidays: holidays}, nil
}

func (c *marketCalendar) IsMarketOpen(now time.Time) bool {
	local := now.In(c.loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	if _, ok := c.holidays[local.Format(time.DateOnly)]; ok {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= c.openMin && minute < c.closeMin
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
