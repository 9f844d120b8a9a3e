package fixer

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prettymuchbryce/kpicheck/internal/config"
)

var chineseQuarters = [...]string{"一", "二", "三", "四"}

// Period is a reporting quarter.
type Period struct {
	Year    int `yaml:"year" json:"year"`
	Quarter int `yaml:"quarter" json:"quarter"`
}

// PeriodOf returns the quarter containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Quarter: (int(t.Month())-1)/3 + 1}
}

// QuarterName renders the quarter as a Chinese numeral or an Arabic digit.
func (p Period) QuarterName(format string) string {
	if format == config.QuarterChinese && p.Quarter >= 1 && p.Quarter <= 4 {
		return chineseQuarters[p.Quarter-1]
	}
	return strconv.Itoa(p.Quarter)
}

func (p Period) String() string {
	return fmt.Sprintf("%dQ%d", p.Year, p.Quarter)
}
