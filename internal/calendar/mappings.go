package calendar

import (
	"regexp"
	"sort"
	"strings"
)

// holidayMeta is the static metadata joined onto a calendar event title.
type holidayMeta struct {
	BaseID      string
	Name        string
	EnglishName string
	SearchTerm  string
}

// holidayMappings is the allow-list of calendar titles surfaced to users.
// Titles not in this table are discarded.
var holidayMappings = map[string]holidayMeta{
	"Pesach I":           {BaseID: "pesach", Name: "פסח", EnglishName: "Passover", SearchTerm: "passover seder matzah"},
	"Yom HaAtzma'ut":     {BaseID: "yomhaatzmaut", Name: "יום העצמאות", EnglishName: "Independence Day", SearchTerm: "israel flag celebration party"},
	"Lag BaOmer":         {BaseID: "lagbaomer", Name: "ל\"ג בעומר", EnglishName: "Lag BaOmer", SearchTerm: "bonfire Lag BaOmer"},
	"Shavuot":            {BaseID: "shavuot", Name: "שבועות", EnglishName: "Shavuot", SearchTerm: "Jewish Shavuot"},
	"Rosh Hashana":       {BaseID: "roshhashana", Name: "ראש השנה", EnglishName: "Rosh Hashana", SearchTerm: "Jewish New Year"},
	"Yom Kippur":         {BaseID: "yomkippur", Name: "יום כיפור", EnglishName: "Yom Kippur", SearchTerm: "Yom Kippur"},
	"Sukkot I":           {BaseID: "sukkot", Name: "סוכות", EnglishName: "Sukkot", SearchTerm: "Jewish Sukkah holiday"},
	"Chanukah: 1 Candle": {BaseID: "chanukah", Name: "חנוכה", EnglishName: "Hanukkah", SearchTerm: "hanukkah menorah candles"},
	"Tu BiShvat":         {BaseID: "tubishvat", Name: "ט\"ו בשבט", EnglishName: "Tu BiShvat", SearchTerm: "tree planting"},
	"Purim":              {BaseID: "purim", Name: "פורים", EnglishName: "Purim", SearchTerm: "hamantaschen"},
}

// The service appends the Hebrew year to some titles ("Rosh Hashana 5787").
var hebrewYearSuffix = regexp.MustCompile(`\s+\d{4}$`)

func lookupHoliday(title string) (holidayMeta, bool) {
	title = strings.TrimSpace(title)
	if meta, ok := holidayMappings[title]; ok {
		return meta, true
	}
	meta, ok := holidayMappings[hebrewYearSuffix.ReplaceAllString(title, "")]
	return meta, ok
}

// BaseIDs lists the base ids of all mapped holidays, sorted.
func BaseIDs() []string {
	ids := make([]string, 0, len(holidayMappings))
	for _, m := range holidayMappings {
		ids = append(ids, m.BaseID)
	}
	sort.Strings(ids)
	return ids
}
