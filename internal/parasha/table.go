package parasha

import "matai/internal/model"

type portion struct {
	number  int
	english string
	hebrew  string
	reading string
	// aliases are alternative transliterations seen in service titles.
	aliases []string
}

var portions = []portion{
	{1, "Bereshit", "בראשית", "Genesis 1:1-6:8", []string{"Bereishit", "Bereshis"}},
	{2, "Noach", "נח", "Genesis 6:9-11:32", nil},
	{3, "Lech-Lecha", "לך לך", "Genesis 12:1-17:27", []string{"Lech Lecha"}},
	{4, "Vayera", "וירא", "Genesis 18:1-22:24", []string{"Vayeira"}},
	{5, "Chayei Sara", "חיי שרה", "Genesis 23:1-25:18", []string{"Chayei Sarah", "Chaye Sarah"}},
	{6, "Toldot", "תולדות", "Genesis 25:19-28:9", []string{"Toledot"}},
	{7, "Vayetzei", "ויצא", "Genesis 28:10-32:3", []string{"Vayetze", "Vayeitzei"}},
	{8, "Vayishlach", "וישלח", "Genesis 32:4-36:43", nil},
	{9, "Vayeshev", "וישב", "Genesis 37:1-40:23", []string{"Vayeishev"}},
	{10, "Miketz", "מקץ", "Genesis 41:1-44:17", []string{"Mikeitz"}},
	{11, "Vayigash", "ויגש", "Genesis 44:18-47:27", nil},
	{12, "Vayechi", "ויחי", "Genesis 47:28-50:26", []string{"Vayehi"}},
	{13, "Shemot", "שמות", "Exodus 1:1-6:1", []string{"Shmot"}},
	{14, "Vaera", "וארא", "Exodus 6:2-9:35", []string{"Va'eira", "Vaeira"}},
	{15, "Bo", "בא", "Exodus 10:1-13:16", nil},
	{16, "Beshalach", "בשלח", "Exodus 13:17-17:16", []string{"Beshallach"}},
	{17, "Yitro", "יתרו", "Exodus 18:1-20:23", nil},
	{18, "Mishpatim", "משפטים", "Exodus 21:1-24:18", nil},
	{19, "Terumah", "תרומה", "Exodus 25:1-27:19", nil},
	{20, "Tetzaveh", "תצוה", "Exodus 27:20-30:10", []string{"Tetzave"}},
	{21, "Ki Tisa", "כי תשא", "Exodus 30:11-34:35", []string{"Ki Tissa"}},
	{22, "Vayakhel", "ויקהל", "Exodus 35:1-38:20", nil},
	{23, "Pekudei", "פקודי", "Exodus 38:21-40:38", nil},
	{24, "Vayikra", "ויקרא", "Leviticus 1:1-5:26", nil},
	{25, "Tzav", "צו", "Leviticus 6:1-8:36", nil},
	{26, "Shmini", "שמיני", "Leviticus 9:1-11:47", []string{"Shemini"}},
	{27, "Tazria", "תזריע", "Leviticus 12:1-13:59", []string{"Sazria"}},
	{28, "Metzora", "מצורע", "Leviticus 14:1-15:33", nil},
	{29, "Achrei Mot", "אחרי מות", "Leviticus 16:1-18:30", []string{"Acharei Mot", "Aharei Mot"}},
	{30, "Kedoshim", "קדושים", "Leviticus 19:1-20:27", nil},
	{31, "Emor", "אמור", "Leviticus 21:1-24:23", nil},
	{32, "Behar", "בהר", "Leviticus 25:1-26:2", nil},
	{33, "Bechukotai", "בחקתי", "Leviticus 26:3-27:34", []string{"Bechukosai", "Behukotai"}},
	{34, "Bamidbar", "במדבר", "Numbers 1:1-4:20", []string{"Bemidbar"}},
	{35, "Nasso", "נשא", "Numbers 4:21-7:89", []string{"Naso"}},
	{36, "Beha'alotcha", "בהעלתך", "Numbers 8:1-12:16", []string{"Behaalotecha", "Beha'alotecha"}},
	{37, "Sh'lach", "שלח", "Numbers 13:1-15:41", []string{"Shelach", "Sh'lach Lecha", "Shlach"}},
	{38, "Korach", "קרח", "Numbers 16:1-18:32", []string{"Korah"}},
	{39, "Chukat", "חקת", "Numbers 19:1-22:1", []string{"Chukas", "Hukat"}},
	{40, "Balak", "בלק", "Numbers 22:2-25:9", nil},
	{41, "Pinchas", "פינחס", "Numbers 25:10-30:1", []string{"Pinhas"}},
	{42, "Matot", "מטות", "Numbers 30:2-32:42", []string{"Mattot"}},
	{43, "Masei", "מסעי", "Numbers 33:1-36:13", []string{"Massei"}},
	{44, "Devarim", "דברים", "Deuteronomy 1:1-3:22", nil},
	{45, "Vaetchanan", "ואתחנן", "Deuteronomy 3:23-7:11", []string{"Va'etchanan"}},
	{46, "Eikev", "עקב", "Deuteronomy 7:12-11:25", []string{"Ekev"}},
	{47, "Re'eh", "ראה", "Deuteronomy 11:26-16:17", []string{"Reeh"}},
	{48, "Shoftim", "שופטים", "Deuteronomy 16:18-21:9", nil},
	{49, "Ki Teitzei", "כי תצא", "Deuteronomy 21:10-25:19", []string{"Ki Tetzei", "Ki Tetze"}},
	{50, "Ki Tavo", "כי תבוא", "Deuteronomy 26:1-29:8", []string{"Ki Savo"}},
	{51, "Nitzavim", "נצבים", "Deuteronomy 29:9-30:20", nil},
	{52, "Vayeilech", "וילך", "Deuteronomy 31:1-31:30", []string{"Vayelech"}},
	{53, "Ha'azinu", "האזינו", "Deuteronomy 32:1-32:52", []string{"Haazinu"}},
	{54, "Vezot Haberakhah", "וזאת הברכה", "Deuteronomy 33:1-34:12", []string{"V'Zot HaBerachah", "Vezot Haberachah"}},
}

// combinable maps the first portion of each pair that is read together in
// a common (non-leap) year to its partner.
var combinable = map[int]int{
	22: 23,
	27: 28,
	29: 30,
	32: 33,
	42: 43,
	51: 52,
}

var (
	singles  = make(map[int]model.ParashaPortion, len(portions))
	combined = make(map[int]model.ParashaPortion, len(combinable))
)

func init() {
	byNumber := make(map[int]portion, len(portions))
	for _, p := range portions {
		byNumber[p.number] = p
		singles[p.number] = model.ParashaPortion{
			ID:          model.PortionID(p.number),
			Numbers:     []int{p.number},
			HebrewName:  p.hebrew,
			EnglishName: p.english,
			Description: p.reading,
		}
	}
	for first, second := range combinable {
		a, b := byNumber[first], byNumber[second]
		combined[first] = model.ParashaPortion{
			ID:          model.PortionID(first, second),
			Numbers:     []int{first, second},
			HebrewName:  a.hebrew + "-" + b.hebrew,
			EnglishName: a.english + "-" + b.english,
			Description: a.reading + "; " + b.reading,
		}
	}
	nameIndex = buildNameIndex()
}

// Single returns the table entry for a portion number.
func Single(number int) (model.ParashaPortion, bool) {
	p, ok := singles[number]
	return p, ok
}

// Combined returns the joint portion that starts at first.
func Combined(first int) (model.ParashaPortion, bool) {
	p, ok := combined[first]
	return p, ok
}
