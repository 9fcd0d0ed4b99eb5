package catalog

type Genre struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// genres mirrors the anime_genres vocabulary used in provider material data.
var genres = []Genre{
	{"action", "экшен"},
	{"adventure", "приключения"},
	{"comedy", "комедия"},
	{"drama", "драма"},
	{"fantasy", "фэнтези"},
	{"horror", "ужасы"},
	{"mystery", "детектив"},
	{"psychological", "психологическое"},
	{"romance", "романтика"},
	{"sci-fi", "фантастика"},
	{"slice-of-life", "повседневность"},
	{"sports", "спорт"},
	{"supernatural", "сверхъестественное"},
	{"thriller", "триллер"},
	{"mecha", "меха"},
	{"music", "музыка"},
	{"school", "школа"},
	{"shounen", "сёнен"},
	{"shoujo", "сёдзё"},
	{"seinen", "сэйнэн"},
	{"josei", "дзёсэй"},
	{"isekai", "исекай"},
	{"historical", "исторический"},
	{"military", "военное"},
	{"martial-arts", "боевые искусства"},
	{"samurai", "самураи"},
	{"vampire", "вампиры"},
	{"magic", "магия"},
	{"parody", "пародия"},
	{"kids", "детское"},
}
