// Package normalize приводит к единому виду категориальные поля входных данных:
// серии двигателей и почтовые индексы.
package normalize

import "github.com/akozadaev/go_vio_recommender/internal/models"

// Канонические названия семейств двигателей.
const (
	FamilyMP8              = "MP8"
	FamilyMP7              = "MP7"
	FamilyVED13            = "VE-D13"
	FamilyCumminsISX       = "Cummins ISX"
	FamilyCumminsISB       = "Cummins ISB"
	FamilyInternationalA26 = "International A26"
	FamilyDD15             = "DD15"
	FamilyCumminsB67       = "Cummins B6.7"
	FamilyDD13             = "DD13"
	FamilyMX13             = "MX-13"
	FamilyPX7              = "PX-7"
	FamilyPX9              = "PX-9"
	FamilyVED16            = "VE-D16"
	FamilyVED7             = "VE-D7"
	FamilyVED12            = "VE-D12"
)

// Families - замкнутый список канонических семейств в порядке обработки.
// Покрывает все значения, которые может вернуть таблица engineAliases.
var Families = []string{
	FamilyMP8,
	FamilyMP7,
	FamilyVED13,
	FamilyCumminsISX,
	FamilyCumminsISB,
	FamilyInternationalA26,
	FamilyDD15,
	FamilyCumminsB67,
	FamilyDD13,
	FamilyMX13,
	FamilyPX7,
	FamilyPX9,
	FamilyVED16,
	FamilyVED7,
	FamilyVED12,
}

// engineAliases отображает встречающиеся в данных варианты написания на каноническое семейство.
var engineAliases = map[string]string{
	"ISX/SIGNATURE": FamilyCumminsISX,
	"ISX":           FamilyCumminsISX,
	"ISX 15L":       FamilyCumminsISX,
	"MX13":          FamilyMX13,
	"VE D16":        FamilyVED16,
	"VE D7":         FamilyVED7,
	"VE D12":        FamilyVED12,
	"ISB":           FamilyCumminsISB,
	"ISB 260":       FamilyCumminsISB,
	"ISB 3.9":       FamilyCumminsISB,
	"ISB 175":       FamilyCumminsISB,
	"A26":           FamilyInternationalA26,
	"D13":           FamilyVED13,
	"B6.7":          FamilyCumminsB67,
	"MP7-355E":      FamilyMP7,
}

// Engine возвращает каноническое семейство для серии двигателя.
// Неизвестная серия возвращается без изменений и образует собственное семейство.
func Engine(raw string) string {
	family, ok := engineAliases[raw]
	if !ok {
		return raw
	}
	return family
}

// IsCanonical сообщает, входит ли семейство в замкнутый список Families.
func IsCanonical(family string) bool {
	for _, f := range Families {
		if f == family {
			return true
		}
	}
	return false
}

// Zip дополняет четырёхзначный индекс ведущим нулём.
// Индексы другой длины, в том числе трёхзначные и нечисловые, возвращаются как есть.
func Zip(zip string) string {
	if len(zip) == 4 {
		return "0" + zip
	}
	return zip
}

// Equipment нормализует индексы и семейства двигателей записей парка на месте.
func Equipment(records []models.EquipmentRecord) {
	for i := range records {
		records[i].ZipCode = Zip(records[i].ZipCode)
		records[i].EngineFamily = Engine(records[i].EngineFamily)
	}
}

// Catalog нормализует семейства двигателей позиций каталога на месте.
func Catalog(entries []models.CatalogEntry) {
	for i := range entries {
		entries[i].EngineFamily = Engine(entries[i].EngineFamily)
	}
}
