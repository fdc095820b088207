// Package encoder сопоставляет названиям продуктов плотные целочисленные коды.
package encoder

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// ErrUnknownLabel возвращается при кодировании названия, отсутствовавшего при обучении.
var ErrUnknownLabel = errors.New("unknown label")

// LabelEncoder хранит отсортированный список классов; код класса равен его позиции.
// После Fit кодировщик только читается и безопасен для конкурентного использования.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// Fit строит кодировщик по названиям. Дубликаты схлопываются, классы сортируются лексикографически.
func Fit(labels []string) *LabelEncoder {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}

	classes := make([]string, 0, len(set))
	for l := range set {
		classes = append(classes, l)
	}
	sort.Strings(classes)

	return newFromClasses(classes)
}

func newFromClasses(classes []string) *LabelEncoder {
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	return &LabelEncoder{classes: classes, index: index}
}

// Transform возвращает код названия или ErrUnknownLabel.
func (e *LabelEncoder) Transform(label string) (int, error) {
	code, ok := e.index[label]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return code, nil
}

// Inverse возвращает название по коду.
func (e *LabelEncoder) Inverse(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", fmt.Errorf("%w: code %d out of range [0, %d)", ErrUnknownLabel, code, len(e.classes))
	}
	return e.classes[code], nil
}

// Len возвращает число классов.
func (e *LabelEncoder) Len() int { return len(e.classes) }

// Classes возвращает копию списка классов.
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

type wireEncoder struct {
	Classes []string `json:"classes"`
}

// MarshalJSON сериализует список классов.
func (e *LabelEncoder) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEncoder{Classes: e.classes})
}

// UnmarshalJSON восстанавливает кодировщик. Классы должны быть уникальны и отсортированы,
// иначе коды разошлись бы с кодами при обучении.
func (e *LabelEncoder) UnmarshalJSON(data []byte) error {
	var w wireEncoder
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	for i := 1; i < len(w.Classes); i++ {
		if w.Classes[i-1] >= w.Classes[i] {
			return fmt.Errorf("encoder classes are not strictly sorted at %d: %q, %q", i, w.Classes[i-1], w.Classes[i])
		}
	}
	*e = *newFromClasses(w.Classes)
	return nil
}
