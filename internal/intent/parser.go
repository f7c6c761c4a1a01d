// Package intent извлекает структурированный блок заказа из свободного
// текста ответа языковой модели.
package intent

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/mmeshcher/pekara-system/internal/model"
)

// Marker — фиксированная текстовая метка, после которой модель обязана
// поместить JSON-объект заказа.
const Marker = "###ORDER###"

// ErrNoPayload возвращается, если после метки нет разобираемого JSON-объекта.
var ErrNoPayload = errors.New("no parsable payload after marker")

// ParsedTurn — результат разбора одного ответа модели.
// Reply всегда пригоден для показа пользователю: метка и текст полезной
// нагрузки из него вырезаны, даже если разбор не удался.
type ParsedTurn struct {
	Reply   string
	Payload *model.OrderIntent
	// ParseErr не пустой, если метка присутствовала, но полезную нагрузку
	// разобрать не удалось. Это мягкая ошибка: диалог продолжается.
	ParseErr error
}

// Parse находит метку, извлекает первый сбалансированный объект {...} после
// неё и разбирает его как JSON. Ошибка разбора не фатальна: пользователь
// получает реплику без метки, заказа в этом ходе нет.
func Parse(text string) ParsedTurn {
	idx := strings.Index(text, Marker)
	if idx < 0 {
		return ParsedTurn{Reply: strings.TrimSpace(text)}
	}

	before := text[:idx]
	rest := text[idx+len(Marker):]

	objStart, objEnd := balancedObject(rest)
	if objStart < 0 {
		// Метка есть, объекта нет: вырезаем всё от метки до конца,
		// чтобы пользователь не увидел сырой хвост.
		return ParsedTurn{
			Reply:    strings.TrimSpace(before),
			ParseErr: ErrNoPayload,
		}
	}

	reply := strings.TrimSpace(strings.TrimSpace(before) + "\n" + strings.TrimSpace(rest[objEnd:]))

	var payload model.OrderIntent
	if err := json.Unmarshal([]byte(rest[objStart:objEnd]), &payload); err != nil {
		return ParsedTurn{Reply: reply, ParseErr: err}
	}

	// Неположительные количества отбрасываем сразу.
	for sku, qty := range payload.Items {
		if qty <= 0 {
			delete(payload.Items, sku)
		}
	}

	return ParsedTurn{Reply: reply, Payload: &payload}
}

// balancedObject возвращает границы первого сбалансированного объекта {...}
// в s с учётом строковых литералов JSON. Если объект не найден или не
// закрыт, возвращает (-1, -1).
func balancedObject(s string) (int, int) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return -1, -1
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		ch := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return start, i + 1
			}
		}
	}

	return -1, -1
}
